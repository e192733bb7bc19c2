package masterdata

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mohamdabidi2/geox-sub001/internal/droits"
	"github.com/mohamdabidi2/geox-sub001/internal/platform/httpx"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// Handler serves the proxied reference collections. Every stock route sits
// behind the magasin gate; list responses additionally go through the
// resolver's per-item filter, the fine-grained tier of enforcement.
type Handler struct {
	logger  *slog.Logger
	service *Service
	manager *droits.Manager
	gate    droits.Gate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, manager *droits.Manager, gate droits.Gate) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, manager: manager, gate: gate}
}

// MountRoutes registers one CRUD subtree per proxied collection.
func (h *Handler) MountRoutes(r chi.Router) {
	for _, res := range Resources() {
		r.Route("/"+res.Name, func(r chi.Router) {
			if res.RequireMagasin {
				r.Use(h.gate.Require(droits.DefaultGateConfig()))
			}
			r.Get("/", h.list(res))
			r.Post("/", h.create(res))
			r.Get("/{id}", h.get(res))
			r.Put("/{id}", h.update(res))
			r.Delete("/{id}", h.remove(res))
		})
	}
}

func (h *Handler) list(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := shared.CurrentToken(r.Context())
		rows, err := h.service.List(r.Context(), token, res)
		if err != nil {
			h.fail(w, "list "+res.Name, err)
			return
		}

		if res.FilterKind != "" {
			if user := shared.CurrentUser(r.Context()); user != nil {
				resolver := h.manager.ResolverFor(r.Context(), *user, token)
				rows = resolver.FilterByRights(rows, res.FilterKind)
			}
		}

		if needle := foldSearch(r.URL.Query().Get("search")); needle != "" {
			matched := make([]map[string]any, 0, len(rows))
			for _, row := range rows {
				if matchesSearch(row, needle) {
					matched = append(matched, row)
				}
			}
			rows = matched
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		pagination := shared.NewPagination(page, limit, len(rows))
		rows = paginate(rows, pagination)

		httpx.JSON(w, http.StatusOK, map[string]any{
			"data":       rows,
			"pagination": pagination,
		})
	}
}

func (h *Handler) get(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: id", httpx.ErrValidation))
			return
		}
		row, err := h.service.Get(r.Context(), shared.CurrentToken(r.Context()), res, id)
		if err != nil {
			h.fail(w, "get "+res.Name, err)
			return
		}
		httpx.JSON(w, http.StatusOK, row)
	}
}

func (h *Handler) create(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
			return
		}
		row, err := h.service.Create(r.Context(), shared.CurrentToken(r.Context()), res, body)
		if err != nil {
			h.fail(w, "create "+res.Name, err)
			return
		}
		httpx.JSON(w, http.StatusCreated, row)
	}
}

func (h *Handler) update(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: id", httpx.ErrValidation))
			return
		}
		var body map[string]any
		if err := httpx.DecodeJSON(r, &body); err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
			return
		}
		row, err := h.service.Update(r.Context(), shared.CurrentToken(r.Context()), res, id, body)
		if err != nil {
			h.fail(w, "update "+res.Name, err)
			return
		}
		httpx.JSON(w, http.StatusOK, row)
	}
}

func (h *Handler) remove(res Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: id", httpx.ErrValidation))
			return
		}
		if err := h.service.Delete(r.Context(), shared.CurrentToken(r.Context()), res, id); err != nil {
			h.fail(w, "delete "+res.Name, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, httpx.FromBackend(err))
}

func paginate(rows []map[string]any, p shared.Pagination) []map[string]any {
	start := (p.Page - 1) * p.PerPage
	if start >= len(rows) {
		return []map[string]any{}
	}
	end := start + p.PerPage
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
