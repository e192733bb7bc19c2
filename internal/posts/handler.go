package posts

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/httpx"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// Handler manages organizational post endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers post routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Put("/{id}", h.update)
	r.Delete("/{id}", h.remove)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	posts, err := h.service.ListPosts(r.Context(), shared.CurrentToken(r.Context()))
	if err != nil {
		h.fail(w, "list posts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": posts})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	post, err := h.service.CreatePost(r.Context(), shared.CurrentToken(r.Context()), in)
	if err != nil {
		h.fail(w, "create post", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, post)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: id", httpx.ErrValidation))
		return
	}
	var in Input
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	post, err := h.service.UpdatePost(r.Context(), shared.CurrentToken(r.Context()), id, in)
	if err != nil {
		h.fail(w, "update post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, post)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: id", httpx.ErrValidation))
		return
	}
	if err := h.service.DeletePost(r.Context(), shared.CurrentToken(r.Context()), id); err != nil {
		h.fail(w, "delete post", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, httpx.FromBackend(err))
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id")
	}
	return id, nil
}
