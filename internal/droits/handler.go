package droits

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mohamdabidi2/geox-sub001/internal/platform/httpx"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// Handler exposes the rights administration API consumed by the responsible
// user screens: per-kind CRUD, active-subset views and direct access checks.
type Handler struct {
	logger   *slog.Logger
	manager  *Manager
	validate *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, manager *Manager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		manager:  manager,
		validate: validator.New(),
	}
}

// MountRoutes registers the droits admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/user/{userID}/all", h.listAll)
	r.Get("/check/{userID}", h.check)
	r.Get("/{kind}/user/{userID}", h.list)
	r.Get("/{kind}/user/{userID}/active", h.listActive)
	r.Post("/{kind}", h.create)
	r.Put("/{kind}/{id}", h.update)
	r.Delete("/{kind}/{id}", h.remove)
}

type rightView struct {
	AccessRight
	Active bool `json:"active"`
}

func viewRights(rights []AccessRight, now time.Time) []rightView {
	views := make([]rightView, 0, len(rights))
	for _, right := range rights {
		views = append(views, rightView{AccessRight: right, Active: right.IsActive(now)})
	}
	return views
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	store, kind, uid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := store.FetchRights(r.Context(), kind, uid); err != nil {
		h.fail(w, "list droits", err)
		return
	}
	httpx.JSON(w, http.StatusOK, viewRights(store.Rights(kind), time.Now()))
}

func (h *Handler) listActive(w http.ResponseWriter, r *http.Request) {
	store, kind, uid, ok := h.prepare(w, r)
	if !ok {
		return
	}
	if err := store.FetchRights(r.Context(), kind, uid); err != nil {
		h.fail(w, "list active droits", err)
		return
	}
	now := time.Now()
	httpx.JSON(w, http.StatusOK, viewRights(store.ActiveRights(kind, now), now))
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	actor, token, ok := h.session(w, r)
	if !ok {
		return
	}
	uid, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user id", httpx.ErrValidation))
		return
	}
	store := h.manager.SubjectStore(actor, token, uid)

	result := store.FetchAllRights(r.Context(), uid)
	if result.FullyFailed() {
		h.fail(w, "fetch all droits", result.Combined())
		return
	}

	now := time.Now()
	payload := map[string]any{
		"categories": viewRights(store.Rights(KindCategory), now),
		"magasins":   viewRights(store.Rights(KindMagasin), now),
		"clients":    viewRights(store.Rights(KindClient), now),
		"partial":    result.Partial(),
	}
	if result.Partial() {
		failed := make([]string, 0, 2)
		for _, kind := range Kinds() {
			if result.Err(kind) != nil {
				failed = append(failed, string(kind))
			}
		}
		payload["failed_kinds"] = failed
	}
	httpx.JSON(w, http.StatusOK, payload)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, token, kind, ok := h.prepareKind(w, r)
	if !ok {
		return
	}

	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if err := checkResourceForKind(kind, in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	store := h.manager.SubjectStore(actor, token, in.UserID)
	created, err := store.CreateRight(r.Context(), kind, in)
	if err != nil {
		h.fail(w, "create droit", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rightView{AccessRight: created, Active: created.IsActive(time.Now())})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, token, kind, ok := h.prepareKind(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: right id", httpx.ErrValidation))
		return
	}

	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed body", httpx.ErrValidation))
		return
	}
	if err := h.validate.Struct(in); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}

	// The subject is learned from the backend's response.
	store := h.manager.SubjectStore(actor, token, 0)
	updated, err := store.UpdateRight(r.Context(), kind, id, in)
	if err != nil {
		h.fail(w, "update droit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rightView{AccessRight: updated, Active: updated.IsActive(time.Now())})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	actor, token, kind, ok := h.prepareKind(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: right id", httpx.ErrValidation))
		return
	}
	store := h.manager.SubjectStore(actor, token, 0)
	if err := store.DeleteRight(r.Context(), kind, id); err != nil {
		h.fail(w, "delete droit", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	actor, token, ok := h.session(w, r)
	if !ok {
		return
	}
	uid, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user id", httpx.ErrValidation))
		return
	}
	store := h.manager.SubjectStore(actor, token, uid)
	query := AccessQuery{
		CategoryID: queryID(r, "categoryid"),
		MagasinID:  queryID(r, "magasinid"),
		ClientID:   queryID(r, "clientid"),
	}
	allowed := store.CheckUserRights(r.Context(), uid, query)
	httpx.JSON(w, http.StatusOK, map[string]bool{"allowed": allowed})
}

// prepare resolves the acting session, the kind segment and the administered
// subject id, returning a store bound to that subject. Stores handed out here
// are detached from the session cache: admin reads must never rewrite the
// acting user's own collections.
func (h *Handler) prepare(w http.ResponseWriter, r *http.Request) (*Store, Kind, int64, bool) {
	actor, token, kind, ok := h.prepareKind(w, r)
	if !ok {
		return nil, "", 0, false
	}
	uid, err := pathID(r, "userID")
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: user id", httpx.ErrValidation))
		return nil, "", 0, false
	}
	return h.manager.SubjectStore(actor, token, uid), kind, uid, true
}

func (h *Handler) prepareKind(w http.ResponseWriter, r *http.Request) (shared.UserProfile, string, Kind, bool) {
	actor, token, ok := h.session(w, r)
	if !ok {
		return shared.UserProfile{}, "", "", false
	}
	kind, err := ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return shared.UserProfile{}, "", "", false
	}
	return actor, token, kind, true
}

// session resolves the acting user and bearer token; a defensive second auth
// layer below the session gate.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (shared.UserProfile, string, bool) {
	user := shared.CurrentUser(r.Context())
	if user == nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return shared.UserProfile{}, "", false
	}
	return *user, shared.CurrentToken(r.Context()), true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	h.logger.Error(action, slog.Any("error", err))
	httpx.RespondError(w, mapBackendError(err))
}

func mapBackendError(err error) error {
	if errors.Is(err, ErrInvalidWindow) || errors.Is(err, shared.ErrMissingUser) {
		return fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}
	return httpx.FromBackend(err)
}

func checkResourceForKind(kind Kind, in CreateInput) error {
	set := map[Kind]int64{
		KindCategory: in.CategoryID,
		KindMagasin:  in.MagasinID,
		KindClient:   in.ClientID,
	}
	if set[kind] == 0 {
		return fmt.Errorf("droits: %s id required", kind)
	}
	for _, other := range Kinds() {
		if other != kind && set[other] != 0 {
			return fmt.Errorf("droits: %s id not allowed on a %s right", other, kind)
		}
	}
	return nil
}

func pathID(r *http.Request, param string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", param)
	}
	return id, nil
}

func queryID(r *http.Request, param string) int64 {
	id, _ := CoerceID(r.URL.Query().Get(param))
	return id
}
