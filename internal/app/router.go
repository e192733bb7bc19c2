package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/mohamdabidi2/geox-sub001/internal/auth"
	"github.com/mohamdabidi2/geox-sub001/internal/droits"
	"github.com/mohamdabidi2/geox-sub001/internal/masterdata"
	"github.com/mohamdabidi2/geox-sub001/internal/observability"
	"github.com/mohamdabidi2/geox-sub001/internal/posts"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
	"github.com/mohamdabidi2/geox-sub001/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler       *auth.Handler
	DroitsHandler     *droits.Handler
	MasterDataHandler *masterdata.Handler
	UsersHandler      *users.Handler
	PostsHandler      *posts.Handler

	Gate    droits.Gate
	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with gateway defaults. Everything
// except /auth and the probes sits behind the access gate; masterdata mounts
// its own per-resource gates so its subtree is mounted ungated here.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.DroitsHandler != nil {
		r.Route("/droits", func(r chi.Router) {
			r.Use(params.Gate.Require(droits.DefaultGateConfig()))
			params.DroitsHandler.MountRoutes(r)
		})
	}
	if params.MasterDataHandler != nil {
		params.MasterDataHandler.MountRoutes(r)
	}
	if params.UsersHandler != nil {
		r.Route("/users", func(r chi.Router) {
			r.Use(params.Gate.Require(droits.DefaultGateConfig()))
			params.UsersHandler.MountRoutes(r)
		})
	}
	if params.PostsHandler != nil {
		r.Route("/postes", func(r chi.Router) {
			r.Use(params.Gate.Require(droits.DefaultGateConfig()))
			params.PostsHandler.MountRoutes(r)
		})
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
