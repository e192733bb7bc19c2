package droits

import (
	"log/slog"
	"net/http"

	"github.com/mohamdabidi2/geox-sub001/internal/observability"
	"github.com/mohamdabidi2/geox-sub001/internal/platform/httpx"
	"github.com/mohamdabidi2/geox-sub001/internal/shared"
)

// GateState is the terminal render decision for a guarded subtree.
type GateState int

const (
	// GateLoading: the resolver has not finished its initial load.
	GateLoading GateState = iota
	// GateResolverError: the load failed; fallback rights are in effect but
	// the failure must be disclosed with a retry affordance.
	GateResolverError
	// GateUnauthenticated: no session user. Checked after the error state:
	// a load failure is reportable regardless of auth, and the session gate
	// upstream normally guarantees identity anyway.
	GateUnauthenticated
	// GateMagasinForbidden: the mandatory magasin check failed.
	GateMagasinForbidden
	// GateAllowed: serve the wrapped content unmodified.
	GateAllowed
)

func (s GateState) String() string {
	switch s {
	case GateLoading:
		return "loading"
	case GateResolverError:
		return "resolver_error"
	case GateUnauthenticated:
		return "unauthenticated"
	case GateMagasinForbidden:
		return "magasin_forbidden"
	case GateAllowed:
		return "allowed"
	}
	return "unknown"
}

// GateConfig selects which checks a guarded route requires. Category and
// client requirements are accepted but enforced per item via FilterByRights,
// not at the page gate, which has no specific category or client id in
// scope. Page-level gating is the coarse mandatory tier; list-level filtering
// is the fine optional tier.
type GateConfig struct {
	RequireMagasin  bool
	RequireCategory bool
	RequireClient   bool
}

// DefaultGateConfig requires the mandatory magasin check only.
func DefaultGateConfig() GateConfig {
	return GateConfig{RequireMagasin: true}
}

// EvaluateGate resolves the gate state in strict precedence order, first
// match wins. It is pure over its inputs and always reaches a terminal state.
func EvaluateGate(res *Resolver, user *shared.UserProfile, cfg GateConfig) GateState {
	if res == nil {
		if user == nil || user.ID == 0 {
			return GateUnauthenticated
		}
		return GateLoading
	}
	if !res.Loaded() {
		return GateLoading
	}
	if res.Err() != nil {
		return GateResolverError
	}
	if user == nil || user.ID == 0 {
		return GateUnauthenticated
	}
	if cfg.RequireMagasin && !res.HasMandatoryMagasinAccess() {
		return GateMagasinForbidden
	}
	return GateAllowed
}

// Gate guards HTTP routes with the rights state machine.
type Gate struct {
	Manager *Manager
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Require returns a middleware enforcing the configured checks. The initial
// load runs lazily on first use, so the loading state resolves inside the
// request instead of rendering a spinner.
func (g Gate) Require(cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			user := shared.CurrentUser(ctx)

			var res *Resolver
			if user != nil && g.Manager != nil {
				res = g.Manager.ResolverFor(ctx, *user, shared.CurrentToken(ctx))
				if !res.Loaded() {
					res.Load(ctx)
				} else if res.Err() != nil {
					// Each request is a retry; a transient outage must not
					// pin the session in the degraded state.
					res.Refresh(ctx)
				}
			}

			state := EvaluateGate(res, user, cfg)
			g.observe(state)

			switch state {
			case GateAllowed:
				next.ServeHTTP(w, r)
			case GateResolverError:
				if g.Logger != nil {
					g.Logger.Warn("droits gate: resolver degraded",
						slog.Any("error", res.Err()))
				}
				httpx.Problem(w, http.StatusServiceUnavailable,
					"Rights Unavailable",
					"access rights could not be loaded; retry via refresh")
			case GateUnauthenticated:
				httpx.Problem(w, http.StatusUnauthorized,
					"Authentication Required", "sign in to continue")
			case GateMagasinForbidden:
				// Requested and accessible ids are disclosed on purpose:
				// support needs them, and magasin ids are not secret here.
				var requested int64
				var accessible []int64
				if user != nil {
					requested = user.MagasinID
				}
				if res != nil {
					accessible = res.AccessibleMagasins()
				}
				httpx.ProblemWithExtra(w, http.StatusForbidden,
					"Magasin Access Denied",
					"no active right covers the requested magasin",
					map[string]any{
						"requested_magasin_id":   requested,
						"accessible_magasin_ids": accessible,
					})
			default:
				httpx.Problem(w, http.StatusServiceUnavailable,
					"Rights Not Loaded", "rights state unavailable")
			}
		})
	}
}

func (g Gate) observe(state GateState) {
	if g.Metrics != nil {
		g.Metrics.ObserveAccessDecision(state.String())
	}
}
