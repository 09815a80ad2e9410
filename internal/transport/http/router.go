// Package httptransport assembles the public HTTP surface: the module
// handlers, operational endpoints and the middleware chain.
package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concord/internal/platform/metrics"
	"concord/pkg/platform/httputil"
	"concord/pkg/platform/middleware/admin"
	"concord/pkg/platform/middleware/auth"
	"concord/pkg/platform/middleware/request"
	"concord/pkg/platform/middleware/requesttime"
)

// Registrar is implemented by every module handler.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker func(r *http.Request) error

// RouterConfig carries what the router needs besides the module handlers.
// A nil Validator leaves the API open; an empty AdminToken disables the
// admin routes.
type RouterConfig struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Validator  auth.TokenValidator
	AdminToken string
	Tokens     TokenIssuer
	Health     map[string]HealthChecker

	AllowClockOverride bool
}

// NewRouter wires the module handlers behind the common middleware chain.
func NewRouter(cfg RouterConfig, handlers ...Registrar) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	if cfg.AllowClockOverride {
		r.Use(requesttime.Override)
	}
	r.Use(cfg.Metrics.Middleware)

	r.Get("/health", healthHandler(cfg.Health))
	r.Handle("/metrics", promhttp.Handler())

	if cfg.AdminToken != "" && cfg.Tokens != nil {
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			NewTokenHandler(cfg.Tokens, logger).Register(r)
		})
	}

	r.Group(func(r chi.Router) {
		if cfg.Validator != nil {
			r.Use(auth.RequireDomainToken(cfg.Validator, logger))
		}
		for _, h := range handlers {
			h.Register(r)
		}
	})
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
			for name, check := range checks {
				if err := check(r); err != nil {
					resp.Checks[name] = err.Error()
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}
		httputil.WriteJSON(w, status, resp)
	}
}
