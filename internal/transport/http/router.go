// Package httptransport assembles the public router: shared middleware, the
// operational endpoints and every domain handler.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ezclaim/internal/platform/metrics"
	"ezclaim/pkg/platform/httputil"
	"ezclaim/pkg/platform/middleware/admin"
	authmw "ezclaim/pkg/platform/middleware/auth"
	"ezclaim/pkg/platform/middleware/cors"
	"ezclaim/pkg/platform/middleware/metadata"
	"ezclaim/pkg/platform/middleware/request"
	"ezclaim/pkg/platform/middleware/requesttime"
)

// Registrar mounts a handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

// Deps is everything the router needs from the composition root.
type Deps struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Validator      authmw.JWTValidator
	AllowedOrigins []string
	MetricsToken   string
	HealthChecks   map[string]HealthCheck
	Handlers       []Registrar
}

// NewRouter wires the middleware chain in order: correlation, client
// metadata, request time, access log, recovery, metrics, CORS and finally
// optional bearer authentication.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(d.Logger))
	r.Use(request.Recover(d.Logger))
	r.Use(d.Metrics.Middleware)
	r.Use(cors.AllowOrigins(d.AllowedOrigins))
	r.Use(authmw.Authenticate(d.Validator, d.Logger))

	r.Get("/health", healthHandler(d.HealthChecks, d.Logger))
	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.With(admin.RequireAdminToken(d.MetricsToken, d.Logger)).
		Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	for _, h := range d.Handlers {
		h.Register(r)
	}
	return r
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks map[string]HealthCheck, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok"}
		status := http.StatusOK
		if len(checks) > 0 {
			resp.Checks = make(map[string]string, len(checks))
		}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				logger.WarnContext(ctx, "health check failed", "dependency", name, "error", err)
				resp.Checks[name] = "down"
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "up"
		}
		httputil.WriteJSON(w, status, resp)
	}
}
