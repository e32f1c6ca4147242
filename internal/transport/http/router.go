package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credhub/internal/platform/middleware"
)

// HealthChecker reports dependency health for the readiness endpoint.
type HealthChecker func() error

// NewRouter wires the disclosure API with the standard middleware stack.
// An empty tokenSecret leaves the query endpoint unauthenticated, for local
// development only.
func NewRouter(h *Handler, tokenSecret string, logger *slog.Logger, health HealthChecker) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if health != nil {
			if err := health(); err != nil {
				http.Error(w, err.Error(), http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.ContentTypeJSON)
		if tokenSecret != "" {
			r.Use(BearerAuth(tokenSecret))
		}
		r.Post("/api/presentations/query", h.handleQuery)
	})

	return r
}
