// Package rest wires the graph and idea services into a chi HTTP router.
package rest

import (
	"context"
	"net/http"
	"time"

	"ideagraph-backend/internal/infrastructure/observability"
	"ideagraph-backend/pkg/api"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether the service can take traffic.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds router settings
type RouterConfig struct {
	ServiceName    string
	AllowedOrigins []string
	RequestTimeout time.Duration
	EnableMetrics  bool
	EnableTracing  bool
}

// NewRouter creates the HTTP router. collector and ready may be nil.
func NewRouter(
	cfg RouterConfig,
	graphHandler *GraphHandler,
	ideaHandler *IdeaHandler,
	collector *observability.Collector,
	ready ReadinessCheck,
	logger *zap.Logger,
) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(Logger(logger))
	if cfg.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.EnableTracing {
		router.Use(observability.TracingMiddleware(cfg.ServiceName))
	}
	if cfg.EnableMetrics && collector != nil {
		router.Use(observability.MetricsMiddleware(collector))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserIDHeader, "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	router.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				logger.Warn("Readiness check failed", zap.Error(err))
				api.Success(w, http.StatusServiceUnavailable, map[string]string{
					"status": "not_ready",
					"error":  err.Error(),
				})
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	if collector != nil {
		router.Handle("/metrics", collector.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		graphHandler.Routes(r)
		ideaHandler.Routes(r)
	})

	return router
}
