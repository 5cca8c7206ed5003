package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/wuzhiguocarter/Aletheia/internal/config"
	"github.com/wuzhiguocarter/Aletheia/internal/middleware"
	"github.com/wuzhiguocarter/Aletheia/internal/observability"
	"github.com/wuzhiguocarter/Aletheia/pkg/api"
)

// RouterConfig collects what NewRouter needs.
type RouterConfig struct {
	Handler        *Handler
	Logger         *zap.Logger
	Metrics        *observability.Collector
	Auth           middleware.AuthConfig
	CORS           config.CORS
	RequestTimeout time.Duration
	// Ready reports whether dependencies can serve traffic. Nil means always ready.
	Ready   func(ctx context.Context) error
	Breaker *middleware.CircuitBreakerConfig
}

// NewRouter builds the HTTP surface: health probes, metrics, the OpenAPI
// document and the authenticated /api/v1 tree.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger, cfg.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Content-Disposition", ArchivedHeader},
		AllowCredentials: true,
		MaxAge:           cfg.CORS.MaxAge,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Ready != nil {
			ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			if err := cfg.Ready(ctx); err != nil {
				logger.Warn("readiness check failed", zap.Error(err))
				api.Success(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}
	r.Get("/swagger.json", api.SwaggerHandler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout, logger))
		}
		if cfg.Breaker != nil {
			r.Use(middleware.CircuitBreaker(*cfg.Breaker, logger))
		}
		r.Use(middleware.Authenticate(cfg.Auth, logger))
		if cfg.Handler != nil {
			cfg.Handler.Routes(r)
		}
	})

	return r
}
