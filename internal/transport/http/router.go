package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"

	"audiolicense/internal/config"
	apperrors "audiolicense/internal/errors"
	"audiolicense/internal/infrastructure"
	"audiolicense/internal/middleware"
	"audiolicense/internal/services"
)

// RouterDeps are the components served by the router. Resyncer, Tracer,
// Metrics and MetricsHTTP may be nil.
type RouterDeps struct {
	Config       *config.Config
	Logger       *slog.Logger
	Catalog      CatalogService
	Syncer       SyncService
	Resyncer     ResyncService
	Resolver     VariationResolver
	Certificates CertificateService
	Artifacts    ArtifactReader
	Verifier     Verifier
	Health       *services.HealthService
	Tracer       trace.Tracer
	Metrics      *infrastructure.EngineMetrics
	MetricsHTTP  http.Handler
}

// NewRouter assembles the middleware chain and every API route
func NewRouter(d RouterDeps) chi.Router {
	cfg := d.Config
	logger := d.Logger

	eh := apperrors.NewErrorHandler(logger, cfg.Logging.Development)
	v := middleware.NewValidator()

	catalog := NewCatalogHandler(d.Catalog, v, eh, logger)
	commerce := NewCommerceHandler(d.Syncer, d.Resyncer, d.Resolver, v, eh, logger)
	fulfillment := NewFulfillmentHandler(d.Certificates, d.Artifacts, v, eh, logger)
	verification := NewVerificationHandler(d.Verifier, eh, logger)
	health := NewHealthHandler(d.Health, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.Tracer != nil {
		r.Use(middleware.OTel(d.Tracer, d.Metrics))
	}
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	if cfg.Security.EnableCORS {
		r.Use(middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.Security.AllowedOrigins}))
	}
	if cfg.Server.OperationTimeout > 0 {
		r.Use(middleware.Timeout(cfg.Server.OperationTimeout))
	}

	r.NotFound(eh.NotFound)
	r.MethodNotAllowed(eh.MethodNotAllowed)

	public := func(r chi.Router) {}
	if rl := cfg.Security.RateLimit; rl.Enabled {
		limiter := middleware.NewRateLimiter(rl.RPS, rl.Burst, rl.TTL, logger)
		public = func(r chi.Router) { r.Use(limiter.Handler) }
	}
	jsonBody := func(r chi.Router) {
		r.Use(middleware.ContentTypeValidator("application/json"))
		r.Use(middleware.MaxBody(middleware.DefaultMaxBodySize))
	}
	admin := func(r chi.Router) {
		r.Use(middleware.APIKeyAuth(logger, cfg.Security.AdminAPIKeys))
		r.Use(middleware.AuditLog(logger))
		r.Use(apperrors.NewErrorMiddleware(eh, logger).Handler)
		jsonBody(r)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)

		r.Route("/license", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				public(r)
				catalog.PublicRoutes(r)
			})
			r.Group(func(r chi.Router) {
				admin(r)
				catalog.AdminRoutes(r)
			})
		})

		r.Route("/commerce", func(r chi.Router) {
			admin(r)
			commerce.AdminRoutes(r)
		})

		r.Route("/cart", func(r chi.Router) {
			public(r)
			jsonBody(r)
			commerce.CartRoutes(r)
		})

		r.Route("/fulfillment", func(r chi.Router) {
			admin(r)
			fulfillment.InternalRoutes(r)
		})

		r.Group(func(r chi.Router) {
			public(r)
			r.Get("/verify/{serial}", verification.Verify)
		})
	})

	r.Group(func(r chi.Router) {
		public(r)
		r.Get("/certificates/*", fulfillment.ServeArtifact)
	})

	metrics := d.MetricsHTTP
	if metrics == nil {
		metrics = MetricsHandler(nil)
	}
	r.Method(http.MethodGet, "/metrics", metrics)

	return r
}

// NewServer wraps handler in an http.Server configured from cfg
func NewServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
}
