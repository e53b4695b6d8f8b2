package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/amp/internal/metrics"
	"github.com/hitoshi/amp/internal/middleware"
)

// RouterDeps bundles the dependencies of NewRouter.
type RouterDeps struct {
	// middleware
	CORSAllowedOrigin string
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder // optional

	// health and metrics
	HealthChecker   HealthChecker       // optional
	MetricsGatherer prometheus.Gatherer // optional; /metrics is not mounted when nil

	AuthService AuthServiceInterface
}

// NewRouter builds the chi router with every endpoint and the middleware chain.
//
// Middleware order:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS
//
// Only GET /auth/me sits behind the bearer-auth middleware.
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	r.Get("/health", healthHandler.Health)
	if deps.MetricsGatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/signin", authHandler.SignIn)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/signout", authHandler.SignOut)

		r.With(middleware.NewBearerAuthMiddleware(deps.AuthService)).Get("/me", authHandler.Me)
	})

	return r
}
