package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tripcrew/trip-planner/internal/middleware"
	"github.com/tripcrew/trip-planner/internal/service"
	"github.com/tripcrew/trip-planner/pkg/logger"
)

// RouterConfig carries the services and settings the router needs.
type RouterConfig struct {
	Planner *service.PlannerService
	Plans   *service.PlanService
	Auth    *service.AuthService

	DB     Pinger
	Events ConnectionChecker

	JWTSecret          string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	CORSAllowedOrigins []string

	Logger *logger.Logger
}

// NewRouter builds the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	healthHandler := NewHealthHandler(cfg.DB, cfg.Events)
	planningHandler := NewPlanningHandler(cfg.Planner)
	planHandler := NewPlanHandler(cfg.Plans)
	activityHandler := NewActivityHandler(cfg.Plans)
	authHandler := NewAuthHandler(cfg.Auth)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		r.Get("/health", healthHandler.Health)
		r.Get("/ready", healthHandler.Ready)
		r.Handle("/metrics", promhttp.Handler())

		r.Post("/plan", planningHandler.Plan)
		r.Post("/plan/ics", planningHandler.Calendar)
		r.Post("/route", planningHandler.Route)

		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			if cfg.RateLimitRequests > 0 {
				r.Use(middleware.UserRateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			}

			r.Route("/plans", func(r chi.Router) {
				r.Get("/", planHandler.List)
				r.Post("/save", planHandler.Save)
				r.Post("/replan", planHandler.Replan)
				r.Get("/activity", activityHandler.List)
				r.Get("/activity/stream", activityHandler.Stream)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", planHandler.Delete)
					r.Get("/versions", planHandler.Versions)
					r.Post("/favorite", planHandler.Favorite)
				})
			})
		})
	})

	return r
}
