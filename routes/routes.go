package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/corebanking/pipeline-audit/app"
	"github.com/corebanking/pipeline-audit/middleware"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(middleware.CorrelationID)
	if deps.Config.Observability.MetricsEnabled {
		r.Use(middleware.Metrics)
	}

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "https://*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.CorrelationHeader},
		ExposedHeaders: []string{"Link", "X-Request-ID", middleware.CorrelationHeader},
		MaxAge:         300,
	}))

	// Health check endpoints
	r.Get("/healthz", deps.HealthHandler.HandleLiveness)
	r.Get("/readyz", deps.HealthHandler.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/events", func(r chi.Router) {
			r.Post("/", deps.EventHandler.HandleCreateEvent)
			r.Get("/", deps.EventHandler.HandleListEvents)
		})

		r.Get("/statistics", deps.StatisticsHandler.HandleStatistics)
		r.Get("/discrepancies", deps.DiscrepancyHandler.HandleListDiscrepancies)
		r.Get("/reconciliation/{correlationID}", deps.ReconciliationHandler.HandleReconciliation)
	})

	return r
}
