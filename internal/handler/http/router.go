package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/health"
	"github.com/TravisHFan/at-Cloud-sign-up-system-sub020/pkg/middleware"
)

// NewRouter assembles the HTTP surface: dispatch, introspection, the
// websocket endpoint, health probes and prometheus metrics.
func NewRouter(h *TrioHandler, healthHandler *health.Handler, serviceName string, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))

	r.Get("/healthz", healthHandler.LivenessHandler())
	r.Get("/readyz", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/ws", h.hub.HandleWS)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/trios", func(r chi.Router) {
			r.Post("/", h.CreateTrio)
			r.Get("/metrics", h.Metrics)
			r.Post("/metrics/reset", h.ResetMetrics)
		})

		r.Route("/errors", func(r chi.Router) {
			r.Get("/statistics", h.ErrorStatistics)
			r.Get("/history", h.RecoveryHistory)
			r.Get("/circuit-breakers", h.CircuitBreakers)
			r.Post("/reset", h.ResetRecovery)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/statistics", h.TransactionStatistics)
			r.Get("/history", h.TransactionHistory)
			r.Post("/cleanup", h.CleanupTransactions)
		})
	})

	return r
}
