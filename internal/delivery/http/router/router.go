package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/user/site-auditor/internal/delivery/http/handler"
	"github.com/user/site-auditor/internal/delivery/http/middleware"
	"github.com/user/site-auditor/pkg/metrics"
	"go.uber.org/zap"
)

// New builds the API router. gatherer serves /metrics.
func New(h *handler.Handler, m *metrics.Metrics, gatherer prometheus.Gatherer, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Metrics(m))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/health", h.HandleHealthCheck)

	r.Route("/api/audits", func(r chi.Router) {
		r.Post("/", h.HandleSubmitAudit)
		r.Get("/{id}", h.HandleGetAudit)
		r.Get("/{id}/events", h.HandleGetAuditEvents)
	})

	return r
}
