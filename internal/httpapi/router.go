package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/feustey/mcp/internal/telemetry"
)

// Deps bundles everything the handlers need. The handler fields are
// required. MetricsRegistry defaults to the global registry, MetricsPath to
// "/metrics", and a nil Auth leaves the /api/v1 routes unauthenticated.
type Deps struct {
	Ingest    *IngestHandler
	Reports   *ReportsHandler
	Decisions *DecisionsHandler
	RAG       *RAGHandler
	Health    *HealthHandler

	Auth            *APIKeyAuth
	CORSOrigins     []string
	MetricsPath     string
	MetricsRegistry *prometheus.Registry
}

// NewRouter builds the thin admin HTTP surface's chi router.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE"},
		AllowedHeaders: []string{"Content-Type", "X-API-Key"},
	}))

	r.Get("/live", d.Health.Live)
	r.Get("/ready", d.Health.Ready)

	metricsPath := d.MetricsPath
	if metricsPath == "" {
		metricsPath = "/metrics"
	}
	reg := d.MetricsRegistry
	if reg == nil {
		reg = prometheus.DefaultRegisterer.(*prometheus.Registry)
	}
	r.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(api chi.Router) {
		if d.Auth != nil {
			api.Use(d.Auth.Middleware)
		}
		api.Post("/ingest", d.Ingest.Ingest)
		api.Get("/ingest/{jobID}", d.Ingest.Status)

		api.Post("/rag/query", d.RAG.Query)
		api.Post("/rag/reindex", d.RAG.BeginReindex)
		api.Post("/rag/reindex/{indexName}/finalize", d.RAG.FinalizeReindex)
		api.Post("/rag/reindex/{indexName}/abort", d.RAG.AbortReindex)

		api.Get("/reports/daily", d.Reports.GetDaily)
		api.Post("/reports/daily", d.Reports.GenerateDaily)

		api.Post("/decisions/{decisionID}/rollback", d.Decisions.Rollback)
	})

	return r
}

// metricsMiddleware records request count and latency per method/path/status
// (spec §4.9).
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		routePattern := chi.RouteContext(r.Context()).RoutePattern()
		if routePattern == "" {
			routePattern = r.URL.Path
		}
		status := strconv.Itoa(ww.Status())
		telemetry.RequestsTotal.WithLabelValues(r.Method, routePattern, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(r.Method, routePattern, status).Observe(time.Since(start).Seconds())
	})
}
