// Package http assembles the ADScan HTTP interface: route tree, middleware
// chain, and server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/logging"
	"github.com/qsarlab/adscan/internal/infrastructure/monitoring/prometheus"
	"github.com/qsarlab/adscan/internal/interfaces/http/handlers"
	"github.com/qsarlab/adscan/internal/interfaces/http/middleware"
)

// RouterConfig aggregates all handler and middleware dependencies required
// to construct the complete HTTP route tree.
type RouterConfig struct {
	DatasetHandler *handlers.DatasetHandler
	ScanHandler    *handlers.ScanHandler
	DomainHandler  *handlers.DomainHandler
	HealthHandler  *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector

	// MaxBodySize bounds request bodies under /api/v1. Zero disables the
	// limit.
	MaxBodySize int64
}

// NewRouter constructs the complete route tree: global middleware, public
// probe endpoints, the metrics endpoint, and the /api/v1 resource groups.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.RequestMetrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.Handle("/metrics", cfg.MetricsCollector.Handler())
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.MaxBodySize > 0 {
			api.Use(limitBody(cfg.MaxBodySize))
		}

		registerDatasetRoutes(api, cfg.DatasetHandler, cfg.ScanHandler)
		registerScanRoutes(api, cfg.ScanHandler)
		registerDomainRoutes(api, cfg.DomainHandler)
	})

	return r
}

// limitBody caps request body size; oversized reads fail inside handlers.
func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// registerDatasetRoutes mounts dataset endpoints under /datasets, including
// per-dataset scan submission.
func registerDatasetRoutes(r chi.Router, h *handlers.DatasetHandler, sh *handlers.ScanHandler) {
	if h == nil {
		return
	}
	r.Route("/datasets", func(dr chi.Router) {
		dr.Get("/", h.List)
		dr.Post("/", h.Create)

		dr.Route("/{datasetID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Delete("/", h.Delete)

			if sh != nil {
				item.Post("/scans", sh.Submit)
			}
		})
	})
}

// registerScanRoutes mounts scan-run retrieval endpoints under /scans.
func registerScanRoutes(r chi.Router, h *handlers.ScanHandler) {
	if h == nil {
		return
	}
	r.Route("/scans", func(sr chi.Router) {
		sr.Get("/", h.List)

		sr.Route("/{runID}", func(item chi.Router) {
			item.Get("/", h.Get)
			item.Get("/profile", h.Profile)
		})
	})
}

// registerDomainRoutes mounts the stateless numeric operations under /domain.
func registerDomainRoutes(r chi.Router, h *handlers.DomainHandler) {
	if h == nil {
		return
	}
	r.Route("/domain", func(dr chi.Router) {
		dr.Post("/distances", h.Distances)
		dr.Post("/thresholds", h.Thresholds)
		dr.Post("/coverage", h.Coverage)
		dr.Post("/scan", h.Scan)
	})
}
