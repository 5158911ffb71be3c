package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tendant/creative-analysis/pkg/creative/metrics"
)

// RouterOption configures NewRouter.
type RouterOption func(*routerConfig)

type routerConfig struct {
	registry *prometheus.Registry
	timeout  time.Duration
}

// WithRegistry exposes the registry at /metrics and records HTTP metrics.
func WithRegistry(reg *prometheus.Registry) RouterOption {
	return func(c *routerConfig) {
		c.registry = reg
	}
}

// WithTimeout bounds request handling, default 5 minutes.
func WithTimeout(d time.Duration) RouterOption {
	return func(c *routerConfig) {
		c.timeout = d
	}
}

// NewRouter mounts the analysis API under /api/v1 with health endpoints.
func NewRouter(h *AnalysisHandler, opts ...RouterOption) http.Handler {
	cfg := routerConfig{timeout: 5 * time.Minute}
	for _, o := range opts {
		o(&cfg)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.registry != nil {
		r.Use(metrics.NewMiddleware(cfg.registry).Handler)
	}
	r.Use(middleware.Timeout(cfg.timeout))

	r.Get("/healthz", h.Healthz)
	r.Get("/healthz/ready", h.Ready)
	if cfg.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.registry, promhttp.HandlerOpts{}))
	}
	r.Mount("/api/v1", h.Routes())

	return r
}
