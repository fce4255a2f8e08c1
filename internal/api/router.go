package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maltedev/listing-report/internal/metrics"
)

type RouterConfig struct {
	AllowedOrigins []string
	// RequestTimeout bounds every request, scrape runs included.
	RequestTimeout time.Duration
}

func NewRouter(h *Handlers, m *metrics.Metrics, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Run-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)

	if m != nil {
		r.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/registries", h.ListRegistries)
		r.Get("/scrape/{registry}", h.ScrapeRegistry)
		r.Post("/scrape", h.ScrapeSites)
		r.Get("/runs", h.ListRuns)
	})

	// Legacy endpoints
	r.Get("/scrape/S24Ultra", h.ScrapeNamed(LegacyPhones))
	r.Get("/scrape/HuaweiNotebook", h.ScrapeNamed(LegacyNotebooks))

	return r
}
