package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// RouterConfig tunes per-router behavior.
type RouterConfig struct {
	// AllowedOrigins is passed through to the CORS middleware.
	AllowedOrigins []string
	// IngestRPS and IngestBurst rate-limit the ingest endpoint, which
	// is the only write path.
	IngestRPS   float64
	IngestBurst int
}

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	ingestLimiter := newRateLimitMiddleware(rate.Limit(cfg.IngestRPS), cfg.IngestBurst)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.With(ingestLimiter).Post("/ingest", h.Ingest)

		r.Get("/batches", h.ListBatches)
		r.Get("/batches/{id}", h.GetBatch)
		r.Get("/batches/{id}/entities", h.GetBatchEntities)
		r.Get("/recent", h.Recent)
		r.Get("/stats", h.Stats)
	})

	return r
}

// newRateLimitMiddleware rejects requests over the limit with 429
// rather than queueing them.
func newRateLimitMiddleware(rps rate.Limit, burst int) func(http.Handler) http.Handler {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = int(rps) * 2
	}
	limiter := rate.NewLimiter(rps, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
