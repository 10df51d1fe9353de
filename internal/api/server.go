// Package api serves the optimizer over HTTP.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tripleyak/marginal-roas-optimizer/internal/model"
	"github.com/tripleyak/marginal-roas-optimizer/internal/optimizer"
	"github.com/tripleyak/marginal-roas-optimizer/internal/store"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 10 << 20

// Options configures the HTTP surface.
type Options struct {
	// RateLimit is the sustained request rate per second. 0 disables limiting.
	RateLimit   float64
	Burst       int
	CORSOrigins []string

	// Defaults fill fields a request leaves out.
	Margin   model.MarginConfig
	Settings model.RunSettings
}

// Server holds the handler dependencies. Store may be nil, in which case runs
// are not persisted and the /v1/runs routes are not mounted.
type Server struct {
	opt   *optimizer.Optimizer
	store store.Store
	opts  Options
}

// New creates a Server.
func New(opt *optimizer.Optimizer, st store.Store, opts Options) *Server {
	return &Server{opt: opt, store: st, opts: opts}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Run-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		if s.opts.RateLimit > 0 {
			r.Use(rateLimit(rate.NewLimiter(rate.Limit(s.opts.RateLimit), max(s.opts.Burst, 1))))
		}
		r.Post("/optimize", s.optimize)
		r.Post("/portfolio", s.portfolio)
		if s.store != nil {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{id}", s.getRun)
		}
	})

	return r
}

// rateLimit rejects requests with 429 once the shared token bucket is empty.
func rateLimit(lim *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter(lim)))
				respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(lim *rate.Limiter) int {
	if lim.Limit() <= 0 {
		return 1
	}
	secs := int(1/float64(lim.Limit()) + 0.999)
	return max(secs, 1)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
