// Package mockapi serves a local stand-in for the remote price prediction
// service. It exposes the same routes and payloads, answers from built-in
// district and market tables and derives prices deterministically from the
// request, so the engine can be run and tested without the real models.
package mockapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rewired-gh/mandinetra/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds server configuration
type Config struct {
	Addr           string
	AllowedOrigins []string
	Log            zerolog.Logger
	Now            func() time.Time
}

// Server represents the mock HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	overrides map[string]decimal.Decimal // key = selection key
}

// New creates a new mock server
func New(cfg Config) *Server {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:3000"}
	}

	s := &Server{
		router:    chi.NewRouter(),
		log:       cfg.Log.With().Str("component", "mockapi").Logger(),
		now:       cfg.Now,
		overrides: make(map[string]decimal.Decimal),
	}

	s.setupMiddleware(cfg.AllowedOrigins)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(origins []string) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID, taken from X-Request-Id when the client sends one
	s.router.Use(middleware.RequestID)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/", s.handleHome)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/commodities", s.handleCommodities)
		r.Get("/districts/{commodity}", s.handleDistricts)
		r.Get("/markets/{district}", s.handleMarkets)
		r.Post("/predict", s.handlePredict)
		r.Get("/health", s.handleHealth)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Endpoint not found")
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Handler returns the HTTP handler, for use with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetPrice pins the prediction for sel. A zero-valued sel clears all pins.
func (s *Server) SetPrice(sel models.Selection, price decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sel.IsEmpty() {
		s.overrides = make(map[string]decimal.Decimal)
		return
	}
	s.overrides[sel.Key()] = price
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting mock prediction service")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down mock prediction service")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
