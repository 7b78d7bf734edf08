// Package server provides the HTTP server and routing for corrscope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/corrscope/internal/config"
	"github.com/aristath/corrscope/internal/database"
	"github.com/aristath/corrscope/internal/events"
	"github.com/aristath/corrscope/internal/modules/analysis"
	"github.com/aristath/corrscope/internal/modules/marketdata"
	"github.com/aristath/corrscope/internal/modules/settings"
)

// Config holds server configuration
type Config struct {
	Port      int
	Log       zerolog.Logger
	DB        *database.DB
	Config    *config.Config
	DevMode   bool
	Cache     *marketdata.Cache
	Collector *marketdata.Collector
	Analysis  *analysis.Service
	Settings  *settings.Repository
	Bus       *events.Bus
	Events    *events.Manager
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	db          *database.DB
	cfg         *config.Config
	cache       *marketdata.Cache
	collector   *marketdata.Collector
	analysis    *analysis.Service
	settings    *settings.Repository
	events      *events.Manager
	stream      *EventsStreamHandler
	startupTime time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		db:          cfg.DB,
		cfg:         cfg.Config,
		cache:       cfg.Cache,
		collector:   cfg.Collector,
		analysis:    cfg.Analysis,
		settings:    cfg.Settings,
		events:      cfg.Events,
		stream:      NewEventsStreamHandler(cfg.Bus, cfg.Log),
		startupTime: time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	// No write timeout: a cold correlation request blocks on the serial
	// fetch for minutes, and /events/stream holds its response open.
	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		// A cold correlation request runs the full serial fetch, which at the
		// free-tier gate takes minutes, so the chi timeout middleware stays
		// off these routes. Progress streams over /events/stream meanwhile.
		r.Route("/correlation", func(r chi.Router) {
			r.Get("/", s.handleCorrelation)
			r.Get("/pair", s.handleCorrelationPair)
		})

		r.Get("/tickers", s.handleTickers)

		r.Route("/settings", func(r chi.Router) {
			r.Get("/credentials", s.handleGetCredentials)
			r.Put("/credentials", s.handlePutCredentials)
		})

		r.Post("/cache/clear", s.handleCacheClear)

		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		r.Get("/events/stream", s.stream.ServeHTTP)
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
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
