// Package api provides the HTTP API server and handlers for Satin.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ilbumi/satin/internal/auth"
	"github.com/ilbumi/satin/internal/sse"
	"github.com/ilbumi/satin/internal/store"
)

// Options carries the optional collaborators of the API server.
type Options struct {
	Auth           *auth.Authenticator // nil or disabled: no bearer checks
	SSE            *sse.Manager        // nil: no event stream route
	Backend        store.Backend       // probed by the health check
	RateLimiter    *RateLimiter        // nil: no rate limiting
	CORSOrigins    []string
	MaxUploadBytes int64
	Version        string
	Logger         *slog.Logger
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	auth       *auth.Authenticator
	sseManager *sse.Manager
	sseHandler *sse.Handler
	backend    store.Backend
	maxUpload  int64
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		services:   services,
		auth:       opts.Auth,
		sseManager: opts.SSE,
		backend:    opts.Backend,
		maxUpload:  opts.MaxUploadBytes,
		router:     chi.NewRouter(),
		logger:     opts.Logger,
	}
	if opts.SSE != nil {
		s.sseHandler = sse.NewHandler(opts.SSE, opts.Logger)
	}

	s.setupMiddleware(opts)

	humaConfig := huma.DefaultConfig("Satin API", opts.Version)
	humaConfig.CreateHooks = nil
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, e.g. to render the OpenAPI document.
func (s *Server) API() huma.API {
	return s.api
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(opts Options) {
	s.router.Use(middleware.RealIP)
	s.router.Use(requestID)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RateLimiter != nil {
		s.router.Use(RateLimitMiddleware(opts.RateLimiter, s.logger))
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerProjectRoutes()
	s.registerImageRoutes()
	s.registerAnnotationRoutes()
	s.registerTagRoutes()
	s.registerTaskRoutes()
	s.registerMLJobRoutes()
	s.registerSearchRoutes()

	if s.sseHandler != nil {
		s.router.With(s.requireAuth).Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
