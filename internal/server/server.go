// package server exposes the playlist service over HTTP
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/playlists"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Middleware wraps an http.Handler and returns a new http.Handler with additional behavior.
type Middleware func(http.Handler) http.Handler

// UserLookup resolves the acting user from an id supplied by the identity layer.
type UserLookup interface {
	Get(ctx context.Context, id string) (*models.User, error)
}

// Config holds server configuration.
type Config struct {
	Addr          string
	Logger        *log.Logger
	RefreshMaxAge time.Duration // default max age for refresh-all when the query omits it
}

// Server is the HTTP API for dynamic playlists.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	logger   *log.Logger
}

// NewServer creates a new API server.
func NewServer(svc *playlists.Service, users UserLookup, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	router := chi.NewRouter()

	s := &Server{
		router:   router,
		handlers: NewHandlers(svc, cfg.RefreshMaxAge),
		logger:   logger,
	}

	s.setupMiddleware(users)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware(users UserLookup) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(ActorResolver(users))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/health", h.Health)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/templates", h.ListTemplates)
		r.Post("/templates/{id}/playlists", h.CreateFromTemplate)

		r.Post("/playlists", h.CreatePlaylist)
		r.Post("/playlists/preview", h.Preview)
		r.Post("/playlists/refresh-all", h.RefreshAll)
		r.Get("/playlists/{id}", h.GetPlaylist)
		r.Post("/playlists/{id}/refresh", h.RefreshPlaylist)
		r.Put("/playlists/{id}/criteria", h.UpdateCriteria)
	})
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.server.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errs := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}
