// Package api serves the admin HTTP API: action config CRUD, execution
// log browsing, and test dispatches.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/auth"
	"github.com/statusops/statushook/internal/event"
	"github.com/statusops/statushook/internal/execlog"
)

// TransitionDispatcher runs the configured action for a transition and
// returns the execution log id, or "" when nothing matched.
type TransitionDispatcher interface {
	Dispatch(ctx context.Context, t event.Transition) string
}

// ActionStore defines the action config operations the API needs.
type ActionStore interface {
	Create(ctx context.Context, cfg *action.Config) error
	Update(ctx context.Context, cfg *action.Config) error
	Get(ctx context.Context, id int64) (*action.Config, error)
	List(ctx context.Context) ([]*action.Config, error)
	Count(ctx context.Context) (total, enabled int, err error)
	SetEnabled(ctx context.Context, id int64, enabled bool) error
	Delete(ctx context.Context, id int64) error
}

// LogStore defines the execution log operations the API needs.
type LogStore interface {
	Get(ctx context.Context, id string) (*execlog.Record, error)
	List(ctx context.Context, f execlog.Filter) ([]*execlog.Record, error)
}

// Config holds API server configuration.
type Config struct {
	Listen string
	// APIKey is the single bearer token with admin access.
	APIKey string
	// Tokens is an optional list of scoped bearer tokens.
	Tokens []auth.TokenConfig
}

// Server is the admin HTTP API server.
type Server struct {
	config     Config
	actions    ActionStore
	logs       LogStore
	dispatcher TransitionDispatcher
	logger     *slog.Logger
	server     *http.Server
	startedAt  time.Time
}

// New creates a new API server instance.
func New(config Config, actions ActionStore, logs LogStore, dispatcher TransitionDispatcher, logger *slog.Logger) *Server {
	return &Server{
		config:     config,
		actions:    actions,
		logs:       logs,
		dispatcher: dispatcher,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start starts the HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute, // test dispatches run synchronously
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("API server starting", "listen", s.config.Listen)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// Unauthenticated ops endpoint.
	r.Get("/healthz", s.handleHealthz)

	// Protected API.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.With(s.requireScopes("actions:ro")).Get("/actions", s.handleListActions)
		r.With(s.requireScopes("actions:ro")).Get("/actions/{id}", s.handleGetAction)
		r.With(s.requireScopes("actions:rw")).Post("/actions", s.handleCreateAction)
		r.With(s.requireScopes("actions:rw")).Put("/actions/{id}", s.handleUpdateAction)
		r.With(s.requireScopes("actions:rw")).Delete("/actions/{id}", s.handleDeleteAction)
		r.With(s.requireScopes("actions:rw")).Post("/actions/{id}/enable", s.handleEnableAction)
		r.With(s.requireScopes("actions:rw")).Post("/actions/{id}/disable", s.handleDisableAction)
		r.With(s.requireScopes("actions:rw")).Post("/actions/{id}/test", s.handleTestAction)

		r.With(s.requireScopes("logs:ro")).Get("/logs", s.handleListLogs)
		r.With(s.requireScopes("logs:ro")).Get("/logs/{id}", s.handleGetLog)
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
