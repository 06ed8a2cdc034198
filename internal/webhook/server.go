// Package webhook receives status transition notifications from the
// tracker and hands them to the dispatcher. Notification bodies are
// verified with HMAC-SHA256 when a secret is configured.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/statusops/statushook/internal/event"
)

// TransitionDispatcher runs the configured action for a transition and
// returns the execution log id, or "" when nothing matched.
type TransitionDispatcher interface {
	Dispatch(ctx context.Context, t event.Transition) string
}

// Server is the transition listener HTTP server.
type Server struct {
	config     Config
	dispatcher TransitionDispatcher
	logger     *slog.Logger
	server     *http.Server

	// wg tracks in-flight background dispatches for graceful shutdown.
	wg sync.WaitGroup
}

// New creates a new listener instance.
func New(config Config, dispatcher TransitionDispatcher, logger *slog.Logger) *Server {
	if config.MaxBodySize == 0 {
		config.MaxBodySize = DefaultMaxBodySize
	}
	if config.Path == "" {
		config.Path = DefaultPath
	}

	return &Server{
		config:     config,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Start starts the listener HTTP server (blocking).
func (s *Server) Start(ctx context.Context) error {
	router := s.setupRoutes()

	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("listener starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("listener shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("listener shutdown failed: %w", err)
		}
		s.wg.Wait()
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("listener error: %w", err)
	}
}

// setupRoutes configures the HTTP router.
func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Post(s.config.Path, s.handleTransition)

	return r
}

// loggingMiddleware logs HTTP requests (excludes payload bodies).
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Info("listener request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// handleTransition handles incoming transition notifications.
func (s *Server) handleTransition(w http.ResponseWriter, r *http.Request) {
	limitedReader := io.LimitReader(r.Body, s.config.MaxBodySize+1)
	body, err := io.ReadAll(limitedReader)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to read request body")
		return
	}
	if int64(len(body)) > s.config.MaxBodySize {
		s.respondError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	if s.config.Secret != "" {
		signature := r.Header.Get(s.config.SignatureHeader)
		if err := VerifySignature(body, signature, s.config.Secret); err != nil {
			s.logger.Warn("notification signature rejected",
				"path", r.URL.Path,
				"error", err,
			)
			s.respondError(w, http.StatusForbidden, "forbidden")
			return
		}
	}

	transition, ok, err := ParseTransition(body)
	if err != nil {
		s.logger.Warn("notification rejected", "error", err)
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !ok {
		// Valid notification without a status change. Acknowledge so the
		// tracker does not retry.
		s.respondJSON(w, http.StatusOK, AcceptedResponse{Status: "ignored"})
		return
	}

	s.logger.Info("transition received",
		"issue_id", transition.IssueID,
		"new_status_id", transition.NewStatusID,
	)

	if s.config.Sync {
		logID := s.dispatcher.Dispatch(r.Context(), transition)
		s.respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted", LogID: logID})
		return
	}

	// The request context dies when the response is written; dispatch on a
	// background context so the action outlives the HTTP exchange.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatcher.Dispatch(context.Background(), transition)
	}()

	s.respondJSON(w, http.StatusAccepted, AcceptedResponse{Status: "accepted"})
}

// respondJSON sends a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends a JSON error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, ErrorResponse{Error: message})
}
