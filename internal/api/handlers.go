package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/event"
	"github.com/statusops/statushook/internal/execlog"
)

// handleHealthz handles GET /healthz (no auth).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	total, enabled, err := s.actions.Count(r.Context())
	if err != nil {
		s.logger.Error("failed to count action configs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to count action configs")
		return
	}

	s.writeJSON(w, http.StatusOK, HealthzResponse{
		Status:         "ok",
		UptimeSeconds:  int64(time.Since(s.startedAt).Seconds()),
		ActionsTotal:   total,
		ActionsEnabled: enabled,
	})
}

// handleListActions handles GET /actions.
func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	configs, err := s.actions.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list action configs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list action configs")
		return
	}

	out := make([]*ActionResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, toActionResponse(cfg))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleGetAction handles GET /actions/{id}.
func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	cfg, err := s.actions.Get(r.Context(), id)
	if errors.Is(err, action.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "action config not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get action config", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get action config")
		return
	}
	s.writeJSON(w, http.StatusOK, toActionResponse(cfg))
}

// handleCreateAction handles POST /actions.
func (s *Server) handleCreateAction(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg := req.toConfig(0)
	if err := s.actions.Create(r.Context(), cfg); err != nil {
		s.writeStoreError(w, err, "failed to create action config")
		return
	}

	s.logger.Info("action config created", "id", cfg.ID, "name", cfg.Name)
	s.writeJSON(w, http.StatusCreated, toActionResponse(cfg))
}

// handleUpdateAction handles PUT /actions/{id}.
func (s *Server) handleUpdateAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	var req ActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	cfg := req.toConfig(id)
	if err := s.actions.Update(r.Context(), cfg); err != nil {
		s.writeStoreError(w, err, "failed to update action config")
		return
	}

	s.logger.Info("action config updated", "id", cfg.ID, "name", cfg.Name)
	s.writeJSON(w, http.StatusOK, toActionResponse(cfg))
}

// handleDeleteAction handles DELETE /actions/{id}. Execution logs of the
// config are removed with it.
func (s *Server) handleDeleteAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.actions.Delete(r.Context(), id); err != nil {
		s.writeStoreError(w, err, "failed to delete action config")
		return
	}

	s.logger.Info("action config deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// handleEnableAction handles POST /actions/{id}/enable.
func (s *Server) handleEnableAction(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, true)
}

// handleDisableAction handles POST /actions/{id}/disable.
func (s *Server) handleDisableAction(w http.ResponseWriter, r *http.Request) {
	s.setEnabled(w, r, false)
}

func (s *Server) setEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	if err := s.actions.SetEnabled(r.Context(), id, enabled); err != nil {
		s.writeStoreError(w, err, "failed to toggle action config")
		return
	}

	cfg, err := s.actions.Get(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err, "failed to get action config")
		return
	}
	s.writeJSON(w, http.StatusOK, toActionResponse(cfg))
}

// handleTestAction handles POST /actions/{id}/test. It dispatches a
// synthetic transition matching the config and waits for the outcome, so
// the caller sees the execution log inline.
func (s *Server) handleTestAction(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}

	cfg, err := s.actions.Get(r.Context(), id)
	if errors.Is(err, action.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "action config not found")
		return
	}
	if err != nil {
		s.writeStoreError(w, err, "failed to get action config")
		return
	}
	if !cfg.Enabled {
		s.writeError(w, http.StatusConflict, "action config is disabled")
		return
	}

	var req TestRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	t := syntheticTransition(cfg, req)
	logID := s.dispatcher.Dispatch(r.Context(), t)
	if logID == "" {
		// The transition was built from the config, so a miss means another
		// config outranked this one for the same pattern.
		s.writeError(w, http.StatusConflict, "transition resolved to a different config")
		return
	}

	resp := TestResponse{LogID: logID}
	if rec, err := s.logs.Get(r.Context(), logID); err == nil {
		resp.Log = toLogResponse(rec)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// syntheticTransition builds a test transition matching cfg's pattern.
func syntheticTransition(cfg *action.Config, req TestRequest) event.Transition {
	t := event.Transition{
		IssueID:       req.IssueID,
		IssueSubject:  req.IssueSubject,
		ProjectName:   req.ProjectName,
		OldStatusID:   cfg.FromStatusID,
		NewStatusID:   cfg.ToStatusID,
		NewStatusName: "Test Status",
		AuthorName:    "API Test",
		CreatedOn:     time.Now().UTC(),
		UpdatedOn:     time.Now().UTC(),
	}
	if t.IssueID == 0 {
		t.IssueID = 1
	}
	if t.IssueSubject == "" {
		t.IssueSubject = "Test issue"
	}
	if req.ProjectID != 0 {
		t.ProjectID = req.ProjectID
	} else if cfg.ProjectID != nil {
		t.ProjectID = *cfg.ProjectID
	}
	return t
}

// handleListLogs handles GET /logs with optional success, issue_id,
// config_id and limit query filters.
func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	var filter execlog.Filter

	q := r.URL.Query()
	if v := q.Get("success"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "success must be true or false")
			return
		}
		filter.Success = &b
	}
	if v := q.Get("issue_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "issue_id must be an integer")
			return
		}
		filter.IssueID = &id
	}
	if v := q.Get("config_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "config_id must be an integer")
			return
		}
		filter.ConfigID = &id
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	records, err := s.logs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list execution logs", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list execution logs")
		return
	}

	out := make([]*LogResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toLogResponse(rec))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleGetLog handles GET /logs/{id}.
func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.logs.Get(r.Context(), id)
	if errors.Is(err, execlog.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "execution log not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get execution log", "id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get execution log")
		return
	}
	s.writeJSON(w, http.StatusOK, toLogResponse(rec))
}

// pathID parses the {id} path parameter, writing a 400 on failure.
func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "id must be an integer")
		return 0, false
	}
	return id, true
}

// writeStoreError maps store errors to HTTP responses. Validation
// failures carry the offending field.
func (s *Server) writeStoreError(w http.ResponseWriter, err error, fallback string) {
	var verr *action.ValidationError
	switch {
	case errors.As(err, &verr):
		s.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Field: verr.Field})
	case errors.Is(err, action.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "action config not found")
	default:
		s.logger.Error(fallback, "error", err)
		s.writeError(w, http.StatusInternalServerError, fallback)
	}
}

// writeJSON sends a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError sends a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
