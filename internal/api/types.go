package api

import (
	"time"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/execlog"
)

// ActionRequest is the JSON body for creating or updating an action config.
type ActionRequest struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	FromStatusID   *int64 `json:"from_status_id"`
	ToStatusID     int64  `json:"to_status_id"`
	ProjectID      *int64 `json:"project_id"`
	Type           string `json:"type"`
	Body           string `json:"body"`
	EndpointURL    string `json:"endpoint_url"`
	Enabled        *bool  `json:"enabled"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Environment    string `json:"environment"`
}

// ActionResponse is the JSON representation of an action config.
type ActionResponse struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description,omitempty"`
	FromStatusID   *int64 `json:"from_status_id"`
	ToStatusID     int64  `json:"to_status_id"`
	ProjectID      *int64 `json:"project_id"`
	Type           string `json:"type"`
	Body           string `json:"body,omitempty"`
	EndpointURL    string `json:"endpoint_url,omitempty"`
	Enabled        bool   `json:"enabled"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Environment    string `json:"environment,omitempty"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// LogResponse is the JSON representation of an execution log record.
type LogResponse struct {
	ID             string  `json:"id"`
	IssueID        int64   `json:"issue_id"`
	FromStatusID   *int64  `json:"from_status_id"`
	ToStatusID     int64   `json:"to_status_id"`
	ConfigID       *int64  `json:"config_id"`
	UserID         *int64  `json:"user_id"`
	ExecutedAt     string  `json:"executed_at"`
	StartedAt      *string `json:"started_at"`
	FinishedAt     *string `json:"finished_at"`
	DurationMS     int64   `json:"duration_ms"`
	Success        bool    `json:"success"`
	Output         string  `json:"output,omitempty"`
	ErrorMessage   string  `json:"error_message,omitempty"`
	CapturedParams string  `json:"captured_params,omitempty"`
}

// TestRequest is the JSON body for POST /actions/{id}/test. All fields
// are optional; zero values fall back to synthetic defaults.
type TestRequest struct {
	IssueID      int64  `json:"issue_id"`
	IssueSubject string `json:"issue_subject"`
	ProjectID    int64  `json:"project_id"`
	ProjectName  string `json:"project_name"`
}

// TestResponse reports the outcome of a test dispatch.
type TestResponse struct {
	LogID string       `json:"log_id"`
	Log   *LogResponse `json:"log,omitempty"`
}

// HealthzResponse is the GET /healthz payload.
type HealthzResponse struct {
	Status         string `json:"status"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	ActionsTotal   int    `json:"actions_total"`
	ActionsEnabled int    `json:"actions_enabled"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toActionResponse(cfg *action.Config) *ActionResponse {
	return &ActionResponse{
		ID:             cfg.ID,
		Name:           cfg.Name,
		Description:    cfg.Description,
		FromStatusID:   cfg.FromStatusID,
		ToStatusID:     cfg.ToStatusID,
		ProjectID:      cfg.ProjectID,
		Type:           string(cfg.Type),
		Body:           cfg.Body,
		EndpointURL:    cfg.EndpointURL,
		Enabled:        cfg.Enabled,
		TimeoutSeconds: cfg.TimeoutSeconds,
		Environment:    cfg.Environment,
		CreatedAt:      cfg.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      cfg.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toLogResponse(rec *execlog.Record) *LogResponse {
	resp := &LogResponse{
		ID:             rec.ID,
		IssueID:        rec.IssueID,
		FromStatusID:   rec.FromStatusID,
		ToStatusID:     rec.ToStatusID,
		ConfigID:       rec.ConfigID,
		UserID:         rec.UserID,
		ExecutedAt:     rec.ExecutedAt.UTC().Format(time.RFC3339),
		DurationMS:     rec.DurationMS(),
		Success:        rec.Success,
		Output:         rec.Output,
		ErrorMessage:   rec.ErrorMessage,
		CapturedParams: rec.CapturedParams,
	}
	if rec.StartedAt != nil {
		s := rec.StartedAt.UTC().Format(time.RFC3339)
		resp.StartedAt = &s
	}
	if rec.FinishedAt != nil {
		s := rec.FinishedAt.UTC().Format(time.RFC3339)
		resp.FinishedAt = &s
	}
	return resp
}

func (r *ActionRequest) toConfig(id int64) *action.Config {
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &action.Config{
		ID:             id,
		Name:           r.Name,
		Description:    r.Description,
		FromStatusID:   r.FromStatusID,
		ToStatusID:     r.ToStatusID,
		ProjectID:      r.ProjectID,
		Type:           action.Kind(r.Type),
		Body:           r.Body,
		EndpointURL:    r.EndpointURL,
		Enabled:        enabled,
		TimeoutSeconds: r.TimeoutSeconds,
		Environment:    r.Environment,
	}
}
