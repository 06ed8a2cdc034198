// Package dispatch orchestrates one transition event end to end: resolve the
// action config, open an execution log record, run the matching executor,
// and finalize the record.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/event"
	"github.com/statusops/statushook/internal/execlog"
	"github.com/statusops/statushook/internal/executor"
	"github.com/statusops/statushook/internal/log"
)

// ConfigResolver resolves at most one enabled action config for a transition.
type ConfigResolver interface {
	FindForTransition(ctx context.Context, fromStatusID *int64, toStatusID int64, projectID *int64) (*action.Config, error)
}

// LogStore records dispatch attempts.
type LogStore interface {
	Create(ctx context.Context, req execlog.CreateRequest) (*execlog.Handle, error)
	Complete(ctx context.Context, h *execlog.Handle, success bool, text string, finishedAt time.Time) error
}

// ExecutorFactory binds a config to its executor. Swappable in tests.
type ExecutorFactory func(cfg *action.Config) (executor.Executor, error)

// Dispatcher runs actions for transition events. A dispatch can fail; the
// dispatcher cannot: no executor outcome, log write error, or panic ever
// propagates back into the code path that delivered the event.
type Dispatcher struct {
	configs     ConfigResolver
	logs        LogStore
	newExecutor ExecutorFactory
	logger      *slog.Logger
}

// New creates a Dispatcher over the config resolver and log store.
func New(configs ConfigResolver, logs LogStore) *Dispatcher {
	return &Dispatcher{
		configs:     configs,
		logs:        logs,
		newExecutor: executor.ForConfig,
		logger:      log.WithComponent("dispatch"),
	}
}

// Dispatch resolves and runs at most one action for the transition and
// returns the execution log record id, or "" when no config applied (no
// record is written in that case). It never returns an error.
func (d *Dispatcher) Dispatch(ctx context.Context, t event.Transition) (logID string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("dispatch panicked", "issue_id", t.IssueID, "panic", fmt.Sprintf("%v", r))
		}
	}()

	var projectID *int64
	if t.ProjectID != 0 {
		projectID = &t.ProjectID
	}
	cfg, err := d.configs.FindForTransition(ctx, t.OldStatusID, t.NewStatusID, projectID)
	if err != nil {
		d.logger.Error("failed to resolve action config", "issue_id", t.IssueID, "error", err)
		return ""
	}
	if cfg == nil {
		d.logger.Debug("no action config for transition",
			"issue_id", t.IssueID,
			"to_status_id", t.NewStatusID,
		)
		return ""
	}

	logger := log.WithAction(cfg.Name).With("issue_id", t.IssueID)
	logger.Info("dispatching action", "type", cfg.Type, "timeout", cfg.Timeout())

	params := t.Params()

	handle, err := d.logs.Create(ctx, execlog.CreateRequest{
		IssueID:      t.IssueID,
		FromStatusID: t.OldStatusID,
		ToStatusID:   t.NewStatusID,
		ConfigID:     &cfg.ID,
		UserID:       t.UserID,
		Params:       params,
	})
	if err != nil {
		// Logging failure stays in diagnostics; the transition proceeds.
		logger.Error("failed to create execution log", "error", err)
		return ""
	}

	success, text := d.execute(ctx, cfg, params, logger)

	if err := d.logs.Complete(ctx, handle, success, text, time.Now()); err != nil {
		logger.Error("failed to finalize execution log", "log_id", handle.ID(), "error", err)
	}
	return handle.ID()
}

// execute runs the config's executor and normalizes the outcome into a
// (success, text) pair. Executor panics count as failures.
func (d *Dispatcher) execute(ctx context.Context, cfg *action.Config, params map[string]any, logger *slog.Logger) (success bool, text string) {
	defer func() {
		if r := recover(); r != nil {
			success = false
			text = fmt.Sprintf("action panicked: %v", r)
			logger.Error("action panicked", "panic", fmt.Sprintf("%v", r))
		}
	}()

	exec, err := d.newExecutor(cfg)
	if err != nil {
		logger.Error("no executor for action", "error", err)
		return false, err.Error()
	}

	output, err := exec.Run(ctx, params, cfg.Timeout())
	if err != nil {
		logger.Warn("action failed", "error", err)
		return false, err.Error()
	}

	logger.Info("action succeeded")
	return true, output
}
