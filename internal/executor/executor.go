// Package executor implements the three action execution strategies behind a
// single run contract: shell process, HTTP callback, and embedded expression.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/statusops/statushook/internal/action"
)

// Executor runs one action kind against a parameter map under a hard
// wall-clock deadline. The returned string is the captured, normalized
// output; any error marks the dispatch as failed.
type Executor interface {
	Run(ctx context.Context, params map[string]any, timeout time.Duration) (string, error)
}

// TimeoutError reports that an execution exceeded its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("execution timed out after %s", e.Timeout)
}

// EnvPrefix namespaces every parameter key in a process action's environment.
const EnvPrefix = "REDMINE_"

// ForConfig binds a config to the executor implementing its action type.
func ForConfig(cfg *action.Config) (Executor, error) {
	switch cfg.Type {
	case action.KindProcess:
		return &Process{Script: cfg.Body, ExtraEnv: cfg.EnvEntries()}, nil
	case action.KindHTTP:
		return &HTTP{URL: cfg.EndpointURL}, nil
	case action.KindEmbedded:
		return &Code{Source: cfg.Body}, nil
	default:
		return nil, fmt.Errorf("unsupported action type %q", cfg.Type)
	}
}

// paramString renders a parameter value for environment export. Nil values
// become empty strings rather than the literal "<nil>".
func paramString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
