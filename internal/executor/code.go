package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/expr-lang/expr"
)

// Code evaluates an operator-supplied expression with every parameter key
// bound as a named value in the evaluation context.
//
// The original design evaluated raw interpreted code with full language
// capability. Here the body is an expr program: no I/O, no imports, no
// ambient authority beyond the injected bindings. Output written via the
// provided print(...) function goes to an explicit buffer returned with the
// result, never to a globally redirected stream. Still an administrator-only
// feature: the expression sees every dispatch parameter.
type Code struct {
	Source string
}

// Run compiles and evaluates the expression. The result text is everything
// print(...) emitted, with the expression's value (if any) appended as a
// textual representation. Compile and runtime errors are failures.
func (c *Code) Run(ctx context.Context, params map[string]any, timeout time.Duration) (string, error) {
	var buf strings.Builder

	env := make(map[string]any, len(params)+1)
	for k, v := range params {
		env[k] = v
	}
	env["print"] = func(args ...any) any {
		fmt.Fprintln(&buf, args...)
		return nil
	}

	program, err := expr.Compile(c.Source)
	if err != nil {
		return "", fmt.Errorf("compile code: %w", err)
	}

	type result struct {
		value any
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := expr.Run(program, env)
		done <- result{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-timer.C:
		return "", &TimeoutError{Timeout: timeout}
	case res := <-done:
		if res.err != nil {
			return "", fmt.Errorf("evaluate code: %w", res.err)
		}
		output := buf.String()
		if res.value != nil {
			if output != "" && !strings.HasSuffix(output, "\n") {
				output += "\n"
			}
			output += fmt.Sprintf("Return value: %v", res.value)
		}
		if output == "" {
			output = "Code evaluated successfully"
		}
		return output, nil
	}
}
