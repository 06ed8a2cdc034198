package executor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/statusops/statushook/internal/log"
	"github.com/statusops/statushook/internal/normalize"
)

// terminationGracePeriod is the time we wait after SIGTERM before SIGKILL.
const terminationGracePeriod = 5 * time.Second

// Process executes a shell script action. The script body is materialized
// into a uniquely named temporary file owned by this invocation, so
// concurrent dispatches never share state.
type Process struct {
	Script   string
	ExtraEnv []string

	// Dir overrides the temp directory; empty means os.TempDir().
	Dir string
}

// Run writes the script to a temp file, spawns it with the parameter map
// exported as REDMINE_* environment variables, and captures stdout/stderr to
// dedicated files. The temp script and capture files are removed on every
// exit path.
func (p *Process) Run(ctx context.Context, params map[string]any, timeout time.Duration) (string, error) {
	logger := log.WithComponent("executor.process")

	script, err := os.CreateTemp(p.Dir, "statushook-*.sh")
	if err != nil {
		return "", fmt.Errorf("create script file: %w", err)
	}
	scriptPath := script.Name()
	outPath := scriptPath + ".out"
	errPath := scriptPath + ".err"
	defer func() {
		_ = os.Remove(scriptPath)
		_ = os.Remove(outPath)
		_ = os.Remove(errPath)
	}()

	if _, err := script.WriteString(p.Script); err != nil {
		_ = script.Close()
		return "", fmt.Errorf("write script file: %w", err)
	}
	if err := script.Close(); err != nil {
		return "", fmt.Errorf("close script file: %w", err)
	}
	if err := os.Chmod(scriptPath, 0o755); err != nil {
		return "", fmt.Errorf("chmod script file: %w", err)
	}

	stdout, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create stdout capture: %w", err)
	}
	defer stdout.Close()
	stderr, err := os.Create(errPath)
	if err != nil {
		return "", fmt.Errorf("create stderr capture: %w", err)
	}
	defer stderr.Close()

	cmd := exec.Command(scriptPath)
	cmd.Env = p.buildEnv(params)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("spawning script", "path", scriptPath, "timeout", timeout)

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start script: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		p.terminate(cmd, waitErr, logger)
		return "", ctx.Err()

	case <-timer.C:
		logger.Warn("script timed out, sending SIGTERM", "timeout", timeout)
		p.terminate(cmd, waitErr, logger)
		return "", &TimeoutError{Timeout: timeout}

	case err := <-waitErr:
		return p.collect(err, outPath, errPath)
	}
}

// terminate sends SIGTERM, waits the grace period, then SIGKILLs.
func (p *Process) terminate(cmd *exec.Cmd, waitErr <-chan error, logger *slog.Logger) {
	if cmd.Process != nil {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			logger.Error("failed to send SIGTERM", "error", err)
		}
	}

	grace := time.NewTimer(terminationGracePeriod)
	defer grace.Stop()

	select {
	case <-waitErr:
	case <-grace.C:
		logger.Warn("script did not exit after SIGTERM, sending SIGKILL")
		if cmd.Process != nil {
			if err := cmd.Process.Kill(); err != nil {
				logger.Error("failed to send SIGKILL", "error", err)
			}
		}
		<-waitErr
	}
}

// collect reads the capture files and assembles the result text.
func (p *Process) collect(waitErr error, outPath, errPath string) (string, error) {
	stdout, _ := os.ReadFile(outPath)
	stderr, _ := os.ReadFile(errPath)

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			msg := fmt.Sprintf("script exited with status %d", exitErr.ExitCode())
			if len(stderr) > 0 {
				msg += ": " + strings.TrimSpace(normalize.Output(string(stderr)))
			}
			return "", fmt.Errorf("%s", msg)
		}
		return "", fmt.Errorf("wait for script: %w", waitErr)
	}

	output := string(stdout)
	if len(stderr) > 0 {
		output += "\nSTDERR:\n" + normalize.Output(string(stderr))
	}
	if strings.TrimSpace(output) == "" {
		output = "Script executed successfully"
	}
	return normalize.Output(output), nil
}

// buildEnv merges the inherited environment, the config's extra entries, and
// the upper-cased, prefixed parameter map. Parameter values are sanitized so
// a value can never forge additional environment entries.
func (p *Process) buildEnv(params map[string]any) []string {
	env := os.Environ()
	env = append(env, p.ExtraEnv...)

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		name := EnvPrefix + strings.ToUpper(k)
		env = append(env, name+"="+normalize.EnvValue(paramString(params[k])))
	}
	return env
}
