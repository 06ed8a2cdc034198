package executor

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s): %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcess_Success(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\necho hi\n", Dir: dir}

	out, err := p.Run(context.Background(), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "hi") {
		t.Errorf("output = %q, want it to contain %q", out, "hi")
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("temp files left behind: %v", names)
	}
}

func TestProcess_ParamsExportedAsEnv(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\necho \"$REDMINE_NEW_STATUS_NAME/$REDMINE_ISSUE_ID\"\n", Dir: dir}

	params := map[string]any{
		"new_status_name": "Done",
		"issue_id":        int64(42),
	}
	out, err := p.Run(context.Background(), params, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "Done/42") {
		t.Errorf("output = %q, want it to contain %q", out, "Done/42")
	}
}

func TestProcess_EnvValuesCannotForgeEntries(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\necho \"subject=$REDMINE_ISSUE_SUBJECT\"\necho \"injected=$INJECTED\"\n", Dir: dir}

	params := map[string]any{
		"issue_subject": "evil\nINJECTED=yes",
	}
	out, err := p.Run(context.Background(), params, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "subject=evil INJECTED=yes") {
		t.Errorf("output = %q, want the line break flattened into the value", out)
	}
	if !strings.Contains(out, "injected=\n") {
		t.Errorf("output = %q, want no forged INJECTED variable", out)
	}
}

func TestProcess_ExtraEnvEntries(t *testing.T) {
	dir := t.TempDir()
	p := &Process{
		Script:   "#!/bin/sh\necho \"$DEPLOY_TARGET\"\n",
		ExtraEnv: []string{"DEPLOY_TARGET=staging"},
		Dir:      dir,
	}

	out, err := p.Run(context.Background(), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "staging") {
		t.Errorf("output = %q, want it to contain %q", out, "staging")
	}
}

func TestProcess_StderrAppendedOnSuccess(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\necho out\necho warn >&2\n", Dir: dir}

	out, err := p.Run(context.Background(), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out, "out") || !strings.Contains(out, "STDERR:\nwarn") {
		t.Errorf("output = %q, want stdout plus labeled stderr section", out)
	}
}

func TestProcess_NonZeroExitIsFailure(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\necho broken >&2\nexit 3\n", Dir: dir}

	_, err := p.Run(context.Background(), nil, 5*time.Second)
	if err == nil {
		t.Fatal("Run succeeded, want failure")
	}
	if !strings.Contains(err.Error(), "status 3") || !strings.Contains(err.Error(), "broken") {
		t.Errorf("error = %q, want exit status and stderr content", err)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("temp files left behind after failure: %v", names)
	}
}

func TestProcess_Timeout(t *testing.T) {
	dir := t.TempDir()
	// exec replaces the shell so SIGTERM goes directly to sleep.
	p := &Process{Script: "#!/bin/sh\nexec sleep 10\n", Dir: dir}

	start := time.Now()
	_, err := p.Run(context.Background(), nil, 1*time.Second)
	elapsed := time.Since(start)

	var terr *TimeoutError
	if !errors.As(err, &terr) {
		t.Fatalf("Run error = %v, want TimeoutError", err)
	}
	if !strings.Contains(err.Error(), "timed out") {
		t.Errorf("error = %q, want a timeout-specific message", err)
	}
	// 1s timeout + grace margin.
	if elapsed > 8*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Errorf("temp files left behind after timeout: %v", names)
	}
}

func TestProcess_EmptyOutputPlaceholder(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\ntrue\n", Dir: dir}

	out, err := p.Run(context.Background(), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out != "Script executed successfully" {
		t.Errorf("output = %q, want placeholder", out)
	}
}

func TestProcess_OutputNewlinesNormalized(t *testing.T) {
	dir := t.TempDir()
	p := &Process{Script: "#!/bin/sh\nprintf 'a\\r\\nb\\r\\n'\n", Dir: dir}

	out, err := p.Run(context.Background(), nil, 5*time.Second)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(out, "\r") {
		t.Errorf("output = %q, want CRLF normalized to LF", out)
	}
	if !strings.Contains(out, "a\nb") {
		t.Errorf("output = %q, want content preserved", out)
	}
}
