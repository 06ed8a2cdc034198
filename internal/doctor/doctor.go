// Package doctor validates statushook configuration and the runtime
// environment actions execute in.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/config"
	"github.com/statusops/statushook/internal/storage"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded config against the host environment.
type Doctor struct {
	cfg        *config.Config
	configPath string
}

// New creates a Doctor from a loaded config and its source path.
func New(cfg *config.Config, configPath string) *Doctor {
	return &Doctor{cfg: cfg, configPath: configPath}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate(ctx context.Context) *Result {
	r := &Result{Valid: true}

	d.checkStorage(ctx, r)
	d.checkShell(r)
	d.checkTempDir(r)
	d.checkWebhook(r)
	d.checkAPI(r)
	d.checkChecksums(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// checkStorage verifies the database opens and counts configured actions.
func (d *Doctor) checkStorage(ctx context.Context, r *Result) {
	if d.cfg.Storage.Path == "" {
		d.addError(r, "storage", "storage.path", "storage.path is required")
		return
	}

	db, err := storage.OpenSQLite(ctx, d.cfg.Storage.Path)
	if err != nil {
		d.addError(r, "storage", "storage.path",
			fmt.Sprintf("cannot open database at %s: %v", d.cfg.Storage.Path, err))
		return
	}
	defer db.Close()

	total, enabled, err := action.NewStore(db).Count(ctx)
	if err != nil {
		d.addError(r, "storage", "storage.path", fmt.Sprintf("cannot query action configs: %v", err))
		return
	}
	if total == 0 {
		d.addWarning(r, "storage", "", "no action configs defined; transitions will be ignored")
	} else if enabled == 0 {
		d.addWarning(r, "storage", "", "all action configs are disabled")
	}
}

// checkShell verifies /bin/sh exists, process actions depend on it.
func (d *Doctor) checkShell(r *Result) {
	info, err := os.Stat("/bin/sh")
	if err != nil {
		d.addError(r, "environment", "", "/bin/sh not found; process actions cannot run")
		return
	}
	if info.Mode()&0o111 == 0 {
		d.addError(r, "environment", "", "/bin/sh is not executable")
	}
}

// checkTempDir verifies scripts and capture files can be created.
func (d *Doctor) checkTempDir(r *Result) {
	f, err := os.CreateTemp("", "statushook-doctor-*")
	if err != nil {
		d.addError(r, "environment", "",
			fmt.Sprintf("temp dir %s is not writable: %v", os.TempDir(), err))
		return
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}

// checkWebhook validates the listener address and signing setup.
func (d *Doctor) checkWebhook(r *Result) {
	if d.cfg.Webhook.Listen == "" {
		d.addError(r, "webhook", "webhook.listen", "webhook.listen is required")
	} else if _, _, err := net.SplitHostPort(d.cfg.Webhook.Listen); err != nil {
		d.addError(r, "webhook", "webhook.listen",
			fmt.Sprintf("invalid listen address %q: %v", d.cfg.Webhook.Listen, err))
	}

	if d.cfg.Webhook.Secret == "" {
		d.addWarning(r, "webhook", "webhook.secret",
			"no secret configured; notifications are accepted unsigned")
	}
	if !strings.HasPrefix(d.cfg.Webhook.Path, "/") {
		d.addError(r, "webhook", "webhook.path",
			fmt.Sprintf("path %q must start with /", d.cfg.Webhook.Path))
	}
}

// checkAPI validates admin API auth and token scopes.
func (d *Doctor) checkAPI(r *Result) {
	if !d.cfg.API.Enabled {
		return
	}

	if d.cfg.API.Listen == "" {
		d.addError(r, "api", "api.listen", "api.listen is required when API is enabled")
	}
	if d.cfg.API.Auth.APIKey == "" && len(d.cfg.API.Auth.Tokens) == 0 {
		d.addError(r, "api", "api.auth", "API enabled but no authentication configured")
	}
	if d.cfg.API.Auth.APIKey != "" && len(d.cfg.API.Auth.Tokens) > 0 {
		d.addWarning(r, "api", "api.auth",
			"both api_key and tokens configured; prefer tokens array only")
	}

	validScopes := map[string]bool{
		"*": true, "actions:ro": true, "actions:rw": true, "logs:ro": true, "logs:rw": true,
	}
	for i, token := range d.cfg.API.Auth.Tokens {
		for j, scope := range token.Scopes {
			if !validScopes[scope] {
				d.addError(r, "token_scopes", fmt.Sprintf("api.auth.tokens[%d].scopes[%d]", i, j),
					fmt.Sprintf("unknown scope %q (expected *, actions:ro, actions:rw, logs:ro, logs:rw)", scope))
			}
		}
	}
}

// checkChecksums warns when the config file is not hash-locked.
func (d *Doctor) checkChecksums(r *Result) {
	if d.configPath == "" {
		return
	}
	dir := filepath.Dir(d.configPath)
	if _, err := os.Stat(filepath.Join(dir, ".checksums")); os.IsNotExist(err) {
		d.addWarning(r, "checksums", "",
			fmt.Sprintf("config is not locked; run 'statushook config lock --config %s'", d.configPath))
	}
}

// FormatHuman returns a human-readable validation report.
func FormatHuman(r *Result) string {
	var b strings.Builder

	if r.Valid && len(r.Warnings) == 0 {
		b.WriteString("Configuration valid.\n")
		return b.String()
	}

	if r.Valid && len(r.Warnings) > 0 {
		b.WriteString("Configuration valid")
		fmt.Fprintf(&b, " (%d warning(s))\n", len(r.Warnings))
	}

	if !r.Valid {
		fmt.Fprintf(&b, "Configuration invalid (%d error(s), %d warning(s))\n", len(r.Errors), len(r.Warnings))
	}

	for _, e := range r.Errors {
		if e.Field != "" {
			fmt.Fprintf(&b, "  ERROR [%s] %s: %s\n", e.Category, e.Field, e.Message)
		} else {
			fmt.Fprintf(&b, "  ERROR [%s] %s\n", e.Category, e.Message)
		}
	}
	for _, w := range r.Warnings {
		if w.Field != "" {
			fmt.Fprintf(&b, "  WARN  [%s] %s: %s\n", w.Category, w.Field, w.Message)
		} else {
			fmt.Fprintf(&b, "  WARN  [%s] %s\n", w.Category, w.Message)
		}
	}

	return b.String()
}

// FormatJSON returns the result as indented JSON.
func FormatJSON(r *Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
