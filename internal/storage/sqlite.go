package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// OpenSQLite opens (and creates if needed) the SQLite database at path and
// ensures required tables exist.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite directory: %w", err)
	}

	// Pragmas go in the DSN so they apply to every pooled connection.
	// Foreign keys must be on so deleting a config cascades to its
	// execution logs.
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := BootstrapSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BootstrapSQLite creates tables/indexes if missing.
func BootstrapSQLite(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_configs (
  id              INTEGER PRIMARY KEY AUTOINCREMENT,
  name            TEXT NOT NULL,
  description     TEXT NOT NULL DEFAULT '',
  from_status_id  INTEGER,
  to_status_id    INTEGER NOT NULL,
  project_id      INTEGER,
  action_type     TEXT NOT NULL,
  body            TEXT NOT NULL DEFAULT '',
  endpoint_url    TEXT NOT NULL DEFAULT '',
  enabled         INTEGER NOT NULL DEFAULT 1,
  timeout_seconds INTEGER NOT NULL DEFAULT 30,
  environment     TEXT NOT NULL DEFAULT '',
  created_at      TEXT NOT NULL,
  updated_at      TEXT NOT NULL
);`,
		`CREATE TABLE IF NOT EXISTS execution_logs (
  id              TEXT PRIMARY KEY,
  issue_id        INTEGER NOT NULL,
  from_status_id  INTEGER,
  to_status_id    INTEGER NOT NULL,
  config_id       INTEGER REFERENCES action_configs(id) ON DELETE CASCADE,
  user_id         INTEGER,
  executed_at     TEXT NOT NULL,
  started_at      TEXT,
  finished_at     TEXT,
  success         INTEGER NOT NULL DEFAULT 0,
  output          TEXT NOT NULL DEFAULT '',
  error_message   TEXT NOT NULL DEFAULT '',
  captured_params TEXT NOT NULL DEFAULT ''
);`,
		`CREATE INDEX IF NOT EXISTS action_configs_transition_idx ON action_configs(to_status_id, from_status_id);`,
		`CREATE INDEX IF NOT EXISTS action_configs_project_idx ON action_configs(project_id);`,
		`CREATE INDEX IF NOT EXISTS action_configs_enabled_idx ON action_configs(enabled);`,
		`CREATE INDEX IF NOT EXISTS execution_logs_issue_idx ON execution_logs(issue_id);`,
		`CREATE INDEX IF NOT EXISTS execution_logs_executed_at_idx ON execution_logs(executed_at);`,
		`CREATE INDEX IF NOT EXISTS execution_logs_success_idx ON execution_logs(success);`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap sqlite: %w", err)
		}
	}
	return nil
}
