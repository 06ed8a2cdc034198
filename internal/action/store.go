package action

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a config id does not exist.
var ErrNotFound = errors.New("action config not found")

// Store persists action configs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const configColumns = `id, name, description, from_status_id, to_status_id, project_id,
  action_type, body, endpoint_url, enabled, timeout_seconds, environment, created_at, updated_at`

// Create normalizes, validates, and inserts a config. The assigned id is
// written back into cfg.
func (s *Store) Create(ctx context.Context, cfg *Config) error {
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	nowS := now.Format(time.RFC3339Nano)

	res, err := s.db.ExecContext(ctx, `
INSERT INTO action_configs(
  name, description, from_status_id, to_status_id, project_id,
  action_type, body, endpoint_url, enabled, timeout_seconds, environment, created_at, updated_at
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, cfg.Name, cfg.Description, nullableID(cfg.FromStatusID), cfg.ToStatusID, nullableID(cfg.ProjectID),
		string(cfg.Type), cfg.Body, cfg.EndpointURL, cfg.Enabled, cfg.TimeoutSeconds, cfg.Environment, nowS, nowS)
	if err != nil {
		return fmt.Errorf("insert action config: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read action config id: %w", err)
	}
	cfg.ID = id
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	return nil
}

// Update normalizes, validates, and rewrites an existing config.
func (s *Store) Update(ctx context.Context, cfg *Config) error {
	if cfg.ID == 0 {
		return fmt.Errorf("update action config: id is zero")
	}
	if cfg.TimeoutSeconds == 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
UPDATE action_configs
SET name = ?, description = ?, from_status_id = ?, to_status_id = ?, project_id = ?,
    action_type = ?, body = ?, endpoint_url = ?, enabled = ?, timeout_seconds = ?,
    environment = ?, updated_at = ?
WHERE id = ?;
`, cfg.Name, cfg.Description, nullableID(cfg.FromStatusID), cfg.ToStatusID, nullableID(cfg.ProjectID),
		string(cfg.Type), cfg.Body, cfg.EndpointURL, cfg.Enabled, cfg.TimeoutSeconds, cfg.Environment,
		now.Format(time.RFC3339Nano), cfg.ID)
	if err != nil {
		return fmt.Errorf("update action config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update action config: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	cfg.UpdatedAt = now
	return nil
}

// Get returns the config with the given id.
func (s *Store) Get(ctx context.Context, id int64) (*Config, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+configColumns+`
FROM action_configs
WHERE id = ?;
`, id)
	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get action config: %w", err)
	}
	return cfg, nil
}

// List returns all configs ordered by name.
func (s *Store) List(ctx context.Context) ([]*Config, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+configColumns+`
FROM action_configs
ORDER BY name ASC, id ASC;
`)
	if err != nil {
		return nil, fmt.Errorf("list action configs: %w", err)
	}
	defer rows.Close()

	var out []*Config
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("list action configs: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list action configs: %w", err)
	}
	return out, nil
}

// Count returns the total and enabled config counts.
func (s *Store) Count(ctx context.Context) (total, enabled int, err error) {
	row := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(enabled), 0) FROM action_configs;
`)
	if err := row.Scan(&total, &enabled); err != nil {
		return 0, 0, fmt.Errorf("count action configs: %w", err)
	}
	return total, enabled, nil
}

// SetEnabled toggles a config without touching its other fields.
func (s *Store) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE action_configs SET enabled = ?, updated_at = ? WHERE id = ?;
`, enabled, time.Now().UTC().Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("toggle action config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("toggle action config: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a config. Its execution logs cascade away with it: history
// exists only in the context of a still-declared rule.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM action_configs WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("delete action config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete action config: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindForTransition resolves at most one enabled config for a transition.
//
// Project-scoped matches always outrank global matches. Within a scope a
// config bound to the exact from-status outranks a wildcard (NULL
// from-status); remaining ties go to the most recently created config
// (highest id). Returns (nil, nil) when nothing applies.
func (s *Store) FindForTransition(ctx context.Context, fromStatusID *int64, toStatusID int64, projectID *int64) (*Config, error) {
	if projectID != nil {
		cfg, err := s.findScoped(ctx, fromStatusID, toStatusID, projectID)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	return s.findScoped(ctx, fromStatusID, toStatusID, nil)
}

func (s *Store) findScoped(ctx context.Context, fromStatusID *int64, toStatusID int64, projectID *int64) (*Config, error) {
	scope := `project_id IS NULL`
	args := []any{toStatusID}
	if projectID != nil {
		scope = `project_id = ?`
		args = append(args, *projectID)
	}
	// A NULL from-status parameter makes the equality arm vacuous, leaving
	// only wildcard configs eligible.
	args = append(args, nullableID(fromStatusID))

	row := s.db.QueryRowContext(ctx, `
SELECT `+configColumns+`
FROM action_configs
WHERE enabled = 1 AND to_status_id = ? AND `+scope+`
  AND (from_status_id IS NULL OR from_status_id = ?)
ORDER BY (from_status_id IS NULL) ASC, id DESC
LIMIT 1;
`, args...)

	cfg, err := scanConfig(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve action config: %w", err)
	}
	return cfg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConfig(row rowScanner) (*Config, error) {
	var (
		c          Config
		fromStatus sql.NullInt64
		project    sql.NullInt64
		kind       string
		createdAtS string
		updatedAtS string
	)
	err := row.Scan(
		&c.ID, &c.Name, &c.Description, &fromStatus, &c.ToStatusID, &project,
		&kind, &c.Body, &c.EndpointURL, &c.Enabled, &c.TimeoutSeconds, &c.Environment,
		&createdAtS, &updatedAtS,
	)
	if err != nil {
		return nil, err
	}
	c.Type = Kind(kind)
	if fromStatus.Valid {
		c.FromStatusID = &fromStatus.Int64
	}
	if project.Valid {
		c.ProjectID = &project.Int64
	}
	if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
		c.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, updatedAtS); err == nil {
		c.UpdatedAt = t
	}
	return &c, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
