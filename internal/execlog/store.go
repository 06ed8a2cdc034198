// Package execlog is the append-only record of every dispatch attempt.
package execlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxOutputBytes caps captured output and error text per record.
const maxOutputBytes = 64 * 1024

// ErrAlreadyCompleted reports a double completion of the same handle. This is
// a programming error in the caller, not an operational condition.
var ErrAlreadyCompleted = errors.New("execution log already completed")

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("execution log not found")

// Record is one dispatch attempt. Once FinishedAt is set the record is never
// mutated again.
type Record struct {
	ID             string
	IssueID        int64
	FromStatusID   *int64
	ToStatusID     int64
	ConfigID       *int64
	UserID         *int64
	ExecutedAt     time.Time
	StartedAt      *time.Time
	FinishedAt     *time.Time
	Success        bool
	Output         string
	ErrorMessage   string
	CapturedParams string
}

// DurationMS returns the execution duration in milliseconds, or -1 when the
// record is still open.
func (r *Record) DurationMS() int64 {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return -1
	}
	return r.FinishedAt.Sub(*r.StartedAt).Milliseconds()
}

// CreateRequest carries the linkage fields for a new record.
type CreateRequest struct {
	IssueID      int64
	FromStatusID *int64
	ToStatusID   int64
	ConfigID     *int64
	UserID       *int64
	Params       map[string]any
}

// Handle references a pending record for later one-shot completion.
type Handle struct {
	id        string
	completed bool
}

// ID returns the record id behind the handle.
func (h *Handle) ID() string { return h.id }

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	Success  *bool
	IssueID  *int64
	ConfigID *int64
	Limit    int
}

// Store persists execution log records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an open database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a pending record with executed_at = started_at = now and
// returns a handle for later completion. The parameter map is serialized as
// the captured snapshot.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Handle, error) {
	if req.IssueID == 0 {
		return nil, fmt.Errorf("issue id is zero")
	}
	if req.ToStatusID == 0 {
		return nil, fmt.Errorf("to status id is zero")
	}

	var paramsJSON string
	if req.Params != nil {
		b, err := json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("marshal captured parameters: %w", err)
		}
		paramsJSON = string(b)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err := s.db.ExecContext(ctx, `
INSERT INTO execution_logs(
  id, issue_id, from_status_id, to_status_id, config_id, user_id,
  executed_at, started_at, success, captured_params
)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, 0, ?);
`, id, req.IssueID, nullableID(req.FromStatusID), req.ToStatusID, nullableID(req.ConfigID),
		nullableID(req.UserID), now, now, paramsJSON)
	if err != nil {
		return nil, fmt.Errorf("insert execution log: %w", err)
	}
	return &Handle{id: id}, nil
}

// Complete finalizes the record exactly once. On success the text is stored
// as output; on failure as error_message. A second call on the same handle
// returns ErrAlreadyCompleted.
func (s *Store) Complete(ctx context.Context, h *Handle, success bool, text string, finishedAt time.Time) error {
	if h == nil {
		return fmt.Errorf("nil execution log handle")
	}
	if h.completed {
		return ErrAlreadyCompleted
	}

	if len(text) > maxOutputBytes {
		text = text[:maxOutputBytes]
	}
	output, errMsg := "", ""
	if success {
		output = text
	} else {
		errMsg = text
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE execution_logs
SET success = ?, output = ?, error_message = ?, finished_at = ?
WHERE id = ? AND finished_at IS NULL;
`, success, output, errMsg, finishedAt.UTC().Format(time.RFC3339Nano), h.id)
	if err != nil {
		return fmt.Errorf("complete execution log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete execution log: %w", err)
	}
	if n == 0 {
		return ErrAlreadyCompleted
	}
	h.completed = true
	return nil
}

// Get returns a single record by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+logColumns+`
FROM execution_logs
WHERE id = ?;
`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution log: %w", err)
	}
	return rec, nil
}

// List returns records most recent first, applying the filter.
func (s *Store) List(ctx context.Context, f Filter) ([]*Record, error) {
	q := `
SELECT ` + logColumns + `
FROM execution_logs
WHERE 1 = 1`
	var args []any
	if f.Success != nil {
		q += ` AND success = ?`
		args = append(args, *f.Success)
	}
	if f.IssueID != nil {
		q += ` AND issue_id = ?`
		args = append(args, *f.IssueID)
	}
	if f.ConfigID != nil {
		q += ` AND config_id = ?`
		args = append(args, *f.ConfigID)
	}
	q += ` ORDER BY executed_at DESC, id DESC`
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	q += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list execution logs: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list execution logs: %w", err)
	}
	return out, nil
}

const logColumns = `id, issue_id, from_status_id, to_status_id, config_id, user_id,
  executed_at, started_at, finished_at, success, output, error_message, captured_params`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r          Record
		fromStatus sql.NullInt64
		configID   sql.NullInt64
		userID     sql.NullInt64
		executedS  string
		startedS   sql.NullString
		finishedS  sql.NullString
	)
	err := row.Scan(
		&r.ID, &r.IssueID, &fromStatus, &r.ToStatusID, &configID, &userID,
		&executedS, &startedS, &finishedS, &r.Success, &r.Output, &r.ErrorMessage, &r.CapturedParams,
	)
	if err != nil {
		return nil, err
	}
	if fromStatus.Valid {
		r.FromStatusID = &fromStatus.Int64
	}
	if configID.Valid {
		r.ConfigID = &configID.Int64
	}
	if userID.Valid {
		r.UserID = &userID.Int64
	}
	if t, err := time.Parse(time.RFC3339Nano, executedS); err == nil {
		r.ExecutedAt = t
	}
	if startedS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, startedS.String); err == nil {
			r.StartedAt = &t
		}
	}
	if finishedS.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedS.String); err == nil {
			r.FinishedAt = &t
		}
	}
	return &r, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
