// Package event defines the transition notification consumed by the
// dispatcher and the flat parameter map handed to executors.
package event

import (
	"time"
)

// Transition is one issue status change as reported by the host tracker.
// OldStatusID is nil when the prior state is unknown.
type Transition struct {
	IssueID       int64
	IssueSubject  string
	ProjectID     int64
	ProjectName   string
	OldStatusID   *int64
	OldStatusName string
	NewStatusID   int64
	NewStatusName string
	AssigneeID    *int64
	AssigneeName  string
	AuthorID      int64
	AuthorName    string
	CreatedOn     time.Time
	UpdatedOn     time.Time

	// UserID is the acting user that triggered the transition, if known.
	UserID *int64
}

// Params builds the flat parameter map passed to every executor. Keys are
// stable; timestamps are ISO-8601 strings; absent optional ids are nil.
func (t Transition) Params() map[string]any {
	var oldID any
	if t.OldStatusID != nil {
		oldID = *t.OldStatusID
	}
	var assigneeID any
	if t.AssigneeID != nil {
		assigneeID = *t.AssigneeID
	}
	return map[string]any{
		"issue_id":        t.IssueID,
		"issue_subject":   t.IssueSubject,
		"project_id":      t.ProjectID,
		"project_name":    t.ProjectName,
		"old_status_id":   oldID,
		"old_status_name": t.OldStatusName,
		"new_status_id":   t.NewStatusID,
		"new_status_name": t.NewStatusName,
		"assignee_id":     assigneeID,
		"assignee_name":   t.AssigneeName,
		"author_id":       t.AuthorID,
		"author_name":     t.AuthorName,
		"created_on":      t.CreatedOn.UTC().Format(time.RFC3339),
		"updated_on":      t.UpdatedOn.UTC().Format(time.RFC3339),
	}
}
