package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func int64p(v int64) *int64 { return &v }

func TestParams_AllFieldsPresent(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)

	tr := Transition{
		IssueID:       101,
		IssueSubject:  "Deploy checklist",
		ProjectID:     7,
		ProjectName:   "Ops",
		OldStatusID:   int64p(2),
		OldStatusName: "In Progress",
		NewStatusID:   3,
		NewStatusName: "Resolved",
		AssigneeID:    int64p(5),
		AssigneeName:  "Alex Doe",
		AuthorID:      2,
		AuthorName:    "Sam Roe",
		CreatedOn:     created,
		UpdatedOn:     updated,
	}

	params := tr.Params()

	want := map[string]any{
		"issue_id":        int64(101),
		"issue_subject":   "Deploy checklist",
		"project_id":      int64(7),
		"project_name":    "Ops",
		"old_status_id":   int64(2),
		"old_status_name": "In Progress",
		"new_status_id":   int64(3),
		"new_status_name": "Resolved",
		"assignee_id":     int64(5),
		"assignee_name":   "Alex Doe",
		"author_id":       int64(2),
		"author_name":     "Sam Roe",
		"created_on":      "2026-03-01T10:00:00Z",
		"updated_on":      "2026-03-02T11:30:00Z",
	}
	assert.Equal(t, want, params)
}

func TestParams_AbsentOptionalIDsAreNil(t *testing.T) {
	tr := Transition{IssueID: 1, NewStatusID: 3}
	params := tr.Params()

	require.Contains(t, params, "old_status_id")
	require.Contains(t, params, "assignee_id")
	assert.Nil(t, params["old_status_id"])
	assert.Nil(t, params["assignee_id"])
}

func TestParams_KeySetIsStable(t *testing.T) {
	params := Transition{}.Params()
	assert.Len(t, params, 14)
}

func TestParams_TimestampsAlwaysUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	tr := Transition{
		CreatedOn: time.Date(2026, 3, 1, 12, 0, 0, 0, loc),
		UpdatedOn: time.Date(2026, 3, 1, 12, 0, 0, 0, loc),
	}

	params := tr.Params()
	assert.Equal(t, "2026-03-01T10:00:00Z", params["created_on"])
	assert.Equal(t, "2026-03-01T10:00:00Z", params["updated_on"])
}
