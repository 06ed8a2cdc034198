package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/statusops/statushook/internal/event"
)

// notification mirrors the JSON body sent by the tracker's webhook plugin.
// Issue updates arrive wrapped in a "payload" envelope with the journal
// entry that produced them.
type notification struct {
	Payload struct {
		Action string `json:"action"`
		Issue  struct {
			ID      int64  `json:"id"`
			Subject string `json:"subject"`
			Project struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"project"`
			Status struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"status"`
			AssignedTo *struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"assigned_to"`
			Author struct {
				ID   int64  `json:"id"`
				Name string `json:"name"`
			} `json:"author"`
			CreatedOn string `json:"created_on"`
			UpdatedOn string `json:"updated_on"`
		} `json:"issue"`
		Journal *struct {
			User struct {
				ID int64 `json:"id"`
			} `json:"user"`
			Details []struct {
				PropKey  string `json:"prop_key"`
				OldValue string `json:"old_value"`
				Value    string `json:"value"`
			} `json:"details"`
		} `json:"journal"`
	} `json:"payload"`
}

// ParseTransition extracts a status transition from a webhook body.
// The second return is false when the body is a valid notification that
// does not change the issue status; such bodies are acknowledged and
// ignored.
func ParseTransition(body []byte) (event.Transition, bool, error) {
	var n notification
	if err := json.Unmarshal(body, &n); err != nil {
		return event.Transition{}, false, fmt.Errorf("malformed notification: %w", err)
	}

	p := n.Payload
	if p.Issue.ID == 0 {
		return event.Transition{}, false, fmt.Errorf("notification has no issue")
	}
	if p.Action != "updated" || p.Journal == nil {
		return event.Transition{}, false, nil
	}

	var oldStatus *int64
	found := false
	for _, d := range p.Journal.Details {
		if d.PropKey != "status_id" {
			continue
		}
		found = true
		if id, err := strconv.ParseInt(d.OldValue, 10, 64); err == nil {
			oldStatus = &id
		}
	}
	if !found {
		return event.Transition{}, false, nil
	}

	t := event.Transition{
		IssueID:       p.Issue.ID,
		IssueSubject:  p.Issue.Subject,
		ProjectID:     p.Issue.Project.ID,
		ProjectName:   p.Issue.Project.Name,
		OldStatusID:   oldStatus,
		NewStatusID:   p.Issue.Status.ID,
		NewStatusName: p.Issue.Status.Name,
		AuthorID:      p.Issue.Author.ID,
		AuthorName:    p.Issue.Author.Name,
		CreatedOn:     parseTime(p.Issue.CreatedOn),
		UpdatedOn:     parseTime(p.Issue.UpdatedOn),
	}
	if p.Issue.AssignedTo != nil {
		id := p.Issue.AssignedTo.ID
		t.AssigneeID = &id
		t.AssigneeName = p.Issue.AssignedTo.Name
	}
	if p.Journal.User.ID != 0 {
		uid := p.Journal.User.ID
		t.UserID = &uid
	}
	return t, true, nil
}

func parseTime(s string) time.Time {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts
	}
	return time.Now().UTC()
}
