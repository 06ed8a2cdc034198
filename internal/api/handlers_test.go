package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/statusops/statushook/internal/action"
	"github.com/statusops/statushook/internal/auth"
	"github.com/statusops/statushook/internal/dispatch"
	"github.com/statusops/statushook/internal/execlog"
	"github.com/statusops/statushook/internal/log"
	"github.com/statusops/statushook/internal/storage"
)

const testAPIKey = "test-api-key"

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func setupTestServer(t *testing.T) (*Server, http.Handler, *action.Store, *execlog.Store) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	actions := action.NewStore(db)
	logs := execlog.NewStore(db)
	dispatcher := dispatch.New(actions, logs)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := New(Config{
		Listen: "127.0.0.1:0",
		APIKey: testAPIKey,
		Tokens: []auth.TokenConfig{
			{Token: "reader", Scopes: []string{"actions:ro", "logs:ro"}},
		},
	}, actions, logs, dispatcher, logger)

	return srv, srv.setupRoutes(), actions, logs
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return out
}

func processAction(toStatus int64) ActionRequest {
	return ActionRequest{
		Name:       fmt.Sprintf("notify on %d", toStatus),
		ToStatusID: toStatus,
		Type:       "process",
		Body:       "#!/bin/sh\necho done\n",
	}
}

func TestActionCRUD(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	// Create
	rec := doRequest(t, handler, "POST", "/actions", testAPIKey, processAction(3))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	created := decodeJSON[ActionResponse](t, rec)
	if created.ID == 0 {
		t.Fatal("created action has no id")
	}
	if created.TimeoutSeconds != action.DefaultTimeoutSeconds {
		t.Errorf("TimeoutSeconds = %d, want default %d", created.TimeoutSeconds, action.DefaultTimeoutSeconds)
	}

	// Get
	rec = doRequest(t, handler, "GET", fmt.Sprintf("/actions/%d", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	// Update
	update := processAction(3)
	update.Description = "updated"
	rec = doRequest(t, handler, "PUT", fmt.Sprintf("/actions/%d", created.ID), testAPIKey, update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}
	updated := decodeJSON[ActionResponse](t, rec)
	if updated.Description != "updated" {
		t.Errorf("Description = %q, want updated", updated.Description)
	}

	// List
	rec = doRequest(t, handler, "GET", "/actions", testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if list := decodeJSON[[]ActionResponse](t, rec); len(list) != 1 {
		t.Errorf("list size = %d, want 1", len(list))
	}

	// Disable / enable
	rec = doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/disable", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d", rec.Code)
	}
	if resp := decodeJSON[ActionResponse](t, rec); resp.Enabled {
		t.Error("action still enabled after disable")
	}
	rec = doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/enable", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("enable status = %d", rec.Code)
	}

	// Delete
	rec = doRequest(t, handler, "DELETE", fmt.Sprintf("/actions/%d", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doRequest(t, handler, "GET", fmt.Sprintf("/actions/%d", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestCreateAction_ValidationErrorNamesField(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	req := processAction(3)
	req.Body = ""
	rec := doRequest(t, handler, "POST", "/actions", testAPIKey, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	resp := decodeJSON[ErrorResponse](t, rec)
	if resp.Field != "body" {
		t.Errorf("Field = %q, want body", resp.Field)
	}
}

func TestTestAction_ProducesExecutionLog(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	rec := doRequest(t, handler, "POST", "/actions", testAPIKey, processAction(3))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rec.Code)
	}
	created := decodeJSON[ActionResponse](t, rec)

	rec = doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/test", created.ID), testAPIKey,
		TestRequest{IssueID: 42, IssueSubject: "smoke test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("test status = %d, body %s", rec.Code, rec.Body.String())
	}

	resp := decodeJSON[TestResponse](t, rec)
	if resp.LogID == "" {
		t.Fatal("test dispatch produced no log id")
	}
	if resp.Log == nil {
		t.Fatal("test response has no inline log")
	}
	if !resp.Log.Success {
		t.Errorf("log success = false, error %q", resp.Log.ErrorMessage)
	}
	if resp.Log.IssueID != 42 {
		t.Errorf("log issue_id = %d, want 42", resp.Log.IssueID)
	}
	if resp.Log.ConfigID == nil || *resp.Log.ConfigID != created.ID {
		t.Errorf("log config_id = %v, want %d", resp.Log.ConfigID, created.ID)
	}

	// The log is also visible through the log endpoints.
	rec = doRequest(t, handler, "GET", "/logs/"+resp.LogID, testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get log status = %d", rec.Code)
	}
}

func TestTestAction_DisabledConfigConflicts(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	rec := doRequest(t, handler, "POST", "/actions", testAPIKey, processAction(3))
	created := decodeJSON[ActionResponse](t, rec)

	doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/disable", created.ID), testAPIKey, nil)

	rec = doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/test", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestListLogs_Filters(t *testing.T) {
	_, handler, _, logs := setupTestServer(t)

	rec := doRequest(t, handler, "POST", "/actions", testAPIKey, processAction(3))
	created := decodeJSON[ActionResponse](t, rec)

	// One success via a test dispatch.
	rec = doRequest(t, handler, "POST", fmt.Sprintf("/actions/%d/test", created.ID), testAPIKey, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("test status = %d", rec.Code)
	}

	// One open failure inserted directly.
	_, err := logs.Create(context.Background(), execlog.CreateRequest{
		IssueID:    99,
		ToStatusID: 3,
		ConfigID:   &created.ID,
	})
	if err != nil {
		t.Fatalf("failed to insert log: %v", err)
	}

	rec = doRequest(t, handler, "GET", "/logs", testAPIKey, nil)
	if all := decodeJSON[[]LogResponse](t, rec); len(all) != 2 {
		t.Fatalf("unfiltered logs = %d, want 2", len(all))
	}

	rec = doRequest(t, handler, "GET", "/logs?success=true", testAPIKey, nil)
	ok := decodeJSON[[]LogResponse](t, rec)
	if len(ok) != 1 || !ok[0].Success {
		t.Errorf("success=true logs = %v", len(ok))
	}

	rec = doRequest(t, handler, "GET", "/logs?issue_id=99", testAPIKey, nil)
	if byIssue := decodeJSON[[]LogResponse](t, rec); len(byIssue) != 1 || byIssue[0].IssueID != 99 {
		t.Errorf("issue_id=99 logs = %d", len(byIssue))
	}

	rec = doRequest(t, handler, "GET", "/logs?success=sometimes", testAPIKey, nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("bad success filter status = %d, want 400", rec.Code)
	}
}

func TestAuth_MissingAndInvalidToken(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	rec := doRequest(t, handler, "GET", "/actions", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, handler, "GET", "/actions", "wrong-key", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rec.Code)
	}
}

func TestAuth_ScopedTokenCannotWrite(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	// Read works.
	rec := doRequest(t, handler, "GET", "/actions", "reader", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("read status = %d, want 200", rec.Code)
	}

	// Write is forbidden.
	rec = doRequest(t, handler, "POST", "/actions", "reader", processAction(3))
	if rec.Code != http.StatusForbidden {
		t.Errorf("write status = %d, want 403", rec.Code)
	}
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	_, handler, _, _ := setupTestServer(t)

	rec := doRequest(t, handler, "GET", "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeJSON[HealthzResponse](t, rec)
	if resp.Status != "ok" {
		t.Errorf("Status = %q, want ok", resp.Status)
	}
}
