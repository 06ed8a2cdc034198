package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// UserAgent identifies statushook callbacks to receiving endpoints.
const UserAgent = "statushook"

// maxErrorBodyBytes caps the response body excerpt included in failure
// messages for non-2xx responses.
const maxErrorBodyBytes = 2048

// HTTP executes an HTTP callback action: one POST of the parameter map as a
// JSON object, bounded by the config timeout.
type HTTP struct {
	URL string

	// Client overrides the HTTP client; nil means http.DefaultClient.
	Client *http.Client
}

// Run serializes the parameter map to JSON and POSTs it to the endpoint.
// Any 2xx status is success; anything else, or a transport failure, is an
// error carrying the status and a truncated response body.
func (h *HTTP) Run(ctx context.Context, params map[string]any, timeout time.Duration) (string, error) {
	body, err := json.Marshal(sanitizeJSON(params))
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(rctx, http.MethodPost, h.URL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", &TimeoutError{Timeout: timeout}
		}
		return "", fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("webhook failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	return fmt.Sprintf("Webhook sent successfully. Response: %d", resp.StatusCode), nil
}

// sanitizeJSON escapes embedded CR/LF/TAB in string values ahead of JSON
// encoding, independent of the encoder's own escaping, so each field
// round-trips through naive log viewers as a single line.
func sanitizeJSON(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = sanitizeJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = sanitizeJSON(item)
		}
		return out
	case string:
		val = strings.ReplaceAll(val, "\r\n", `\n`)
		val = strings.ReplaceAll(val, "\r", `\n`)
		val = strings.ReplaceAll(val, "\n", `\n`)
		val = strings.ReplaceAll(val, "\t", `\t`)
		return val
	default:
		return v
	}
}
