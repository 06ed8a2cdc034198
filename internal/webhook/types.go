package webhook

// Config holds the transition listener settings.
type Config struct {
	Listen string

	// Path is the URL path accepting transition notifications.
	Path string

	// Secret enables HMAC-SHA256 signature verification when non-empty.
	Secret string

	// SignatureHeader is the HTTP header carrying the HMAC signature,
	// e.g. "X-Hub-Signature-256".
	SignatureHeader string

	// MaxBodySize is the maximum allowed request body size in bytes.
	MaxBodySize int64

	// Sync makes the listener wait for the dispatch and report the log id.
	// Default is fire-and-forget with the execution log as the only durable
	// result.
	Sync bool
}

// AcceptedResponse is the JSON response for an accepted notification.
type AcceptedResponse struct {
	Status string `json:"status"`
	LogID  string `json:"log_id,omitempty"`
}

// ErrorResponse is the JSON response for listener errors.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Default values
const (
	DefaultMaxBodySize = 1048576 // 1 MB
	DefaultPath        = "/webhook/transition"
)
