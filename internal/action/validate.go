package action

import (
	"fmt"
	"net/url"

	"github.com/statusops/statushook/internal/normalize"
)

// ValidationError reports a config field that blocks persistence.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid action config: %s: %s", e.Field, e.Message)
}

// Normalize canonicalizes every text field in place. Applied once at write
// time so every downstream reader sees the same bytes.
func (c *Config) Normalize() {
	c.Name = normalize.Name(c.Name)
	c.Description = normalize.Description(c.Description)
	c.EndpointURL = normalize.URL(c.EndpointURL)
	c.Environment = normalize.EnvBlock(c.Environment)

	switch c.Type {
	case KindProcess:
		c.Body = normalize.Script(c.Body)
	case KindEmbedded:
		c.Body = normalize.Code(c.Body)
	}
}

// Validate checks the invariant that exactly the fields required by the
// config's type are populated. Call after Normalize.
func (c *Config) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}
	if len(c.Name) > MaxNameLength {
		return &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	}
	if c.ToStatusID == 0 {
		return &ValidationError{Field: "to_status_id", Message: "is required"}
	}
	if c.TimeoutSeconds <= 0 {
		return &ValidationError{Field: "timeout_seconds", Message: "must be positive"}
	}

	switch c.Type {
	case KindProcess, KindEmbedded:
		if c.Body == "" {
			return &ValidationError{Field: "body", Message: fmt.Sprintf("is required for %s actions", c.Type)}
		}
	case KindHTTP:
		if c.EndpointURL == "" {
			return &ValidationError{Field: "endpoint_url", Message: "is required for http actions"}
		}
		u, err := url.Parse(c.EndpointURL)
		if err != nil {
			return &ValidationError{Field: "endpoint_url", Message: "is not a valid URL"}
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return &ValidationError{Field: "endpoint_url", Message: "must be an absolute http or https URL"}
		}
	default:
		return &ValidationError{Field: "action_type", Message: fmt.Sprintf("must be one of %s, %s, %s", KindProcess, KindHTTP, KindEmbedded)}
	}

	return nil
}
