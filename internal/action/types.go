// Package action holds the persisted action config model, its write-time
// validation, and the SQLite-backed store with transition resolution.
package action

import (
	"strings"
	"time"
)

// Kind selects the execution strategy for a config.
type Kind string

const (
	KindProcess  Kind = "process"
	KindHTTP     Kind = "http"
	KindEmbedded Kind = "embedded"
)

// DefaultTimeoutSeconds applies when a config does not set its own timeout.
const DefaultTimeoutSeconds = 30

// MaxNameLength is the upper bound on config names.
const MaxNameLength = 255

// Config is one rule mapping a transition pattern to an executable action.
// FromStatusID nil means any prior state; ProjectID nil means any project.
// Once handed to the dispatcher a Config is a read-only snapshot: concurrent
// edits never affect an in-flight execution.
type Config struct {
	ID             int64
	Name           string
	Description    string
	FromStatusID   *int64
	ToStatusID     int64
	ProjectID      *int64
	Type           Kind
	Body           string
	EndpointURL    string
	Enabled        bool
	TimeoutSeconds int
	Environment    string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Timeout returns the wall-clock execution deadline for this config.
func (c *Config) Timeout() time.Duration {
	secs := c.TimeoutSeconds
	if secs <= 0 {
		secs = DefaultTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// EnvEntries returns the extra KEY=VALUE environment entries of this config.
// Environment is stored normalized (one entry per line, no blanks).
func (c *Config) EnvEntries() []string {
	if c.Environment == "" {
		return nil
	}
	return strings.Split(c.Environment, "\n")
}

// ContentRequired reports whether this config's type requires a body.
func (c *Config) ContentRequired() bool {
	return c.Type == KindProcess || c.Type == KindEmbedded
}
