// Package config loads and validates the daemon configuration file.
package config

// Config is the root configuration structure.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Storage StorageConfig `yaml:"storage"`
	Webhook WebhookConfig `yaml:"webhook"`
	API     APIConfig     `yaml:"api"`
}

// ServiceConfig holds daemon-level settings.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	LogLevel string `yaml:"log_level"`
	PidFile  string `yaml:"pid_file"`
}

// StorageConfig holds the SQLite database location.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// WebhookConfig holds the transition listener settings.
type WebhookConfig struct {
	Listen          string `yaml:"listen"`
	Path            string `yaml:"path"`
	Secret          string `yaml:"secret"`
	SignatureHeader string `yaml:"signature_header"`
	MaxBodySize     int64  `yaml:"max_body_size"`
}

// APIConfig holds the admin API settings.
type APIConfig struct {
	Enabled bool       `yaml:"enabled"`
	Listen  string     `yaml:"listen"`
	Auth    AuthConfig `yaml:"auth"`
}

// AuthConfig holds admin API authentication.
type AuthConfig struct {
	APIKey string        `yaml:"api_key"`
	Tokens []TokenConfig `yaml:"tokens"`
}

// TokenConfig is a scoped bearer token.
type TokenConfig struct {
	Name   string   `yaml:"name"`
	Token  string   `yaml:"token"`
	Scopes []string `yaml:"scopes"`
}

// ChecksumManifest is the .checksums file format.
type ChecksumManifest struct {
	Version     int               `yaml:"version"`
	GeneratedAt string            `yaml:"generated_at"`
	Hashes      map[string]string `yaml:"hashes"`
}

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "statushook",
			LogLevel: "info",
			PidFile:  "statushook.pid",
		},
		Storage: StorageConfig{
			Path: "statushook.db",
		},
		Webhook: WebhookConfig{
			Listen:          "127.0.0.1:8090",
			Path:            "/webhook/transition",
			SignatureHeader: "X-Hub-Signature-256",
			MaxBodySize:     1048576,
		},
		API: APIConfig{
			Enabled: false,
			Listen:  "127.0.0.1:8091",
		},
	}
}
