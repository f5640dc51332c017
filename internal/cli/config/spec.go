package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/dataglove/glovectl/internal/telemetry/logger"
)

// Config is the glovectl configuration.
type Config struct {
	Server      string        `koanf:"server"`
	APIPrefix   string        `koanf:"api_prefix"`
	Timeout     time.Duration `koanf:"timeout"`
	Output      string        `koanf:"output"`
	ClientID    string        `koanf:"client_id"`
	RefreshSkew time.Duration `koanf:"refresh_skew"`

	Credential CredentialConfig `koanf:"credential"`
	Log        LogConfig        `koanf:"log"`
	RateLimit  RateLimitConfig  `koanf:"rate_limit"`
	TLS        TLSConfig        `koanf:"tls"`
	Routes     RoutesConfig     `koanf:"routes"`
	History    HistoryConfig    `koanf:"history"`
}

// CredentialConfig selects where the session credential is kept.
type CredentialConfig struct {
	// Backend is file, badger or memory.
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	KeyFile string `koanf:"key_file"`
	Slot    string `koanf:"slot"`
}

// LogConfig configures diagnostics on stderr or in a file.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// RateLimitConfig caps outgoing requests. Zero RPS disables the limit.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// TLSConfig configures the transport's trust and client certificate.
type TLSConfig struct {
	CAFile             string `koanf:"ca_file"`
	CADir              string `koanf:"ca_dir"`
	CertFile           string `koanf:"cert_file"`
	KeyFile            string `koanf:"key_file"`
	ServerName         string `koanf:"server_name"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// RoutesConfig names the pages the guard redirects to.
type RoutesConfig struct {
	Entry    string `koanf:"entry"`
	Landing  string `koanf:"landing"`
	NotFound string `koanf:"not_found"`
}

// HistoryConfig configures the shell history.
type HistoryConfig struct {
	File string `koanf:"file"`
	Size int    `koanf:"size"`
}

// Output formats.
var outputs = []string{"table", "json", "yaml"}

// Credential backends.
var backends = []string{"file", "badger", "memory"}

// Keys lists every configuration key.
var Keys = []string{
	"server",
	"api_prefix",
	"timeout",
	"output",
	"client_id",
	"refresh_skew",
	"credential.backend",
	"credential.path",
	"credential.key_file",
	"credential.slot",
	"log.level",
	"log.format",
	"log.file",
	"rate_limit.rps",
	"rate_limit.burst",
	"tls.ca_file",
	"tls.ca_dir",
	"tls.cert_file",
	"tls.key_file",
	"tls.server_name",
	"tls.insecure_skip_verify",
	"routes.entry",
	"routes.landing",
	"routes.not_found",
	"history.file",
	"history.size",
}

// IsKey reports whether key is a known configuration key.
func IsKey(key string) bool {
	return slices.Contains(Keys, key)
}

// DefaultDir returns ~/.glovectl, or .glovectl when there is no home.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".glovectl"
	}
	return filepath.Join(home, ".glovectl")
}

// DefaultConfigPath returns the default configuration file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// Defaults returns the default values keyed like the file.
func Defaults() map[string]any {
	dir := DefaultDir()
	return map[string]any{
		"server":                   "http://localhost:8080",
		"api_prefix":               "/api",
		"timeout":                  "10s",
		"output":                   "table",
		"refresh_skew":             "1m",
		"credential.backend":       "file",
		"credential.path":          filepath.Join(dir, "credential"),
		"credential.slot":          "default",
		"log.level":                "warn",
		"log.format":               "text",
		"rate_limit.rps":           0,
		"rate_limit.burst":         1,
		"tls.insecure_skip_verify": false,
		"routes.entry":             "/login",
		"routes.landing":           "/dashboard",
		"routes.not_found":         "/404",
		"history.file":             filepath.Join(dir, "history"),
		"history.size":             1000,
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("config: server is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	if !slices.Contains(outputs, c.Output) {
		return fmt.Errorf("config: output must be one of %v, got %q", outputs, c.Output)
	}
	if !slices.Contains(backends, c.Credential.Backend) {
		return fmt.Errorf("config: credential.backend must be one of %v, got %q", backends, c.Credential.Backend)
	}
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: log.level: %w", err)
	}
	if _, err := logger.ParseFormat(c.Log.Format); err != nil {
		return fmt.Errorf("config: log.format: %w", err)
	}
	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("config: rate_limit.rps must not be negative")
	}
	if c.RefreshSkew < 0 {
		return fmt.Errorf("config: refresh_skew must not be negative")
	}
	return nil
}
