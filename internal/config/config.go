package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// StoreConfig holds credentials and addressing for the external assignment
// record store (an Airtable-style REST table).
type StoreConfig struct {
	// BaseURL is the API root. Defaults to the public Airtable endpoint;
	// tests point it at a local server.
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Token is the personal access token sent as a Bearer credential.
	Token string `yaml:"token" json:"token"`
	// BaseID identifies the base holding the sign-up table.
	BaseID string `yaml:"base_id" json:"base_id"`
	// Table is the table name holding assignment records.
	Table string `yaml:"table" json:"table"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used as the canonical display zone for
	// service dates (e.g. "America/Los_Angeles").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Store configures the external assignment record store.
	Store StoreConfig `yaml:"store" json:"store"`

	// RefreshCron is a cron-style schedule string used to periodically
	// drop the reconciled-view cache so viewers converge even if no push
	// event is ever delivered.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HeartbeatSeconds is the interval between SSE keep-alive comments.
	HeartbeatSeconds int `yaml:"heartbeat_seconds" json:"heartbeat_seconds"`

	// ViewerMaxAgeMinutes bounds how long a viewer registration may live
	// before the periodic sweep removes it.
	ViewerMaxAgeMinutes int `yaml:"viewer_max_age_minutes" json:"viewer_max_age_minutes"`

	// CacheTTLSeconds is the reconciled-view cache TTL.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds" json:"cache_ttl_seconds"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all
	// endpoints except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:   "127.0.0.1:8080",
		Timezone: "America/Los_Angeles",
		Store: StoreConfig{
			BaseURL: "https://api.airtable.com/v0",
			Table:   "signups",
		},
		RefreshCron:         "*/5 * * * *",
		HeartbeatSeconds:    30,
		ViewerMaxAgeMinutes: 30,
		CacheTTLSeconds:     30,
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.Timezone == "" {
		c.Timezone = "America/Los_Angeles"
	}
	if c.Store.BaseURL == "" {
		c.Store.BaseURL = "https://api.airtable.com/v0"
	}
	if c.Store.Table == "" {
		c.Store.Table = "signups"
	}
	if c.RefreshCron == "" {
		c.RefreshCron = "*/5 * * * *"
	}
	if c.HeartbeatSeconds <= 0 {
		c.HeartbeatSeconds = 30
	}
	if c.ViewerMaxAgeMinutes <= 0 {
		c.ViewerMaxAgeMinutes = 30
	}
	if c.CacheTTLSeconds <= 0 {
		c.CacheTTLSeconds = 30
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed, write a
//     default config with 0600 perms, and return the default config.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600 (the store token is a secret).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".liturgyd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
