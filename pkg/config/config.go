package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"showtracker/pkg/env"
	"showtracker/pkg/logger"
	"showtracker/pkg/paths"
)

// BackendConfig configures one search backend.
type BackendConfig struct {
	Name       string `json:"name"`
	Type       string `json:"type"` // "newznab", "torznab", "easynews", "subtitles"
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	APIPath    string `json:"api_path"` // API path (default: "/api")
	Icon       string `json:"icon,omitempty"`
	APIHitsDay int    `json:"api_hits_day"`
	// Username and Password are used by easynews
	Username string `json:"username"`
	Password string `json:"password"`
	// Language filter for subtitle backends, e.g. "en"
	Language string `json:"language,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

// LogConfig holds the rotating log file settings.
type LogConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
	Compress   bool   `json:"compress"`
}

// FilterConfig narrows search results. Empty fields filter nothing.
type FilterConfig struct {
	MinQuality    string   `json:"min_quality,omitempty"` // quality label, e.g. "HDTV 720p"
	MaxQuality    string   `json:"max_quality,omitempty"`
	MinResolution string   `json:"min_resolution,omitempty"` // "720p", "1080p", "2160p"
	MaxResolution string   `json:"max_resolution,omitempty"`
	AllowedCodecs []string `json:"allowed_codecs,omitempty"`
	BlockedCodecs []string `json:"blocked_codecs,omitempty"`
	BlockedGroups []string `json:"blocked_groups,omitempty"`
	MinSizeMB     int64    `json:"min_size_mb,omitempty"`
	MaxSizeMB     int64    `json:"max_size_mb,omitempty"`
	// Languages keeps subtitle results in these languages only
	Languages []string `json:"languages,omitempty"`
}

// Config holds application configuration
type Config struct {
	Backends []BackendConfig `json:"backends"`

	// Search settings
	SearchTimeoutSeconds int          `json:"search_timeout_seconds"` // per backend, 0 disables
	Filter               FilterConfig `json:"filter"`

	// API server
	APIPort int    `json:"api_port"`
	APIBind string `json:"api_bind"`

	// Local show database and identification
	DatabasePath        string            `json:"database_path"`
	ShowCacheTTLSeconds int               `json:"show_cache_ttl_seconds"`
	SceneExceptions     map[string]string `json:"scene_exceptions,omitempty"`

	LogLevel string    `json:"log_level"`
	Log      LogConfig `json:"log"`

	// TVDB credentials come from the environment only
	TVDBAPIKey string `json:"-"`
	TVDBPIN    string `json:"-"`

	// Internal - where was this config loaded from?
	LoadedPath string `json:"-"`
}

// Default returns the configuration used when no config.json exists.
func Default(dataDir string) *Config {
	return &Config{
		SearchTimeoutSeconds: 45,
		APIPort:              7070,
		APIBind:              "127.0.0.1",
		DatabasePath:         filepath.Join(dataDir, "shows.db"),
		ShowCacheTTLSeconds:  3600,
		LogLevel:             "INFO",
		Log: LogConfig{
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		LoadedPath: filepath.Join(dataDir, "config.json"),
	}
}

// Load is intended for startup only. It loads configuration from config.json
// in the data directory, applies environment variable overrides once, then
// saves the merged config.
// Priority: Environment variables (if not empty) > config.json > defaults
func Load() (*Config, error) {
	return LoadFrom(paths.GetDataDir())
}

// LoadFrom is Load with an explicit data directory.
func LoadFrom(dataDir string) (*Config, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := Default(dataDir)
	configPath := cfg.LoadedPath

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			return nil, fmt.Errorf("failed to load config %s: %w", configPath, err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	overrides, keys := env.ReadConfigOverrides()
	ApplyEnvOverrides(cfg, overrides, keys)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	} else {
		logger.Debug("Saved merged configuration", "path", configPath)
	}

	if len(cfg.EnabledBackends()) == 0 {
		logger.Warn("No search backends configured. Add some to config.json or via BACKEND_n_* variables")
	}

	return cfg, nil
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(c); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings that would otherwise fail later in confusing ways.
func (c *Config) Validate() error {
	if c.SearchTimeoutSeconds < 0 {
		return fmt.Errorf("search_timeout_seconds must not be negative")
	}
	if c.APIPort < 0 || c.APIPort > 65535 {
		return fmt.Errorf("api_port %d out of range", c.APIPort)
	}
	seen := make(map[string]bool)
	for i, b := range c.Backends {
		if strings.TrimSpace(b.Name) == "" {
			return fmt.Errorf("backend %d has no name", i+1)
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate backend name %q", b.Name)
		}
		seen[b.Name] = true
		if b.Type == "" {
			return fmt.Errorf("backend %q has no type", b.Name)
		}
	}
	return nil
}

// EnabledBackends returns the backends not marked disabled.
func (c *Config) EnabledBackends() []BackendConfig {
	var out []BackendConfig
	for _, b := range c.Backends {
		if !b.Disabled {
			out = append(out, b)
		}
	}
	return out
}

// SearchTimeout is the per-backend search deadline; zero means none.
func (c *Config) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSeconds) * time.Second
}

// ShowCacheTTL is how long resolved show IDs stay cached.
func (c *Config) ShowCacheTTL() time.Duration {
	return time.Duration(c.ShowCacheTTLSeconds) * time.Second
}

// Save saves the current configuration to the file it was loaded from
func (c *Config) Save() error {
	path := c.LoadedPath
	if path == "" {
		path = "config.json"
	}
	return c.SaveFile(path)
}

// SaveFile saves the current configuration to a JSON file
func (c *Config) SaveFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(c)
}

// keySet returns true if s is in list.
func keySet(list []string, s string) bool {
	for _, k := range list {
		if k == s {
			return true
		}
	}
	return false
}

// ApplyEnvOverrides applies environment-derived overrides to cfg (used at startup only).
// Only fields present in keys are applied, so env vars override file values per setting.
func ApplyEnvOverrides(cfg *Config, o env.ConfigOverrides, keys []string) {
	if keySet(keys, env.KeyAPIPort) {
		cfg.APIPort = o.APIPort
	}
	if keySet(keys, env.KeyAPIBind) {
		cfg.APIBind = o.APIBind
	}
	if keySet(keys, env.KeyLogLevel) {
		cfg.LogLevel = o.LogLevel
	}
	if keySet(keys, env.KeyLogFile) {
		cfg.Log.File = o.LogFile
	}
	if keySet(keys, env.KeySearchTimeout) {
		cfg.SearchTimeoutSeconds = o.SearchTimeoutSeconds
	}
	if keySet(keys, env.KeyShowCacheTTL) {
		cfg.ShowCacheTTLSeconds = o.ShowCacheTTLSeconds
	}
	if keySet(keys, env.KeyDatabasePath) {
		cfg.DatabasePath = o.DatabasePath
	}
	if o.TVDBAPIKey != "" {
		cfg.TVDBAPIKey = o.TVDBAPIKey
	}
	if o.TVDBPIN != "" {
		cfg.TVDBPIN = o.TVDBPIN
	}
	if keySet(keys, env.KeyBackends) {
		cfg.Backends = make([]BackendConfig, len(o.Backends))
		for i, b := range o.Backends {
			cfg.Backends[i] = BackendConfig{
				Name:     b.Name,
				Type:     b.Type,
				URL:      b.URL,
				APIKey:   b.APIKey,
				Username: b.Username,
				Password: b.Password,
				Disabled: !b.Enabled,
			}
		}
	}
}

// GetEnvOverrideKeys returns config JSON keys that have environment variable overrides set.
// These values will be overwritten on next restart.
func GetEnvOverrideKeys() []string {
	return env.OverrideKeys()
}
