// Package env consolidates all environment variable reading for the application.
// Config overrides are applied only at startup (see config.Load).
package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names (single source of truth)
const (
	APIPort              = "API_PORT"
	APIBind              = "API_BIND"
	LOGLevel             = "LOG_LEVEL"
	LOGFile              = "LOG_FILE"
	SearchTimeoutSeconds = "SEARCH_TIMEOUT_SECONDS"
	ShowCacheTTLSeconds  = "SHOW_CACHE_TTL_SECONDS"
	DatabasePath         = "DATABASE_PATH"
	TVDBAPIKey           = "TVDB_API_KEY"
	TVDBPIN              = "TVDB_PIN"
	UserAgent            = "SHOWTRACKER_USER_AGENT"
	TZVar                = "TZ"
	BackendPrefix        = "BACKEND_"
)

// Config JSON keys returned by OverrideKeys
const (
	KeyAPIPort       = "api_port"
	KeyAPIBind       = "api_bind"
	KeyLogLevel      = "log_level"
	KeyLogFile       = "log_file"
	KeySearchTimeout = "search_timeout_seconds"
	KeyShowCacheTTL  = "show_cache_ttl_seconds"
	KeyDatabasePath  = "database_path"
	KeyBackends      = "backends"
)

// TZ returns the TZ environment variable (e.g. for logger timezone).
func TZ() string {
	return os.Getenv(TZVar)
}

// LogLevel returns LOG_LEVEL with default "INFO" (for early logger init before config).
func LogLevel() string {
	if v := os.Getenv(LOGLevel); v != "" {
		return v
	}
	return "INFO"
}

// UserAgentHeader returns the User-Agent sent to backends, if overridden.
func UserAgentHeader() string {
	return os.Getenv(UserAgent)
}

// Backend mirrors config.BackendConfig so this package does not depend on config.
type Backend struct {
	Name     string
	Type     string
	URL      string
	APIKey   string
	Username string
	Password string
	Enabled  bool
}

// ConfigOverrides holds all config values that can be set via environment variables.
type ConfigOverrides struct {
	APIPort              int
	APIBind              string
	LogLevel             string
	LogFile              string
	SearchTimeoutSeconds int
	ShowCacheTTLSeconds  int
	DatabasePath         string
	TVDBAPIKey           string
	TVDBPIN              string
	Backends             []Backend
}

// ReadConfigOverrides reads all relevant environment variables once and returns
// overrides to apply to config plus the list of config JSON keys that were set.
func ReadConfigOverrides() (ConfigOverrides, []string) {
	var o ConfigOverrides
	var keys []string

	if v := os.Getenv(APIPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			o.APIPort = port
			keys = append(keys, KeyAPIPort)
		}
	}
	if v := os.Getenv(APIBind); v != "" {
		o.APIBind = v
		keys = append(keys, KeyAPIBind)
	}
	if v := os.Getenv(LOGLevel); v != "" {
		o.LogLevel = v
		keys = append(keys, KeyLogLevel)
	}
	if v := os.Getenv(LOGFile); v != "" {
		o.LogFile = v
		keys = append(keys, KeyLogFile)
	}
	if v := os.Getenv(SearchTimeoutSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.SearchTimeoutSeconds = n
			keys = append(keys, KeySearchTimeout)
		}
	}
	if v := os.Getenv(ShowCacheTTLSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			o.ShowCacheTTLSeconds = n
			keys = append(keys, KeyShowCacheTTL)
		}
	}
	if v := os.Getenv(DatabasePath); v != "" {
		o.DatabasePath = v
		keys = append(keys, KeyDatabasePath)
	}
	// The TVDB credentials are never written to config.json.
	o.TVDBAPIKey = os.Getenv(TVDBAPIKey)
	o.TVDBPIN = os.Getenv(TVDBPIN)

	o.Backends = readBackendsFromEnv()
	if len(o.Backends) > 0 {
		keys = append(keys, KeyBackends)
	}

	return o, keys
}

// OverrideKeys returns the config JSON keys that have environment overrides set.
func OverrideKeys() []string {
	_, keys := ReadConfigOverrides()
	return keys
}

// readBackendsFromEnv reads BACKEND_1_TYPE, BACKEND_1_URL, ... up to 10.
func readBackendsFromEnv() []Backend {
	var list []Backend
	for i := 1; i <= 10; i++ {
		prefix := fmt.Sprintf("%s%d_", BackendPrefix, i)
		typ := strings.ToLower(os.Getenv(prefix + "TYPE"))
		if typ == "" {
			continue
		}
		list = append(list, Backend{
			Name:     getEnv(prefix+"NAME", fmt.Sprintf("Backend %d", i)),
			Type:     typ,
			URL:      os.Getenv(prefix + "URL"),
			APIKey:   os.Getenv(prefix + "API_KEY"),
			Username: os.Getenv(prefix + "USERNAME"),
			Password: os.Getenv(prefix + "PASSWORD"),
			Enabled:  getEnvBool(prefix+"ENABLED", true),
		})
	}
	return list
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.ToLower(v) == "true" || v == "1"
	}
	return defaultVal
}
