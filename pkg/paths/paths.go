package paths

import (
	"os"
	"path/filepath"
)

// DataDirEnv overrides the data directory.
const DataDirEnv = "SHOWTRACKER_DATA_DIR"

// GetDataDir returns the data directory path.
// SHOWTRACKER_DATA_DIR wins; in Docker (/.dockerenv exists) it is /app/data;
// otherwise the per-user config directory, falling back to the current
// directory.
func GetDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return "/app/data"
	}
	if base, err := os.UserConfigDir(); err == nil {
		return filepath.Join(base, "showtracker")
	}
	return "."
}
