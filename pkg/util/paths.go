package util

import (
	"os"
	"path/filepath"
	"sync"
)

var (
	appNameMu sync.RWMutex
	appName   = "activityboard"
)

// SetAppName overrides the application name used to derive on-disk paths.
func SetAppName(name string) {
	if name == "" {
		return
	}
	appNameMu.Lock()
	appName = name
	appNameMu.Unlock()
}

// AppName returns the current application name.
func AppName() string {
	appNameMu.RLock()
	defer appNameMu.RUnlock()
	return appName
}

// DataDir returns the base directory for durable application data
// ($XDG_DATA_HOME/<app> or ~/.local/share/<app>).
func DataDir() string {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, AppName())
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".", AppName())
	}
	return filepath.Join(home, ".local", "share", AppName())
}

// LogDir returns the directory for rotated log files.
func LogDir() string {
	return filepath.Join(DataDir(), "logs")
}

// DefaultDatabasePath returns the default SQLite database location.
func DefaultDatabasePath() string {
	return filepath.Join(DataDir(), "stats.db")
}

// DefaultRegistryPath returns the default leaderboard registry file location.
func DefaultRegistryPath() string {
	return filepath.Join(DataDir(), "leaderboard_ids.json")
}
