// Package config resolves the edcmap configuration and the locations of its
// files.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "edcmap"

// ExpandPath expands a leading ~ and $VAR references in path.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}

// ConfigDir is where config.yaml is looked up: $XDG_CONFIG_HOME/edcmap,
// falling back to ~/.config/edcmap.
func ConfigDir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir holds the session database: $XDG_DATA_HOME/edcmap, falling back
// to ~/.local/share/edcmap.
func DataDir() (string, error) {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) (string, error) {
	if base := os.Getenv(env); base != "" && filepath.IsAbs(base) {
		return filepath.Join(base, appDir), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, fallback, appDir), nil
}

// defaultDatabasePath places the database under DataDir, or falls back to
// DefaultDatabasePath when no home directory is known.
func defaultDatabasePath() string {
	dir, err := DataDir()
	if err != nil {
		return DefaultDatabasePath
	}
	return filepath.Join(dir, "edcmap.db")
}
