// Package xdg resolves XDG Base Directory paths for tdbctl.
// Directories are created with private permissions when missing.
package xdg

import (
	"os"
	"path/filepath"
)

const appName = "tdbctl"

// ConfigDir returns $XDG_CONFIG_HOME/tdbctl, falling back to ~/.config/tdbctl.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// StateDir returns $XDG_STATE_HOME/tdbctl, falling back to ~/.local/state/tdbctl.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

func resolve(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}

	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o700); err != nil { // private dir
		return "", err
	}

	return dir, nil
}
