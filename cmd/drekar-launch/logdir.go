package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// userLogDir returns the per-OS base log directory for appName, the Go
// analogue of the original's appdirs.user_log_dir(appname=...).
func userLogDir(appName string) (string, error) {
	switch runtime.GOOS {
	case "windows":
		base := os.Getenv("LOCALAPPDATA")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(base, appName, "Logs"), nil
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, "Library", "Logs", appName), nil
	default:
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("resolve home directory: %w", err)
			}
			base = filepath.Join(home, ".cache")
		}
		return filepath.Join(base, appName, "log"), nil
	}
}
