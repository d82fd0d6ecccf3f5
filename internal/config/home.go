package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// HomeEnv overrides the ensemble home directory.
const HomeEnv = "ENSEMBLE_HOME"

// GetEnsembleHome returns the ensemble home directory.
// Priority order:
//  1. ENSEMBLE_HOME environment variable (if set)
//  2. The nearest .ensemble directory at or above start
//  3. start/.ensemble (fallback)
//
// The directory is created if it doesn't exist.
func GetEnsembleHome(start string) (string, error) {
	if home := os.Getenv(HomeEnv); home != "" {
		return home, nil
	}

	if start == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("get working directory: %w", err)
		}
		start = cwd
	}

	if found, ok := findHome(start); ok {
		return found, nil
	}

	home := filepath.Join(start, ".ensemble")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create ensemble home directory: %w", err)
	}
	return home, nil
}

// findHome walks up from dir looking for an existing .ensemble directory.
func findHome(dir string) (string, bool) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", false
	}
	for {
		candidate := filepath.Join(current, ".ensemble")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, true
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", false
		}
		current = parent
	}
}

// ConfigPath returns the config file inside an ensemble home.
func ConfigPath(home string) string {
	return filepath.Join(home, "config.yaml")
}

// ResolveLogDir anchors a relative log_dir at home.
func ResolveLogDir(home, logDir string) string {
	if logDir == "" || filepath.IsAbs(logDir) {
		return logDir
	}
	return filepath.Join(home, logDir)
}
