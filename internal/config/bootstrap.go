package config

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// DataDir resolves the engine data directory: JOBSWEEP_DATA_DIR, else ".".
func DataDir() string {
	if d := os.Getenv("JOBSWEEP_DATA_DIR"); d != "" {
		return d
	}
	return "."
}

// EnsureUserConfig returns <dataDir>/config.yml, creating it on first use
// from defaultPath, or from the built-in defaults when defaultPath is absent.
func EnsureUserConfig(dataDir string, defaultPath string) (string, error) {
	userPath := filepath.Join(dataDir, "config.yml")

	_, err := os.Stat(userPath)
	if err == nil {
		return userPath, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}

	src, err := os.Open(defaultPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		cfg.App.DataDir = dataDir
		return userPath, SaveAtomic(userPath, cfg)
	}
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(userPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}
	return userPath, nil
}

// ResolvePath makes p relative to base unless it is already absolute.
func ResolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}
