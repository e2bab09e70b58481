// Package apphome manages the tool's on-disk footprint: the state
// database, the scratch export area and the config file, laid out under
// XDG-compliant directories.
package apphome

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "icloud-immich-sync"

// Home holds the resolved paths for this install
type Home struct {
	RootPath    string // data root, holds state db and scratch
	ScratchPath string // transient full-quality exports live here
	ConfigPath  string // config.yaml location
}

// New resolves the home layout. Follows XDG Base Directory conventions on
// Unix and falls back to APPDATA on Windows.
func New() (*Home, error) {
	root, err := dataRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to determine data directory: %w", err)
	}
	cfg, err := configFile()
	if err != nil {
		return nil, fmt.Errorf("failed to determine config path: %w", err)
	}

	return &Home{
		RootPath:    root,
		ScratchPath: filepath.Join(root, "scratch"),
		ConfigPath:  cfg,
	}, nil
}

func dataRoot() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName), nil
	}

	return filepath.Join(home, ".local", "share", appName), nil
}

func configFile() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName, "config.yaml"), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, appName, "config.yaml"), nil
	}

	return filepath.Join(home, ".config", appName, "config.yaml"), nil
}

// Initialize creates the directory structure if it doesn't exist
func (h *Home) Initialize() error {
	for _, dir := range []string{h.RootPath, h.ScratchPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// StateDBPath returns the sqlite state database location
func (h *Home) StateDBPath() string {
	return filepath.Join(h.RootPath, "state.db")
}

// CleanScratch removes everything under the scratch directory. Safe to
// call between runs; never while a run is active.
func (h *Home) CleanScratch() error {
	entries, err := os.ReadDir(h.ScratchPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read scratch directory: %w", err)
	}

	for _, entry := range entries {
		path := filepath.Join(h.ScratchPath, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	return nil
}
