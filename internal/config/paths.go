package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/errors"
)

// GlobalConfigDir returns the berth home directory.
// BERTH_HOME wins when set; otherwise this is ~/.berth.
//
// Returns an error if the home directory cannot be determined.
func GlobalConfigDir() (string, error) {
	if dir := os.Getenv(constants.EnvHome); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, constants.BerthHome), nil
}

// ProjectConfigDir returns the relative path to the project configuration directory.
func ProjectConfigDir() string {
	return constants.ProjectConfigDir
}

// GlobalConfigPath returns the full path to the global configuration file.
func GlobalConfigPath() (string, error) {
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", fmt.Errorf("get global config path: %w", err)
	}
	return filepath.Join(dir, constants.GlobalConfigName), nil
}

// ProjectConfigPath returns the relative path to the project configuration file.
func ProjectConfigPath() string {
	return filepath.Join(ProjectConfigDir(), constants.GlobalConfigName)
}

// TrackerPath returns the configured database path, defaulting to the berth home.
func (c *Config) TrackerPath() (string, error) {
	if c.Tracker.DBPath != "" {
		return expandHome(c.Tracker.DBPath)
	}
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.TrackerFileName), nil
}

// LockDir returns the configured lock directory, defaulting to the berth home.
func (c *Config) LockDir() (string, error) {
	if c.Guard.LockDir != "" {
		return expandHome(c.Guard.LockDir)
	}
	dir, err := GlobalConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, constants.LocksDir), nil
}

// WorkspaceRoot returns the configured workspace root, or empty for the default.
func (c *Config) WorkspaceRoot() (string, error) {
	if c.Workspace.Root == "" {
		return "", nil
	}
	return expandHome(c.Workspace.Root)
}

// expandHome replaces a leading "~" with the user's home directory.
func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
