package config

import (
	"github.com/mrz1836/berth/internal/constants"
)

// DefaultConfig returns a new Config with sensible default values.
// Path fields stay empty and are resolved against the berth home by the CLI.
func DefaultConfig() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:          "",
			BranchSlugMax: constants.DefaultBranchSlugMax,
		},
		Git: GitConfig{
			Binary:  "git",
			Timeout: constants.DefaultGitTimeout,
		},
	}
}
