package config

import (
	"time"

	"github.com/mrz1836/berth/internal/errors"
)

const (
	minGitTimeout    = time.Second
	maxBranchSlugMax = 200
)

// Validate checks the configuration for invalid or inconsistent values.
// It returns an error describing the first validation failure found.
//
// Validation rules:
//   - git.binary must not be empty
//   - git.timeout must be at least one second
//   - workspace.branch_slug_max must be between 1 and 200
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.ErrConfigNil
	}

	if err := validateGitConfig(&cfg.Git); err != nil {
		return err
	}

	return validateWorkspaceConfig(&cfg.Workspace)
}

func validateGitConfig(cfg *GitConfig) error {
	if cfg.Binary == "" {
		return errors.Wrap(errors.ErrConfigInvalid, "git.binary must not be empty")
	}
	if cfg.Timeout < minGitTimeout {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"git.timeout must be at least %s, got %s", minGitTimeout, cfg.Timeout)
	}
	return nil
}

func validateWorkspaceConfig(cfg *WorkspaceConfig) error {
	if cfg.BranchSlugMax < 1 || cfg.BranchSlugMax > maxBranchSlugMax {
		return errors.Wrapf(errors.ErrConfigInvalid,
			"workspace.branch_slug_max must be between 1 and %d, got %d",
			maxBranchSlugMax, cfg.BranchSlugMax)
	}
	return nil
}
