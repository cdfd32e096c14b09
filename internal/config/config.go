// Package config provides configuration management for berth with layered precedence.
//
// Configuration sources are loaded in the following order (highest precedence first):
//  1. CLI flags (passed via LoadWithOverrides)
//  2. Environment variables (BERTH_* prefix)
//  3. Project config (.berth/config.yaml)
//  4. Global config (~/.berth/config.yaml)
//  5. Built-in defaults
//
// Each higher level completely overrides the lower level for the same key.
//
// IMPORTANT: This package may import internal/constants and internal/errors,
// but MUST NOT import internal/domain or other internal packages.
package config

import "time"

// Config is the root configuration structure for berth.
type Config struct {
	// Workspace controls where per-issue worktrees are created and how branches are named.
	Workspace WorkspaceConfig `yaml:"workspace" mapstructure:"workspace"`

	// Git controls how the git executable is invoked.
	Git GitConfig `yaml:"git" mapstructure:"git"`

	// Tracker locates the issue and work-session database.
	Tracker TrackerConfig `yaml:"tracker" mapstructure:"tracker"`

	// Guard configures cross-process allocation locks.
	Guard GuardConfig `yaml:"guard" mapstructure:"guard"`

	// Operator is the default identity recorded on work sessions.
	// Empty means the current OS user.
	Operator string `yaml:"operator" mapstructure:"operator"`
}

// WorkspaceConfig contains settings for workspace layout.
type WorkspaceConfig struct {
	// Root is the directory holding all per-issue workspaces.
	// Empty means "<shared checkout>-workspaces".
	Root string `yaml:"root" mapstructure:"root"`

	// BranchSlugMax caps the length of the title slug in branch names.
	// Default: 50
	BranchSlugMax int `yaml:"branch_slug_max" mapstructure:"branch_slug_max"`
}

// GitConfig contains settings for the git executable.
type GitConfig struct {
	// Binary is the git executable name or path.
	// Default: "git"
	Binary string `yaml:"binary" mapstructure:"binary"`

	// Timeout bounds every git invocation.
	// Default: 30 seconds
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TrackerConfig contains settings for the SQLite tracker.
type TrackerConfig struct {
	// DBPath is the SQLite database file. Empty means ~/.berth/tracker.db.
	DBPath string `yaml:"db_path" mapstructure:"db_path"`
}

// GuardConfig contains settings for the allocation guard.
type GuardConfig struct {
	// LockDir holds per-issue lock files. Empty means ~/.berth/locks.
	LockDir string `yaml:"lock_dir" mapstructure:"lock_dir"`
}
