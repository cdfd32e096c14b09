// Package constants provides centralized constant values used throughout berth.
// This package is the single source of truth for all shared constants and MUST NOT
// import any other internal packages.
package constants

import "time"

// Directory names and paths used by berth for organizing data.
const (
	// BerthHome is the hidden directory name where berth stores its data.
	// This directory is created in the user's home directory.
	BerthHome = ".berth"

	// LogsDir is the directory name where log files are stored.
	LogsDir = "logs"

	// LocksDir is the directory name where per-issue allocation lock files live.
	LocksDir = "locks"

	// TrackerFileName is the SQLite database file holding projects, issues and work sessions.
	TrackerFileName = "tracker.db"

	// WorkspaceRootSuffix is appended to the shared checkout path to form the
	// default workspace root. A checkout at /repo gets workspaces under /repo-workspaces.
	WorkspaceRootSuffix = "-workspaces"
)

// Timeout configurations for external executable calls.
const (
	// DefaultGitTimeout bounds a single git invocation.
	// Worktree creation on large repositories can take several seconds.
	DefaultGitTimeout = 30 * time.Second

	// DefaultLockTimeout is how long store-level locks are retried before giving up.
	DefaultLockTimeout = 5 * time.Second
)

// Branch naming.
const (
	// DefaultBranchSlugMax is the maximum length of the title slug in a workspace branch name.
	DefaultBranchSlugMax = 50

	// UntitledSlug is used when an issue title produces an empty slug.
	UntitledSlug = "untitled"
)

// Output limits.
const (
	// MaxStderrExcerpt caps how much of a failing executable's stderr is carried in errors.
	MaxStderrExcerpt = 512
)
