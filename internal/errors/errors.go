// Package errors provides centralized error handling for berth.
//
// This package defines sentinel errors used for programmatic error categorization
// throughout the application. All error types can be checked using errors.Is().
//
// IMPORTANT: This package MUST NOT import any other internal packages.
// Only standard library imports are allowed.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for error categorization.
var (
	// ErrIssueNotFound indicates a key or canonical id did not match any issue.
	ErrIssueNotFound = errors.New("issue not found")

	// ErrProjectNotFound indicates the referenced project does not exist.
	ErrProjectNotFound = errors.New("project not found")

	// ErrInvalidReference indicates a token is neither a canonical id nor a key.
	ErrInvalidReference = errors.New("invalid issue reference")

	// ErrInvalidTransition indicates the issue status does not allow the requested operation.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrSessionInFlight indicates another start or submit for the same issue is running.
	// Safe to retry after a short delay.
	ErrSessionInFlight = errors.New("session operation already in flight")

	// ErrSessionActive indicates the issue already has an open work session.
	ErrSessionActive = errors.New("issue already has an active session")

	// ErrSessionHistory indicates an issue cannot be deleted because work
	// sessions were recorded for it. Session history is never removed.
	ErrSessionHistory = errors.New("issue has recorded work sessions")

	// ErrNoActiveSession indicates submit was requested for an issue with no open session.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotFound indicates the requested work session does not exist.
	ErrSessionNotFound = errors.New("work session not found")

	// ErrVersionControl indicates that the version-control executable failed,
	// timed out, or could not be started.
	ErrVersionControl = errors.New("version control operation failed")

	// ErrWorkspaceExists indicates a workspace is already registered at the computed path.
	ErrWorkspaceExists = errors.New("workspace already exists")

	// ErrWorkspaceNotFound indicates the workspace path no longer exists.
	ErrWorkspaceNotFound = errors.New("workspace not found")

	// ErrWorkspaceDirty indicates teardown was refused because the workspace has uncommitted changes.
	ErrWorkspaceDirty = errors.New("workspace has uncommitted changes")

	// ErrNotAWorktree indicates the path is not a removable worktree (e.g. the primary checkout).
	ErrNotAWorktree = errors.New("not a git worktree")

	// ErrNotGitRepo indicates the path is not a git repository.
	ErrNotGitRepo = errors.New("not a git repository")

	// ErrEditOutsideWorkspace indicates a file mutation targeted the shared checkout.
	ErrEditOutsideWorkspace = errors.New("edit outside of an active workspace")

	// ErrEmptyValue indicates that a required value was empty.
	ErrEmptyValue = errors.New("value cannot be empty")

	// ErrValueOutOfRange indicates that a value is outside the allowed range.
	ErrValueOutOfRange = errors.New("value out of range")

	// ErrDuplicatePrefix indicates a project with the same key prefix already exists.
	ErrDuplicatePrefix = errors.New("project prefix already in use")

	// ErrLockTimeout indicates a lock could not be acquired within the timeout period.
	ErrLockTimeout = errors.New("lock acquisition timeout")

	// ErrCommandTimeout indicates an external command exceeded its timeout.
	ErrCommandTimeout = errors.New("command timeout exceeded")

	// ErrConfigNil indicates that a nil config was passed to validation.
	ErrConfigNil = errors.New("config is nil")

	// ErrConfigInvalid indicates an invalid configuration value.
	ErrConfigInvalid = errors.New("invalid configuration")

	// ErrInvalidOutputFormat indicates an invalid output format was specified.
	ErrInvalidOutputFormat = errors.New("invalid output format")

	// ErrNonInteractiveMode indicates a confirmation was needed but stdin is not a terminal.
	ErrNonInteractiveMode = errors.New("use --yes in non-interactive mode")

	// ErrOperationCanceled indicates the user declined a confirmation.
	ErrOperationCanceled = errors.New("operation canceled by user")

	// ErrJSONErrorOutput indicates that an error has already been output as JSON.
	ErrJSONErrorOutput = errors.New("error output as JSON")
)

// OpError records the operation and issue key an error belongs to, so every
// failure surfaced to an operator names what was attempted and on which issue.
type OpError struct {
	// Op is the attempted operation (start, submit, cleanup, status).
	Op string
	// Key is the issue key or reference as given by the caller.
	Key string
	// Err is the underlying error.
	Err error
}

// NewOpError wraps err with operation context. Returns nil if err is nil.
func NewOpError(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return &OpError{Op: op, Key: key, Err: err}
}

// Error implements the error interface.
func (e *OpError) Error() string {
	if e.Key == "" {
		return e.Op + ": " + e.Err.Error()
	}
	return e.Op + " " + e.Key + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}

// ExitCode2Error wraps an error to indicate exit code 2 should be used.
type ExitCode2Error struct {
	Err error
}

// NewExitCode2Error wraps an error to indicate exit code 2.
func NewExitCode2Error(err error) *ExitCode2Error {
	return &ExitCode2Error{Err: err}
}

// Error implements the error interface.
func (e *ExitCode2Error) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *ExitCode2Error) Unwrap() error {
	return e.Err
}

// IsExitCode2Error checks if an error should result in exit code 2.
func IsExitCode2Error(err error) bool {
	var e *ExitCode2Error
	return errors.As(err, &e)
}

// IsRetryable reports whether the operation may succeed if retried unchanged.
// In-flight collisions, lock timeouts and version-control failures are
// transient; state and reference errors are not.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSessionInFlight) || errors.Is(err, ErrVersionControl) || errors.Is(err, ErrLockTimeout)
}

// Wrap adds context to errors at package boundaries.
// It returns nil if err is nil, allowing for safe inline usage.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context to errors at package boundaries.
// It returns nil if err is nil.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
