// Package testutil provides shared failure fixtures for berth tests.
// It should only be imported by test files (*_test.go).
package testutil

import (
	"errors"

	"github.com/mrz1836/berth/internal/git"
)

// Mock errors for simulating collaborator failures.
var (
	// ErrMockDatabaseLocked mimics SQLite lock contention in the tracker.
	ErrMockDatabaseLocked = errors.New("database is locked")

	// ErrMockDiskIO mimics a storage failure in the tracker.
	ErrMockDiskIO = errors.New("disk I/O error")

	// ErrMockExit128 mimics git's generic fatal exit status.
	ErrMockExit128 = errors.New("exit status 128")

	// ErrMockGitUnavailable mimics a missing or broken git installation.
	ErrMockGitUnavailable = errors.New("git unavailable")
)

// GitFailure returns a git command error for args with the given stderr,
// classified as a version-control failure.
func GitFailure(stderr string, args ...string) *git.CommandError {
	return &git.CommandError{
		Args:   args,
		Stderr: stderr,
		Err:    ErrMockExit128,
	}
}
