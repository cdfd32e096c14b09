package flock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrLocked is returned by TryLockFile when another holder owns the lock.
var ErrLocked = errors.New("file is locked")

const (
	lockDirPerm  = 0o750
	lockFilePerm = 0o600
)

// TryLockFile opens (creating if needed) the file at path and takes an
// exclusive non-blocking lock on it. The parent directory is created.
// Returns ErrLocked if the lock is held elsewhere; other lock failures are
// returned wrapped and do not match ErrLocked.
func TryLockFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, lockFilePerm) //#nosec G304 -- path is built from a validated issue key
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}

	if err := Exclusive(f.Fd()); err != nil {
		_ = f.Close()
		if contended(err) {
			return nil, fmt.Errorf("%s: %w", path, ErrLocked)
		}
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	return f, nil
}

// ReleaseFile unlocks and closes a file returned by TryLockFile.
// The lock file itself is left on disk; removing it would race with a
// concurrent opener that already holds a descriptor to the old inode.
func ReleaseFile(f *os.File) error {
	if f == nil {
		return nil
	}
	if err := Unlock(f.Fd()); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return f.Close()
}
