// Package flock provides cross-platform, non-blocking exclusive file locks.
//
// The allocation guard uses these locks so that two berth processes working
// the same issue key are serialized even though each process has its own
// in-memory state. Locks are advisory and released automatically by the
// kernel when the holding process exits.
//
// Usage:
//
//	f, err := flock.TryLockFile(path)
//	if errors.Is(err, flock.ErrLocked) {
//	    // another process holds it
//	}
//	defer flock.ReleaseFile(f)
package flock
