package git

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LockRetryConfig configures retry behavior for git lock file contention.
// Parallel operators adding and removing worktrees on the same repository
// contend on .git/index.lock and .git/worktrees/*/locked.
type LockRetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultLockRetryConfig returns short delays; git lock files are typically
// released within milliseconds.
func DefaultLockRetryConfig() LockRetryConfig {
	return LockRetryConfig{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2 * time.Second,
		Multiplier:   2.0,
	}
}

// MatchesLockFileError reports whether a git error message indicates lock contention.
func MatchesLockFileError(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "index.lock") ||
		(strings.Contains(lower, "unable to create") && strings.Contains(lower, ".lock")) ||
		strings.Contains(lower, "another git process seems to be running")
}

// RunWithLockRetry executes operation, retrying with exponential backoff
// while it fails with a lock file error. Other errors return immediately.
func RunWithLockRetry[R any](
	ctx context.Context,
	config LockRetryConfig,
	logger zerolog.Logger,
	operation func(ctx context.Context) (R, error),
) (R, error) {
	var zero R
	var lastErr error
	delay := config.InitialDelay

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !MatchesLockFileError(err.Error()) {
			return zero, err
		}

		logger.Debug().
			Int("attempt", attempt).
			Int("max_attempts", config.MaxAttempts).
			Dur("delay", delay).
			Err(err).
			Msg("git lock file busy, retrying")

		if attempt >= config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * config.Multiplier)
		if delay > config.MaxDelay {
			delay = config.MaxDelay
		}
	}

	logger.Warn().
		Int("attempts", config.MaxAttempts).
		Err(lastErr).
		Msg("git lock file retry exhausted")

	return zero, lastErr
}
