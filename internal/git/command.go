// Package git wraps the git executable for berth.
// This file provides command execution with bounded timeouts and error
// classification. git is treated as a black-box CLI, never as a library.
package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/ctxutil"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/logging"
)

// Executor runs the version-control executable in a working directory and
// returns its trimmed stdout.
type Executor interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CommandError describes a failed git invocation. It always matches
// berrors.ErrVersionControl, and additionally berrors.ErrCommandTimeout when
// the invocation ran out of time.
type CommandError struct {
	// Args are the git arguments, without the binary name.
	Args []string
	// Stderr is a trimmed, length-capped excerpt of the command's stderr
	// with credentials redacted.
	Stderr string
	// Err is the underlying exec or timeout error.
	Err error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	op := "git"
	if len(e.Args) > 0 {
		op = "git " + e.Args[0]
		if len(e.Args) > 1 && e.Args[0] == "worktree" {
			op += " " + e.Args[1]
		}
	}
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %s: %s", op, e.Stderr, berrors.ErrVersionControl)
	}
	return fmt.Sprintf("%s failed: %v: %s", op, e.Err, berrors.ErrVersionControl)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *CommandError) Unwrap() []error {
	return []error{berrors.ErrVersionControl, e.Err}
}

// CLI runs git as a subprocess.
type CLI struct {
	// Binary is the executable name or path. Defaults to "git".
	Binary string
	// Timeout bounds each invocation. Zero means no bound beyond the caller's context.
	Timeout time.Duration
}

// NewCLI creates a CLI executor.
func NewCLI(binary string, timeout time.Duration) *CLI {
	if binary == "" {
		binary = "git"
	}
	return &CLI{Binary: binary, Timeout: timeout}
}

// Run executes git with args in dir.
func (c *CLI) Run(ctx context.Context, dir string, args ...string) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	runCtx, cancel := ctxutil.WithOptionalTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Binary, args...) //#nosec G204 -- args are constructed internally, not user input
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// The caller gave up; that is not a tooling failure.
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		cause := err
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			cause = fmt.Errorf("%w after %s", berrors.ErrCommandTimeout, c.Timeout)
		}
		return "", &CommandError{
			Args:   append([]string(nil), args...),
			Stderr: Excerpt(logging.Redact(stderr.String()), constants.MaxStderrExcerpt),
			Err:    cause,
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Excerpt trims s and caps it at limit bytes, marking truncation with "...".
func Excerpt(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return strings.TrimSpace(s[:limit]) + "..."
}

// IsNotFoundRef reports whether err is git's answer for a missing ref, which
// callers usually treat as "false" rather than a failure.
func IsNotFoundRef(err error) bool {
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	var exitErr *exec.ExitError
	if errors.As(cmdErr.Err, &exitErr) && exitErr.ExitCode() == 1 {
		return true
	}
	return strings.Contains(cmdErr.Stderr, "not a valid ref")
}
