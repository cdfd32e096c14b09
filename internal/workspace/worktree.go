// Package workspace manages per-issue git worktrees.
// This file implements the git worktree operations the Manager builds on.
package workspace

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/berth/internal/ctxutil"
	"github.com/mrz1836/berth/internal/git"
)

// WorktreeRunner defines the git worktree operations the Manager needs.
// repoPath is any checkout of the repository; git resolves the rest.
type WorktreeRunner interface {
	// Add creates a worktree at path checked out on branch.
	// When createBranch is true the branch is created from the current HEAD.
	Add(ctx context.Context, repoPath, path, branch string, createBranch bool) error

	// List returns all worktrees of the repository, primary checkout first.
	List(ctx context.Context, repoPath string) ([]*WorktreeInfo, error)

	// Remove removes the worktree at path. force discards uncommitted changes.
	Remove(ctx context.Context, repoPath, path string, force bool) error

	// Status returns the working-tree status of the checkout at path.
	Status(ctx context.Context, path string) (*git.Status, error)

	// BranchExists reports whether a local branch exists.
	BranchExists(ctx context.Context, repoPath, name string) (bool, error)

	// Prune removes administrative entries for worktrees whose directory is gone.
	Prune(ctx context.Context, repoPath string) error

	// MainRoot returns the primary checkout of the repository that path belongs to.
	MainRoot(ctx context.Context, path string) (string, error)
}

// WorktreeInfo contains information about a worktree.
type WorktreeInfo struct {
	Path       string // Absolute path to the worktree
	Branch     string // Branch name (e.g., "DEMO-1/fix-login")
	HeadCommit string // HEAD commit SHA
	IsPrunable bool   // True if worktree directory is missing
	IsLocked   bool   // True if worktree has a lock file
}

// GitWorktreeRunner implements WorktreeRunner using the git CLI.
type GitWorktreeRunner struct {
	exec   git.Executor
	retry  git.LockRetryConfig
	logger zerolog.Logger
}

// NewGitWorktreeRunner creates a GitWorktreeRunner on top of exec.
func NewGitWorktreeRunner(exec git.Executor, logger zerolog.Logger) *GitWorktreeRunner {
	return &GitWorktreeRunner{
		exec:   exec,
		retry:  git.DefaultLockRetryConfig(),
		logger: logger,
	}
}

// Add creates a new worktree.
func (r *GitWorktreeRunner) Add(ctx context.Context, repoPath, path, branch string, createBranch bool) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	args := []string{"worktree", "add"}
	if createBranch {
		args = append(args, "-b", branch, path)
	} else {
		args = append(args, path, branch)
	}

	_, err := git.RunWithLockRetry(ctx, r.retry, r.logger, func(ctx context.Context) (string, error) {
		return r.exec.Run(ctx, repoPath, args...)
	})
	if err != nil {
		return fmt.Errorf("failed to create worktree at %s: %w", path, err)
	}

	r.logger.Info().
		Str("worktree_path", path).
		Str("branch_name", branch).
		Bool("new_branch", createBranch).
		Msg("worktree created")
	return nil
}

// List returns all worktrees in the repository.
func (r *GitWorktreeRunner) List(ctx context.Context, repoPath string) ([]*WorktreeInfo, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	output, err := r.exec.Run(ctx, repoPath, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	return parseWorktreeList(output), nil
}

// Remove removes a worktree.
func (r *GitWorktreeRunner) Remove(ctx context.Context, repoPath, path string, force bool) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	args := []string{"worktree", "remove", path}
	if force {
		args = append(args, "--force")
	}

	_, err := git.RunWithLockRetry(ctx, r.retry, r.logger, func(ctx context.Context) (string, error) {
		return r.exec.Run(ctx, repoPath, args...)
	})
	if err != nil {
		return fmt.Errorf("failed to remove worktree at %s: %w", path, err)
	}
	return nil
}

// Status returns the working-tree status at path.
func (r *GitWorktreeRunner) Status(ctx context.Context, path string) (*git.Status, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	output, err := r.exec.Run(ctx, path, git.StatusArgs()...)
	if err != nil {
		return nil, fmt.Errorf("failed to get status of %s: %w", path, err)
	}
	return git.ParseStatus(output), nil
}

// BranchExists checks if a local branch exists.
func (r *GitWorktreeRunner) BranchExists(ctx context.Context, repoPath, name string) (bool, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return false, err
	}

	ok, err := git.BranchExists(ctx, r.exec, repoPath, name)
	if err != nil {
		return false, fmt.Errorf("failed to check branch existence: %w", err)
	}
	return ok, nil
}

// Prune removes stale worktree entries.
func (r *GitWorktreeRunner) Prune(ctx context.Context, repoPath string) error {
	if err := ctxutil.Canceled(ctx); err != nil {
		return err
	}

	if _, err := r.exec.Run(ctx, repoPath, "worktree", "prune"); err != nil {
		return fmt.Errorf("failed to prune worktrees: %w", err)
	}
	return nil
}

// MainRoot resolves the primary checkout from the repository's common git dir.
func (r *GitWorktreeRunner) MainRoot(ctx context.Context, path string) (string, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return "", err
	}

	output, err := r.exec.Run(ctx, path, "rev-parse", "--path-format=absolute", "--git-common-dir")
	if err != nil {
		return "", fmt.Errorf("failed to locate repository for %s: %w", path, err)
	}
	return mainRootFromCommonDir(output), nil
}

// mainRootFromCommonDir maps /repo/.git to /repo. Bare repositories have no
// primary checkout; the common dir itself is returned.
func mainRootFromCommonDir(commonDir string) string {
	commonDir = filepath.Clean(strings.TrimSpace(commonDir))
	if filepath.Base(commonDir) == ".git" {
		return filepath.Dir(commonDir)
	}
	return commonDir
}

// parseWorktreeList parses git worktree list --porcelain output.
//
//nolint:nestif // Parsing porcelain output requires nested conditionals
func parseWorktreeList(output string) []*WorktreeInfo {
	var worktrees []*WorktreeInfo
	var current *WorktreeInfo

	for _, line := range strings.Split(output, "\n") {
		if strings.HasPrefix(line, "worktree ") {
			if current != nil {
				worktrees = append(worktrees, current)
			}
			current = &WorktreeInfo{
				Path: filepath.Clean(strings.TrimPrefix(line, "worktree ")),
			}
		} else if current != nil {
			switch {
			case strings.HasPrefix(line, "HEAD "):
				current.HeadCommit = strings.TrimPrefix(line, "HEAD ")
			case strings.HasPrefix(line, "branch "):
				// refs/heads/DEMO-1/fix -> DEMO-1/fix
				current.Branch = strings.TrimPrefix(line, "branch refs/heads/")
			case strings.HasPrefix(line, "prunable"):
				current.IsPrunable = true
			case strings.HasPrefix(line, "locked"):
				current.IsLocked = true
			}
		}
	}

	if current != nil {
		worktrees = append(worktrees, current)
	}

	return worktrees
}
