package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/ctxutil"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/git"
)

// RemoveResult describes the outcome of a teardown attempt.
type RemoveResult struct {
	// Removed is true when the worktree directory was deleted.
	Removed bool `json:"removed"`
	// Refused is true when teardown was skipped because the workspace had
	// uncommitted changes and force was not set. Nothing was destroyed.
	Refused bool `json:"refused"`
	// UncommittedCount is the number of uncommitted paths found before teardown.
	UncommittedCount int `json:"uncommitted_count"`
}

// Manager creates, inspects, and tears down per-issue workspaces.
// Workspaces are never persisted; every query reads git directly.
type Manager struct {
	runner  WorktreeRunner
	root    string
	slugMax int
	logger  zerolog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithRoot places all workspaces under root instead of "<basePath>-workspaces".
func WithRoot(root string) Option {
	return func(m *Manager) {
		m.root = root
	}
}

// WithSlugMax bounds the slug part of generated branch names.
func WithSlugMax(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.slugMax = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager creates a Manager over runner.
func NewManager(runner WorktreeRunner, opts ...Option) *Manager {
	m := &Manager{
		runner:  runner,
		slugMax: constants.DefaultBranchSlugMax,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Root returns the directory that holds workspaces for the repository at basePath.
//
// Example: Root("/repo") -> "/repo-workspaces"
func (m *Manager) Root(basePath string) string {
	if m.root != "" {
		return filepath.Clean(m.root)
	}
	return filepath.Clean(basePath) + constants.WorkspaceRootSuffix
}

// PathFor returns the workspace directory for an issue key.
func (m *Manager) PathFor(basePath, key string) string {
	return filepath.Join(m.Root(basePath), key)
}

// Create makes an isolated checkout for issue at "<root>/<KEY>" on branch
// "<KEY>/<slug>". An existing branch of that name is checked out rather
// than recreated so work resumes where a previous session left it.
func (m *Manager) Create(ctx context.Context, issue *domain.Issue, basePath string) (*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}
	if issue == nil || issue.Key == "" {
		return nil, fmt.Errorf("issue key: %w", berrors.ErrEmptyValue)
	}
	if basePath == "" {
		return nil, fmt.Errorf("base path: %w", berrors.ErrEmptyValue)
	}

	base, err := canonicalPath(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	path, err := canonicalPath(m.PathFor(base, issue.Key))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}

	worktrees, err := m.runner.List(ctx, base)
	if err != nil {
		return nil, err
	}
	for _, wt := range worktrees {
		if wt.Path == path {
			return nil, fmt.Errorf("%s is already a registered worktree: %w", path, berrors.ErrWorkspaceExists)
		}
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return nil, fmt.Errorf("%s already exists on disk: %w", path, berrors.ErrWorkspaceExists)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}

	branch := git.BranchName(issue.Key, issue.Title, m.slugMax)
	exists, err := m.runner.BranchExists(ctx, base, branch)
	if err != nil {
		return nil, err
	}

	if err := m.runner.Add(ctx, base, path, branch, !exists); err != nil {
		// The path did not exist before; leave nothing half-made behind.
		_ = os.RemoveAll(path)
		m.logger.Error().
			Err(err).
			Str("issue_key", issue.Key).
			Str("worktree_path", path).
			Str("branch_name", branch).
			Msg("failed to create workspace")
		return nil, err
	}

	return &domain.Workspace{
		Path:     path,
		Branch:   branch,
		IssueKey: issue.Key,
	}, nil
}

// Status reports the working-tree state of the workspace at path.
func (m *Manager) Status(ctx context.Context, path string) (*domain.WorkspaceStatus, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	abs, err := m.existingPath(path)
	if err != nil {
		return nil, err
	}

	st, err := m.runner.Status(ctx, abs)
	if err != nil {
		return nil, err
	}

	count := st.UncommittedCount()
	return &domain.WorkspaceStatus{
		Path:             abs,
		Branch:           st.Branch,
		HasChanges:       count > 0,
		UncommittedCount: count,
	}, nil
}

// List returns every worktree of the repository at basePath. The first
// entry is the primary checkout.
func (m *Manager) List(ctx context.Context, basePath string) ([]*domain.Workspace, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	base, err := canonicalPath(basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}

	worktrees, err := m.runner.List(ctx, base)
	if err != nil {
		return nil, err
	}

	root, err := canonicalPath(m.Root(base))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	result := make([]*domain.Workspace, 0, len(worktrees))
	for i, wt := range worktrees {
		ws := &domain.Workspace{
			Path:     wt.Path,
			Branch:   wt.Branch,
			Head:     wt.HeadCommit,
			Primary:  i == 0,
			Prunable: wt.IsPrunable,
			Locked:   wt.IsLocked,
		}
		if !ws.Primary && filepath.Dir(wt.Path) == root {
			ws.IssueKey = filepath.Base(wt.Path)
		}
		result = append(result, ws)
	}
	return result, nil
}

// Remove tears down the workspace at path. A workspace with uncommitted
// changes is left untouched unless force is set. The branch is kept.
func (m *Manager) Remove(ctx context.Context, path string, force bool) (*RemoveResult, error) {
	if err := ctxutil.Canceled(ctx); err != nil {
		return nil, err
	}

	abs, err := m.existingPath(path)
	if err != nil {
		return nil, err
	}

	repo, err := m.runner.MainRoot(ctx, abs)
	if err != nil {
		return nil, err
	}
	if filepath.Clean(repo) == abs {
		return nil, fmt.Errorf("%s is the primary checkout: %w", abs, berrors.ErrNotAWorktree)
	}

	st, err := m.runner.Status(ctx, abs)
	if err != nil {
		return nil, err
	}
	result := &RemoveResult{UncommittedCount: st.UncommittedCount()}

	if result.UncommittedCount > 0 && !force {
		result.Refused = true
		m.logger.Warn().
			Str("worktree_path", abs).
			Int("uncommitted_count", result.UncommittedCount).
			Msg("workspace has uncommitted changes, teardown refused")
		return result, nil
	}

	if err := m.runner.Remove(ctx, repo, abs, result.UncommittedCount > 0); err != nil {
		return result, err
	}
	result.Removed = true

	if err := m.runner.Prune(ctx, repo); err != nil {
		m.logger.Debug().Err(err).Str("repo_path", repo).Msg("worktree prune failed")
	}

	m.logger.Info().
		Str("worktree_path", abs).
		Bool("forced", result.UncommittedCount > 0).
		Msg("workspace removed")
	return result, nil
}

// existingPath returns the absolute, symlink-free form of path, or
// ErrWorkspaceNotFound when it is not an existing directory.
func (m *Manager) existingPath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("workspace path: %w", berrors.ErrEmptyValue)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", abs, berrors.ErrWorkspaceNotFound)
		}
		return "", fmt.Errorf("failed to stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory: %w", abs, berrors.ErrWorkspaceNotFound)
	}
	return canonicalPath(abs)
}

// canonicalPath makes path absolute and resolves symlinks in the part of it
// that exists, matching the paths git reports for worktrees (on macOS /tmp
// and /var are symlinks).
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	parent := filepath.Dir(abs)
	if parent == abs {
		return abs, nil
	}
	dir, err := canonicalPath(parent)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(abs)), nil
}
