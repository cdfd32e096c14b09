package cli

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/mrz1836/berth/internal/config"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/git"
	"github.com/mrz1836/berth/internal/guard"
	"github.com/mrz1836/berth/internal/session"
	"github.com/mrz1836/berth/internal/tracker"
	"github.com/mrz1836/berth/internal/workspace"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg     *config.Config
	store   *tracker.SQLiteStore
	git     git.Executor
	runner  *workspace.GitWorktreeRunner
	manager *workspace.Manager
	service *session.Service
	logger  zerolog.Logger
}

// openApp loads configuration and opens the tracker. Callers must Close it.
func openApp(ctx context.Context) (*app, error) {
	logger := GetLogger()

	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	dbPath, err := cfg.TrackerPath()
	if err != nil {
		return nil, err
	}
	lockDir, err := cfg.LockDir()
	if err != nil {
		return nil, err
	}
	root, err := cfg.WorkspaceRoot()
	if err != nil {
		return nil, err
	}

	store, err := tracker.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker %s: %w", dbPath, err)
	}

	executor := git.NewCLI(cfg.Git.Binary, cfg.Git.Timeout)
	runner := workspace.NewGitWorktreeRunner(executor, logger)
	manager := workspace.NewManager(runner,
		workspace.WithRoot(root),
		workspace.WithSlugMax(cfg.Workspace.BranchSlugMax),
		workspace.WithLogger(logger),
	)
	g := guard.New(guard.WithLockDir(lockDir), guard.WithLogger(logger))

	logger.Debug().
		Str("tracker_db_path", dbPath).
		Str("lock_dir", lockDir).
		Str("workspace_root", root).
		Msg("berth initialized")

	return &app{
		cfg:     cfg,
		store:   store,
		git:     executor,
		runner:  runner,
		manager: manager,
		service: session.NewService(store, manager, g, logger),
		logger:  logger,
	}, nil
}

// Close releases the tracker.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to close tracker")
	}
}

// sharedRoot returns the shared checkout: explicit when given, otherwise the
// primary worktree of the repository containing dir (or the working directory).
func (a *app) sharedRoot(ctx context.Context, explicit, dir string) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		dir = wd
	}
	root, err := a.runner.MainRoot(ctx, dir)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		a.logger.Debug().Err(err).Str("dir", dir).Msg("no repository found")
		return "", fmt.Errorf("%s: %w", dir, berrors.ErrNotGitRepo)
	}
	return root, nil
}

// headCommit returns the HEAD commit of the worktree at dir, or "" when it
// cannot be read.
func (a *app) headCommit(ctx context.Context, dir string) string {
	out, err := a.git.Run(ctx, dir, "rev-parse", "HEAD")
	if err != nil {
		a.logger.Debug().Err(err).Str("worktree_path", dir).Msg("could not read HEAD")
		return ""
	}
	return out
}

// operatorName picks the session operator: flag, then config, then the OS user.
func operatorName(flag string, cfg *config.Config) string {
	if s := strings.TrimSpace(flag); s != "" {
		return s
	}
	if s := strings.TrimSpace(cfg.Operator); s != "" {
		return s
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if s := os.Getenv("USER"); s != "" {
		return s
	}
	return "unknown"
}
