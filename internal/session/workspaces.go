package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mrz1836/berth/internal/boundary"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/workspace"
)

// ListWorkspaces returns the worktrees of the repository at basePath, the
// shared checkout first. With withStatus, each issue workspace also gets
// its working-tree status; a workspace whose status cannot be read is
// listed without one.
func (s *Service) ListWorkspaces(ctx context.Context, basePath string, withStatus bool) ([]*domain.Workspace, error) {
	list, err := s.workspaces.List(ctx, basePath)
	if err != nil {
		return nil, berrors.NewOpError(OpStatus, "", err)
	}
	if !withStatus {
		return list, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.statusParallelism)
	for _, ws := range list {
		if ws.Primary || ws.Prunable {
			continue
		}
		g.Go(func() error {
			st, err := s.workspaces.Status(gctx, ws.Path)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s.logger.Warn().Err(err).Str("worktree_path", ws.Path).Msg("workspace status unavailable")
				return nil
			}
			ws.Status = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return list, nil
}

// GetWorkspaceStatus reports the working-tree state of the workspace at path.
func (s *Service) GetWorkspaceStatus(ctx context.Context, path string) (*domain.WorkspaceStatus, error) {
	st, err := s.workspaces.Status(ctx, path)
	if err != nil {
		return nil, berrors.NewOpError(OpStatus, path, err)
	}
	return st, nil
}

// CleanupWorkspace retries teardown of the workspace left behind by an
// issue's most recent session. A refusal is reported in the result, not as
// an error. On removal the session's retained flag is cleared.
func (s *Service) CleanupWorkspace(ctx context.Context, issueRef string, force bool) (*workspace.RemoveResult, error) {
	ref := strings.TrimSpace(issueRef)
	issue, release, err := s.acquire(ctx, ref)
	if err != nil {
		return nil, berrors.NewOpError(OpCleanup, ref, err)
	}
	defer release()

	sess, err := s.tracker.LatestSession(ctx, issue.ID)
	if err != nil {
		return nil, berrors.NewOpError(OpCleanup, issue.Key, err)
	}
	if sess.Active() {
		return nil, berrors.NewOpError(OpCleanup, issue.Key,
			fmt.Errorf("submit the active session instead: %w", berrors.ErrSessionActive))
	}
	if !sess.HasWorkspace() {
		return nil, berrors.NewOpError(OpCleanup, issue.Key,
			fmt.Errorf("latest session recorded no workspace: %w", berrors.ErrWorkspaceNotFound))
	}

	result, err := s.workspaces.Remove(ctx, sess.WorkspacePath, force)
	if errors.Is(err, berrors.ErrWorkspaceNotFound) {
		result, err = &workspace.RemoveResult{}, nil
	}
	if err != nil {
		return nil, berrors.NewOpError(OpCleanup, issue.Key, err)
	}
	if result.Refused {
		return result, nil
	}

	if sess.WorkspaceRetained {
		if err := s.tracker.SetWorkspaceRetained(ctx, sess.ID, false); err != nil {
			return nil, berrors.NewOpError(OpCleanup, issue.Key, err)
		}
	}
	s.logger.Info().
		Str("op", OpCleanup).
		Str("issue_key", issue.Key).
		Str("worktree_path", sess.WorkspacePath).
		Bool("removed", result.Removed).
		Msg("workspace cleaned up")
	return result, nil
}

// Sessions returns an issue's session history, oldest first.
func (s *Service) Sessions(ctx context.Context, issueRef string) (*domain.Issue, []*domain.WorkSession, error) {
	issue, err := s.resolver.ResolveIssue(ctx, issueRef)
	if err != nil {
		return nil, nil, berrors.NewOpError(OpSessions, strings.TrimSpace(issueRef), err)
	}
	sessions, err := s.tracker.ListSessions(ctx, issue.ID)
	if err != nil {
		return nil, nil, berrors.NewOpError(OpSessions, issue.Key, err)
	}
	return issue, sessions, nil
}

// CheckEditAllowed decides whether path may be edited given the shared
// checkout at sharedRoot. Relative paths resolve against baseDir, or the
// process working directory when baseDir is empty.
func (s *Service) CheckEditAllowed(ctx context.Context, sharedRoot, baseDir, path string) (boundary.Decision, error) {
	policy := &boundary.Policy{
		SharedRoot: sharedRoot,
		Workspaces: s.workspaces,
		BaseDir:    baseDir,
		Logger:     s.logger,
	}
	d, err := policy.Check(ctx, path)
	if err != nil {
		return boundary.Decision{}, berrors.NewOpError(OpCheck, path, err)
	}
	return d, nil
}
