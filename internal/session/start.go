package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

// StartRequest asks to begin work on an issue.
type StartRequest struct {
	// IssueRef is an issue key or canonical id.
	IssueRef string
	// Operator identifies who is doing the work.
	Operator string
	// BasePath is the shared checkout the workspace branches from.
	BasePath string
}

// StartResult reports a started session. WorkspaceWarning is set when the
// session was recorded but no workspace could be made for it.
type StartResult struct {
	Issue            *domain.Issue
	Session          *domain.WorkSession
	Workspace        *domain.Workspace
	WorkspaceWarning error
}

// StartWork creates the issue's workspace, then records a session for the
// operator and moves the ready issue to in_progress in one tracker write.
// Workspace failures do not stop the transition; they come back as
// StartResult.WorkspaceWarning. When the tracker write fails the new
// workspace is removed again so a retry starts clean.
func (s *Service) StartWork(ctx context.Context, req StartRequest) (*StartResult, error) {
	ref := strings.TrimSpace(req.IssueRef)
	if ref == "" {
		return nil, berrors.NewOpError(OpStart, "", fmt.Errorf("issue reference: %w", berrors.ErrEmptyValue))
	}
	if strings.TrimSpace(req.Operator) == "" {
		return nil, berrors.NewOpError(OpStart, ref, fmt.Errorf("operator: %w", berrors.ErrEmptyValue))
	}
	if strings.TrimSpace(req.BasePath) == "" {
		return nil, berrors.NewOpError(OpStart, ref, fmt.Errorf("base path: %w", berrors.ErrEmptyValue))
	}

	issue, release, err := s.acquire(ctx, ref)
	if err != nil {
		return nil, berrors.NewOpError(OpStart, ref, err)
	}
	defer release()

	log := s.logger.With().Str("op", OpStart).Str("issue_key", issue.Key).Logger()

	if issue.Status != constants.IssueStatusReady {
		return nil, berrors.NewOpError(OpStart, issue.Key,
			fmt.Errorf("issue is %s, not ready: %w", issue.Status, berrors.ErrInvalidTransition))
	}

	if _, err := s.tracker.ActiveSession(ctx, issue.ID); err == nil {
		return nil, berrors.NewOpError(OpStart, issue.Key,
			fmt.Errorf("%w: %w", berrors.ErrInvalidTransition, berrors.ErrSessionActive))
	} else if !errors.Is(err, berrors.ErrNoActiveSession) {
		return nil, berrors.NewOpError(OpStart, issue.Key, err)
	}

	result := &StartResult{}
	sess := &domain.WorkSession{
		IssueID:   issue.ID,
		IssueKey:  issue.Key,
		Operator:  strings.TrimSpace(req.Operator),
		StartedAt: s.clock.Now(),
	}

	ws, wsErr := s.workspaces.Create(ctx, issue, req.BasePath)
	if wsErr != nil {
		result.WorkspaceWarning = berrors.NewOpError(OpStart, issue.Key, wsErr)
		log.Warn().Err(wsErr).Msg("workspace not created, recording session without one")
	} else {
		sess.WorkspacePath = ws.Path
		sess.Branch = ws.Branch
		result.Workspace = ws
	}

	updated, err := s.tracker.StartSession(ctx, sess)
	if err != nil {
		if ws != nil {
			s.discardWorkspace(ctx, issue.Key, ws)
		}
		if errors.Is(err, berrors.ErrSessionActive) {
			err = fmt.Errorf("%w: %w", berrors.ErrInvalidTransition, err)
		}
		return nil, berrors.NewOpError(OpStart, issue.Key, err)
	}
	result.Issue = updated
	result.Session = sess

	log.Info().
		Str("session_id", sess.ID).
		Str("operator", sess.Operator).
		Str("worktree_path", sess.WorkspacePath).
		Str("branch_name", sess.Branch).
		Msg("work started")
	return result, nil
}

// discardWorkspace removes a workspace made for a start that could not be
// recorded. The branch is left for the next start to reuse.
func (s *Service) discardWorkspace(ctx context.Context, key string, ws *domain.Workspace) {
	log := s.logger.With().Str("op", OpStart).Str("issue_key", key).Str("worktree_path", ws.Path).Logger()
	if _, err := s.workspaces.Remove(ctx, ws.Path, true); err != nil {
		log.Error().Err(err).Msg("failed to remove workspace of unrecorded session")
		return
	}
	log.Debug().Msg("workspace of unrecorded session removed")
}

// acquire resolves ref, takes the issue's guard token, and re-reads the
// issue so every check after it sees state no concurrent start or submit
// can change underneath.
func (s *Service) acquire(ctx context.Context, ref string) (*domain.Issue, func(), error) {
	issue, err := s.resolver.ResolveIssue(ctx, ref)
	if err != nil {
		return nil, nil, err
	}

	release, err := s.guard.Acquire(issue.Key)
	if err != nil {
		return nil, nil, err
	}

	fresh, err := s.tracker.GetIssue(ctx, issue.ID)
	if err != nil {
		release()
		return nil, nil, err
	}
	return fresh, release, nil
}
