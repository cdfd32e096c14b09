package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/workspace"
)

// SubmitRequest asks to hand an issue's work in for review.
type SubmitRequest struct {
	// IssueRef is an issue key or canonical id.
	IssueRef string
	// CommitRef identifies the submitted work.
	CommitRef string
	// ForceCleanup removes the workspace even with uncommitted changes.
	ForceCleanup bool
}

// SubmitResult reports a submission. The submission itself succeeded even
// when CleanupWarning is set; the warning only concerns the workspace.
type SubmitResult struct {
	Issue     *domain.Issue
	Session   *domain.WorkSession
	TimeSpent time.Duration

	// Cleanup is nil when the session had no workspace.
	Cleanup *workspace.RemoveResult
	// WorkspaceRetained is true when the workspace still exists after submission.
	WorkspaceRetained bool
	CleanupWarning    error
}

// SubmitWork ends the active session and moves the issue to review in one
// tracker write, then tries to remove the workspace. State is persisted
// before teardown starts.
func (s *Service) SubmitWork(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	ref := strings.TrimSpace(req.IssueRef)
	if ref == "" {
		return nil, berrors.NewOpError(OpSubmit, "", fmt.Errorf("issue reference: %w", berrors.ErrEmptyValue))
	}

	issue, release, err := s.acquire(ctx, ref)
	if err != nil {
		return nil, berrors.NewOpError(OpSubmit, ref, err)
	}
	defer release()

	log := s.logger.With().Str("op", OpSubmit).Str("issue_key", issue.Key).Logger()

	sess, err := s.tracker.ActiveSession(ctx, issue.ID)
	if err != nil {
		return nil, berrors.NewOpError(OpSubmit, issue.Key, err)
	}

	now := s.clock.Now()
	updated, err := s.tracker.SubmitSession(ctx, sess.ID, now, req.CommitRef)
	if err != nil {
		return nil, berrors.NewOpError(OpSubmit, issue.Key, err)
	}
	sess.EndedAt = &now
	sess.CommitRef = req.CommitRef

	result := &SubmitResult{
		Issue:     updated,
		Session:   sess,
		TimeSpent: sess.TimeSpent(now),
	}

	if sess.HasWorkspace() {
		s.teardown(ctx, sess, req.ForceCleanup, result)
	}

	log.Info().
		Str("session_id", sess.ID).
		Str("commit_ref", sess.CommitRef).
		Dur("time_spent", result.TimeSpent).
		Bool("workspace_retained", result.WorkspaceRetained).
		Msg("work submitted")
	return result, nil
}

// teardown removes the session's workspace and records the outcome on
// result. It never fails the submission.
func (s *Service) teardown(ctx context.Context, sess *domain.WorkSession, force bool, result *SubmitResult) {
	log := s.logger.With().Str("op", OpSubmit).Str("issue_key", sess.IssueKey).Str("worktree_path", sess.WorkspacePath).Logger()

	removal, err := s.workspaces.Remove(ctx, sess.WorkspacePath, force)
	switch {
	case errors.Is(err, berrors.ErrWorkspaceNotFound):
		// Already gone; nothing to retain.
		log.Debug().Msg("workspace already removed")
		return
	case err != nil:
		result.CleanupWarning = berrors.NewOpError(OpSubmit, sess.IssueKey, err)
		log.Warn().Err(err).Msg("workspace teardown failed")
	case removal.Refused:
		result.Cleanup = removal
		result.CleanupWarning = berrors.NewOpError(OpSubmit, sess.IssueKey,
			fmt.Errorf("%s has %d uncommitted path(s): %w", sess.WorkspacePath, removal.UncommittedCount, berrors.ErrWorkspaceDirty))
		log.Warn().Int("uncommitted_count", removal.UncommittedCount).Msg("workspace kept, uncommitted changes")
	default:
		result.Cleanup = removal
		return
	}

	result.WorkspaceRetained = true
	sess.WorkspaceRetained = true
	if err := s.tracker.SetWorkspaceRetained(ctx, sess.ID, true); err != nil {
		log.Error().Err(err).Msg("failed to record retained workspace")
		result.CleanupWarning = errors.Join(result.CleanupWarning, err)
	}
}
