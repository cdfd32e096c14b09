package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

const sessionSelect = `SELECT s.id, s.issue_id, i.key, s.operator, s.started_at, s.ended_at,
	s.workspace_path, s.branch, s.commit_ref, s.workspace_retained
	FROM work_sessions s JOIN issues i ON i.id = s.issue_id`

// StartSession stores a new active session and moves its issue from ready
// to in_progress in one transaction, so either both happen or neither does.
// An ID is assigned when empty. A second active session for the same issue
// fails with ErrSessionActive.
func (s *SQLiteStore) StartSession(ctx context.Context, ws *domain.WorkSession) (*domain.Issue, error) {
	if ws.IssueID == "" {
		return nil, fmt.Errorf("session issue id: %w", berrors.ErrEmptyValue)
	}
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	if ws.StartedAt.IsZero() {
		ws.StartedAt = s.clock.Now()
	}

	var issue *domain.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM issues WHERE id = ?`, ws.IssueID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", ws.IssueID, berrors.ErrIssueNotFound)
		}
		if err != nil {
			return fmt.Errorf("get issue: %w", err)
		}
		if constants.IssueStatus(status) != constants.IssueStatusReady {
			return fmt.Errorf("issue is %s, not ready: %w", status, berrors.ErrInvalidTransition)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO work_sessions (id, issue_id, operator, started_at, workspace_path, branch)
			VALUES (?, ?, ?, ?, ?, ?)
		`, ws.ID, ws.IssueID, ws.Operator, toUnix(ws.StartedAt), ws.WorkspacePath, ws.Branch); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("issue %s: %w", ws.IssueID, berrors.ErrSessionActive)
			}
			return fmt.Errorf("create work session: %w", err)
		}

		issue, err = s.transitionTx(ctx, tx, ws.IssueID, constants.IssueStatusInProgress)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// SubmitSession closes an active session and moves its issue to review in
// one transaction. Ending a session that is not active fails with
// ErrSessionNotFound and changes nothing.
func (s *SQLiteStore) SubmitSession(ctx context.Context, sessionID string, endedAt time.Time, commitRef string) (*domain.Issue, error) {
	var issue *domain.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var issueID string
		err := tx.QueryRowContext(ctx,
			`SELECT issue_id FROM work_sessions WHERE id = ? AND ended_at IS NULL`, sessionID).Scan(&issueID)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", sessionID, berrors.ErrSessionNotFound)
		}
		if err != nil {
			return fmt.Errorf("get work session: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE work_sessions SET ended_at = ?, commit_ref = ? WHERE id = ?`,
			toUnix(endedAt), commitRef, sessionID); err != nil {
			return fmt.Errorf("end work session: %w", err)
		}

		issue, err = s.transitionTx(ctx, tx, issueID, constants.IssueStatusReview)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// SetWorkspaceRetained flags whether a session's workspace outlived it.
func (s *SQLiteStore) SetWorkspaceRetained(ctx context.Context, sessionID string, retained bool) error {
	return s.execOne(ctx, sessionID,
		`UPDATE work_sessions SET workspace_retained = ? WHERE id = ?`,
		retained, sessionID)
}

// ActiveSession returns the open session of an issue, or ErrNoActiveSession.
func (s *SQLiteStore) ActiveSession(ctx context.Context, issueID string) (*domain.WorkSession, error) {
	ws, err := scanSession(s.db.QueryRowContext(ctx,
		sessionSelect+` WHERE s.issue_id = ? AND s.ended_at IS NULL`, issueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, berrors.ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("get active session: %w", err)
	}
	return ws, nil
}

// LatestSession returns the most recently started session of an issue.
func (s *SQLiteStore) LatestSession(ctx context.Context, issueID string) (*domain.WorkSession, error) {
	ws, err := scanSession(s.db.QueryRowContext(ctx,
		sessionSelect+` WHERE s.issue_id = ? ORDER BY s.started_at DESC, s.rowid DESC LIMIT 1`, issueID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", issueID, berrors.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get latest session: %w", err)
	}
	return ws, nil
}

// ListSessions returns every session of an issue, oldest first.
func (s *SQLiteStore) ListSessions(ctx context.Context, issueID string) ([]*domain.WorkSession, error) {
	rows, err := s.db.QueryContext(ctx,
		sessionSelect+` WHERE s.issue_id = ? ORDER BY s.started_at, s.rowid`, issueID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	sessions := []*domain.WorkSession{}
	for rows.Next() {
		ws, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, ws)
	}
	return sessions, rows.Err()
}

// execOne runs an update that must touch exactly one session row.
func (s *SQLiteStore) execOne(ctx context.Context, sessionID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update work session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update work session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", sessionID, berrors.ErrSessionNotFound)
	}
	return nil
}

func scanSession(row rowScanner) (*domain.WorkSession, error) {
	var (
		ws       domain.WorkSession
		started  int64
		ended    sql.NullInt64
		retained bool
	)
	if err := row.Scan(&ws.ID, &ws.IssueID, &ws.IssueKey, &ws.Operator, &started, &ended,
		&ws.WorkspacePath, &ws.Branch, &ws.CommitRef, &retained); err != nil {
		return nil, err
	}
	ws.StartedAt = fromUnix(started)
	if ended.Valid {
		t := fromUnix(ended.Int64)
		ws.EndedAt = &t
	}
	ws.WorkspaceRetained = retained
	return &ws, nil
}
