package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

const issueColumns = `id, project_id, key, title, status, created_at, updated_at`

// IssueFilter narrows ListIssues. Zero fields match everything.
type IssueFilter struct {
	Prefix string
	Status constants.IssueStatus
}

// CreateIssue mints the next key of the project and stores a ready issue.
// Sequence numbers only grow, so a key is never handed out twice.
func (s *SQLiteStore) CreateIssue(ctx context.Context, prefix, title string) (*domain.Issue, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("issue title: %w", berrors.ErrEmptyValue)
	}

	var issue *domain.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		project, err := scanProject(tx.QueryRowContext(ctx, `
			SELECT id, name, prefix, next_seq, created_at FROM projects WHERE prefix = ?
		`, strings.ToUpper(strings.TrimSpace(prefix))))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%s: %w", prefix, berrors.ErrProjectNotFound)
		}
		if err != nil {
			return fmt.Errorf("get project: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE projects SET next_seq = next_seq + 1 WHERE id = ?`, project.ID); err != nil {
			return fmt.Errorf("advance sequence: %w", err)
		}

		now := s.clock.Now()
		issue = &domain.Issue{
			ID:        uuid.NewString(),
			Key:       project.Prefix + "-" + strconv.Itoa(project.NextSeq),
			ProjectID: project.ID,
			Title:     title,
			Status:    constants.IssueStatusReady,
			CreatedAt: now,
			UpdatedAt: now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO issues (id, project_id, seq, key, title, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, issue.ID, issue.ProjectID, project.NextSeq, issue.Key, issue.Title, string(issue.Status),
			toUnix(now), toUnix(now))
		if err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// GetIssue returns the issue with canonical id.
func (s *SQLiteStore) GetIssue(ctx context.Context, id string) (*domain.Issue, error) {
	return s.queryIssue(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id)
}

// ResolveKey returns the issue keyed PREFIX-number.
func (s *SQLiteStore) ResolveKey(ctx context.Context, prefix string, number int) (*domain.Issue, error) {
	key := strings.ToUpper(prefix) + "-" + strconv.Itoa(number)
	return s.queryIssue(ctx, `SELECT `+issueColumns+` FROM issues WHERE key = ?`, key)
}

func (s *SQLiteStore) queryIssue(ctx context.Context, query string, arg any) (*domain.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%v: %w", arg, berrors.ErrIssueNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return issue, nil
}

// ListIssues returns issues ordered by key sequence.
func (s *SQLiteStore) ListIssues(ctx context.Context, filter IssueFilter) ([]*domain.Issue, error) {
	query := `SELECT i.id, i.project_id, i.key, i.title, i.status, i.created_at, i.updated_at
		FROM issues i JOIN projects p ON p.id = i.project_id WHERE 1 = 1`
	var args []any
	if filter.Prefix != "" {
		query += ` AND p.prefix = ?`
		args = append(args, strings.ToUpper(filter.Prefix))
	}
	if filter.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY p.prefix, i.seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	issues := []*domain.Issue{}
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// SetIssueStatus moves an issue along the workflow. Transitions not in
// ValidTransitions fail with ErrInvalidTransition; setting the current
// status again is a no-op.
func (s *SQLiteStore) SetIssueStatus(ctx context.Context, id string, to constants.IssueStatus) (*domain.Issue, error) {
	if !to.IsValid() {
		return nil, fmt.Errorf("status %q: %w", to, berrors.ErrInvalidTransition)
	}

	var issue *domain.Issue
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		issue, err = s.transitionTx(ctx, tx, id, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return issue, nil
}

// transitionTx applies a workflow move inside tx.
func (s *SQLiteStore) transitionTx(ctx context.Context, tx *sql.Tx, id string, to constants.IssueStatus) (*domain.Issue, error) {
	current, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, berrors.ErrIssueNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}

	if current.Status == to {
		return current, nil
	}
	if !CanTransition(current.Status, to) {
		return nil, fmt.Errorf("%s cannot move from %s to %s: %w", current.Key, current.Status, to, berrors.ErrInvalidTransition)
	}

	now := s.clock.Now()
	if _, err := tx.ExecContext(ctx, `UPDATE issues SET status = ?, updated_at = ? WHERE id = ?`,
		string(to), toUnix(now), id); err != nil {
		return nil, fmt.Errorf("update issue status: %w", err)
	}
	current.Status = to
	current.UpdatedAt = now
	return current, nil
}

// DeleteIssue removes an issue that was never worked on. Issues with an
// active session fail with ErrSessionActive and issues with ended sessions
// fail with ErrSessionHistory, so session history is never lost. The key is
// not reused.
func (s *SQLiteStore) DeleteIssue(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var total, active int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(SUM(ended_at IS NULL), 0) FROM work_sessions WHERE issue_id = ?`, id).Scan(&total, &active); err != nil {
			return fmt.Errorf("count sessions: %w", err)
		}
		if active > 0 {
			return fmt.Errorf("%s: %w", id, berrors.ErrSessionActive)
		}
		if total > 0 {
			return fmt.Errorf("%s has %d session(s): %w", id, total, berrors.ErrSessionHistory)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete issue: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%s: %w", id, berrors.ErrIssueNotFound)
		}
		return nil
	})
}

func scanIssue(row rowScanner) (*domain.Issue, error) {
	var (
		i                domain.Issue
		status           string
		created, updated int64
	)
	if err := row.Scan(&i.ID, &i.ProjectID, &i.Key, &i.Title, &status, &created, &updated); err != nil {
		return nil, err
	}
	i.Status = constants.IssueStatus(status)
	i.CreatedAt = fromUnix(created)
	i.UpdatedAt = fromUnix(updated)
	return &i, nil
}
