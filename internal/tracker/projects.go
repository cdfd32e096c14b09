package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
)

var prefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)

// NormalizePrefix upper-cases prefix and validates it.
func NormalizePrefix(prefix string) (string, error) {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	if p == "" {
		return "", fmt.Errorf("project prefix: %w", berrors.ErrEmptyValue)
	}
	if !prefixPattern.MatchString(p) {
		return "", fmt.Errorf("project prefix %q must be a letter followed by letters or digits: %w", prefix, berrors.ErrConfigInvalid)
	}
	return p, nil
}

// CreateProject registers a project. Its issues will be keyed PREFIX-1, PREFIX-2, ...
func (s *SQLiteStore) CreateProject(ctx context.Context, name, prefix string) (*domain.Project, error) {
	p, err := NormalizePrefix(prefix)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = p
	}

	project := &domain.Project{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Prefix:    p,
		NextSeq:   1,
		CreatedAt: s.clock.Now(),
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, prefix, next_seq, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, project.ID, project.Name, project.Prefix, project.NextSeq, toUnix(project.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("prefix %s: %w", p, berrors.ErrDuplicatePrefix)
		}
		return nil, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// GetProject returns the project with the given prefix.
func (s *SQLiteStore) GetProject(ctx context.Context, prefix string) (*domain.Project, error) {
	p := strings.ToUpper(strings.TrimSpace(prefix))
	project, err := scanProject(s.db.QueryRowContext(ctx, `
		SELECT id, name, prefix, next_seq, created_at FROM projects WHERE prefix = ?
	`, p))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", p, berrors.ErrProjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns all projects ordered by prefix.
func (s *SQLiteStore) ListProjects(ctx context.Context) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, prefix, next_seq, created_at FROM projects ORDER BY prefix
	`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	projects := []*domain.Project{}
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*domain.Project, error) {
	var (
		p       domain.Project
		created int64
	)
	if err := row.Scan(&p.ID, &p.Name, &p.Prefix, &p.NextSeq, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	return &p, nil
}
