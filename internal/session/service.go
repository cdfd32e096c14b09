// Package session runs the per-issue work lifecycle: starting work creates
// a session and an isolated workspace, submitting ends the session and
// tears the workspace down.
//
// Recorded state always wins over the filesystem. Tracker failures abort
// the operation; git failures are reported as warnings next to an
// otherwise successful result.
//
// Import rules:
//   - CAN import: internal/constants, internal/domain, internal/errors, internal/resolver,
//     internal/guard, internal/boundary, internal/workspace, internal/clock, std lib
//   - MUST NOT import: internal/cli, internal/config
package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/mrz1836/berth/internal/clock"
	"github.com/mrz1836/berth/internal/domain"
	"github.com/mrz1836/berth/internal/guard"
	"github.com/mrz1836/berth/internal/resolver"
	"github.com/mrz1836/berth/internal/workspace"
)

// Operation names used in errors and logs.
const (
	OpStart    = "start"
	OpSubmit   = "submit"
	OpCleanup  = "cleanup"
	OpStatus   = "status"
	OpCheck    = "check-edit"
	OpSessions = "sessions"
)

// defaultStatusParallelism bounds concurrent git status calls in ListWorkspaces.
const defaultStatusParallelism = 4

// Tracker is the persistence the service drives.
type Tracker interface {
	resolver.Lookup
	StartSession(ctx context.Context, ws *domain.WorkSession) (*domain.Issue, error)
	SubmitSession(ctx context.Context, sessionID string, endedAt time.Time, commitRef string) (*domain.Issue, error)
	ActiveSession(ctx context.Context, issueID string) (*domain.WorkSession, error)
	LatestSession(ctx context.Context, issueID string) (*domain.WorkSession, error)
	SetWorkspaceRetained(ctx context.Context, sessionID string, retained bool) error
	ListSessions(ctx context.Context, issueID string) ([]*domain.WorkSession, error)
}

// WorkspaceManager is the workspace side of the lifecycle.
// *workspace.Manager satisfies it.
type WorkspaceManager interface {
	Create(ctx context.Context, issue *domain.Issue, basePath string) (*domain.Workspace, error)
	Status(ctx context.Context, path string) (*domain.WorkspaceStatus, error)
	List(ctx context.Context, basePath string) ([]*domain.Workspace, error)
	Remove(ctx context.Context, path string, force bool) (*workspace.RemoveResult, error)
}

// Service exposes the lifecycle operations.
type Service struct {
	tracker           Tracker
	resolver          *resolver.Resolver
	workspaces        WorkspaceManager
	guard             *guard.Guard
	clock             clock.Clock
	logger            zerolog.Logger
	statusParallelism int
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the time source for session timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithStatusParallelism bounds concurrent status queries in ListWorkspaces.
func WithStatusParallelism(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.statusParallelism = n
		}
	}
}

// NewService creates a Service. A nil guard gets a fresh in-process guard.
func NewService(tracker Tracker, workspaces WorkspaceManager, g *guard.Guard, logger zerolog.Logger, opts ...Option) *Service {
	if g == nil {
		g = guard.New(guard.WithLogger(logger))
	}
	s := &Service{
		tracker:           tracker,
		resolver:          resolver.New(tracker),
		workspaces:        workspaces,
		guard:             g,
		clock:             clock.RealClock{},
		logger:            logger,
		statusParallelism: defaultStatusParallelism,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
