package session

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/git"
	"github.com/mrz1836/berth/internal/tracker"
	"github.com/mrz1836/berth/internal/workspace"
)

// memTracker is an in-memory Tracker with the same contract as the SQLite store.
type memTracker struct {
	mu       sync.Mutex
	issues   map[string]*domain.Issue
	byKey    map[string]string
	sessions []*domain.WorkSession

	// beforeStartSession runs outside the lock, letting tests hold an
	// operation in flight.
	beforeStartSession func()

	startSessionErr  error
	submitSessionErr error
}

func newMemTracker() *memTracker {
	return &memTracker{
		issues: map[string]*domain.Issue{},
		byKey:  map[string]string{},
	}
}

func (m *memTracker) addIssue(key, title string, status constants.IssueStatus) *domain.Issue {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue := &domain.Issue{ID: uuid.NewString(), Key: key, Title: title, Status: status}
	m.issues[issue.ID] = issue
	m.byKey[key] = issue.ID
	return issue
}

func (m *memTracker) status(id string) constants.IssueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.issues[id].Status
}

func (m *memTracker) activeCount(issueID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.IssueID == issueID && s.EndedAt == nil {
			n++
		}
	}
	return n
}

func (m *memTracker) sessionsFor(issueID string) []*domain.WorkSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.WorkSession
	for _, s := range m.sessions {
		if s.IssueID == issueID {
			c := *s
			out = append(out, &c)
		}
	}
	return out
}

func (m *memTracker) GetIssue(_ context.Context, id string) (*domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, berrors.ErrIssueNotFound)
	}
	c := *issue
	return &c, nil
}

func (m *memTracker) ResolveKey(ctx context.Context, prefix string, number int) (*domain.Issue, error) {
	m.mu.Lock()
	id, ok := m.byKey[fmt.Sprintf("%s-%d", prefix, number)]
	m.mu.Unlock()
	if !ok {
		return nil, berrors.ErrIssueNotFound
	}
	return m.GetIssue(ctx, id)
}

func (m *memTracker) SetIssueStatus(_ context.Context, id string, to constants.IssueStatus) (*domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	issue, ok := m.issues[id]
	if !ok {
		return nil, berrors.ErrIssueNotFound
	}
	if issue.Status != to && !tracker.CanTransition(issue.Status, to) {
		return nil, berrors.ErrInvalidTransition
	}
	issue.Status = to
	c := *issue
	return &c, nil
}

// StartSession is atomic: on any error neither the session nor the status
// change is stored.
func (m *memTracker) StartSession(_ context.Context, ws *domain.WorkSession) (*domain.Issue, error) {
	if m.beforeStartSession != nil {
		m.beforeStartSession()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.startSessionErr != nil {
		return nil, m.startSessionErr
	}
	issue, ok := m.issues[ws.IssueID]
	if !ok {
		return nil, berrors.ErrIssueNotFound
	}
	if issue.Status != constants.IssueStatusReady {
		return nil, berrors.ErrInvalidTransition
	}
	for _, s := range m.sessions {
		if s.IssueID == ws.IssueID && s.EndedAt == nil {
			return nil, berrors.ErrSessionActive
		}
	}
	if ws.ID == "" {
		ws.ID = uuid.NewString()
	}
	c := *ws
	m.sessions = append(m.sessions, &c)
	issue.Status = constants.IssueStatusInProgress
	out := *issue
	return &out, nil
}

func (m *memTracker) find(id string) *domain.WorkSession {
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memTracker) SubmitSession(_ context.Context, sessionID string, endedAt time.Time, commitRef string) (*domain.Issue, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitSessionErr != nil {
		return nil, m.submitSessionErr
	}
	s := m.find(sessionID)
	if s == nil || s.EndedAt != nil {
		return nil, berrors.ErrSessionNotFound
	}
	issue := m.issues[s.IssueID]
	if !tracker.CanTransition(issue.Status, constants.IssueStatusReview) {
		return nil, berrors.ErrInvalidTransition
	}
	s.EndedAt = &endedAt
	s.CommitRef = commitRef
	issue.Status = constants.IssueStatusReview
	out := *issue
	return &out, nil
}

func (m *memTracker) ActiveSession(_ context.Context, issueID string) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.IssueID == issueID && s.EndedAt == nil {
			c := *s
			return &c, nil
		}
	}
	return nil, berrors.ErrNoActiveSession
}

func (m *memTracker) LatestSession(_ context.Context, issueID string) (*domain.WorkSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		if m.sessions[i].IssueID == issueID {
			c := *m.sessions[i]
			return &c, nil
		}
	}
	return nil, berrors.ErrSessionNotFound
}

func (m *memTracker) SetWorkspaceRetained(_ context.Context, sessionID string, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.find(sessionID)
	if s == nil {
		return berrors.ErrSessionNotFound
	}
	s.WorkspaceRetained = retained
	return nil
}

func (m *memTracker) ListSessions(_ context.Context, issueID string) ([]*domain.WorkSession, error) {
	return m.sessionsFor(issueID), nil
}

// fakeWorkspaces mirrors workspace.Manager's contract without git.
type fakeWorkspaces struct {
	mu       sync.Mutex
	base     string
	live     map[string]*domain.Workspace
	dirty    map[string]int
	creates  int
	removes  int
	createErr error
	removeErr error
	statusErr error
}

func newFakeWorkspaces() *fakeWorkspaces {
	return &fakeWorkspaces{
		live:  map[string]*domain.Workspace{},
		dirty: map[string]int{},
	}
}

func (f *fakeWorkspaces) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.live[path]
	return ok
}

func (f *fakeWorkspaces) setDirty(path string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirty[path] = n
}

func (f *fakeWorkspaces) Create(_ context.Context, issue *domain.Issue, basePath string) (*domain.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.base = basePath
	if f.createErr != nil {
		return nil, f.createErr
	}
	path := filepath.Join(basePath+constants.WorkspaceRootSuffix, issue.Key)
	if _, ok := f.live[path]; ok {
		return nil, berrors.ErrWorkspaceExists
	}
	f.creates++
	ws := &domain.Workspace{
		Path:     path,
		Branch:   git.BranchName(issue.Key, issue.Title, constants.DefaultBranchSlugMax),
		IssueKey: issue.Key,
	}
	f.live[path] = ws
	return ws, nil
}

func (f *fakeWorkspaces) Status(_ context.Context, path string) (*domain.WorkspaceStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	ws, ok := f.live[path]
	if !ok {
		return nil, berrors.ErrWorkspaceNotFound
	}
	n := f.dirty[path]
	return &domain.WorkspaceStatus{Path: path, Branch: ws.Branch, HasChanges: n > 0, UncommittedCount: n}, nil
}

func (f *fakeWorkspaces) List(_ context.Context, basePath string) ([]*domain.Workspace, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Workspace{{Path: basePath, Branch: "main", Primary: true}}
	paths := make([]string, 0, len(f.live))
	for p := range f.live {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		c := *f.live[p]
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeWorkspaces) Remove(_ context.Context, path string, force bool) (*workspace.RemoveResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.live[path]; !ok {
		return nil, berrors.ErrWorkspaceNotFound
	}
	if f.removeErr != nil {
		return nil, f.removeErr
	}
	n := f.dirty[path]
	if n > 0 && !force {
		return &workspace.RemoveResult{Refused: true, UncommittedCount: n}, nil
	}
	f.removes++
	delete(f.live, path)
	delete(f.dirty, path)
	return &workspace.RemoveResult{Removed: true, UncommittedCount: n}, nil
}
