package workspace

import (
	"context"
	"os"
	"sync"

	"github.com/mrz1836/berth/internal/git"
)

// mockRunner is a scriptable WorktreeRunner. Add creates the directory on
// disk so the Manager's existence checks behave as with real git.
type mockRunner struct {
	mu sync.Mutex

	worktrees  []*WorktreeInfo
	branches   map[string]bool
	status     *git.Status
	mainRoot   string
	listErr    error
	addErr     error
	removeErr  error
	statusErr  error
	mainErr    error
	pruneErr   error
	addCalls   []addCall
	removeCall []removeCall
	pruned     int
}

type addCall struct {
	repo, path, branch string
	createBranch       bool
}

type removeCall struct {
	repo, path string
	force      bool
}

func newMockRunner(mainRoot string) *mockRunner {
	return &mockRunner{
		branches:  map[string]bool{},
		status:    &git.Status{},
		mainRoot:  mainRoot,
		worktrees: []*WorktreeInfo{{Path: mainRoot, Branch: "main"}},
	}
}

func (m *mockRunner) Add(_ context.Context, repo, path, branch string, createBranch bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addCalls = append(m.addCalls, addCall{repo, path, branch, createBranch})
	if m.addErr != nil {
		return m.addErr
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return err
	}
	m.worktrees = append(m.worktrees, &WorktreeInfo{Path: path, Branch: branch})
	m.branches[branch] = true
	return nil
}

func (m *mockRunner) List(_ context.Context, _ string) ([]*WorktreeInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]*WorktreeInfo, len(m.worktrees))
	copy(out, m.worktrees)
	return out, nil
}

func (m *mockRunner) Remove(_ context.Context, repo, path string, force bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeCall = append(m.removeCall, removeCall{repo, path, force})
	if m.removeErr != nil {
		return m.removeErr
	}
	return os.RemoveAll(path)
}

func (m *mockRunner) Status(_ context.Context, _ string) (*git.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return nil, m.statusErr
	}
	return m.status, nil
}

func (m *mockRunner) BranchExists(_ context.Context, _, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.branches[name], nil
}

func (m *mockRunner) Prune(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	return m.pruneErr
}

func (m *mockRunner) MainRoot(_ context.Context, _ string) (string, error) {
	if m.mainErr != nil {
		return "", m.mainErr
	}
	return m.mainRoot, nil
}
