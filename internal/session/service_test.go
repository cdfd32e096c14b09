package session

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/berth/internal/clock"
	"github.com/mrz1836/berth/internal/constants"
	"github.com/mrz1836/berth/internal/domain"
	berrors "github.com/mrz1836/berth/internal/errors"
	"github.com/mrz1836/berth/internal/git"
	"github.com/mrz1836/berth/internal/guard"
	"github.com/mrz1836/berth/internal/testutil"
)

//nolint:gochecknoglobals // fixed test epoch
var epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc        *Service
	tracker    *memTracker
	workspaces *fakeWorkspaces
	clock      *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		tracker:    newMemTracker(),
		workspaces: newFakeWorkspaces(),
		clock:      clock.NewManual(epoch),
	}
	f.svc = NewService(f.tracker, f.workspaces, guard.New(), zerolog.Nop(), WithClock(f.clock))
	return f
}

func (f *fixture) start(ref string) (*StartResult, error) {
	return f.svc.StartWork(context.Background(), StartRequest{IssueRef: ref, Operator: "op1", BasePath: "/repo"})
}

func TestStartWork_DemoScenario(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "Fix login timeout", constants.IssueStatusReady)

	res, err := f.start("DEMO-1")
	require.NoError(t, err)
	require.NoError(t, res.WorkspaceWarning)

	assert.Equal(t, constants.IssueStatusInProgress, res.Issue.Status)
	assert.Equal(t, constants.IssueStatusInProgress, f.tracker.status(issue.ID))

	require.NotNil(t, res.Workspace)
	assert.Equal(t, "/repo-workspaces/DEMO-1", res.Workspace.Path)
	assert.Equal(t, "DEMO-1/fix-login-timeout", res.Workspace.Branch)
	assert.True(t, f.workspaces.has("/repo-workspaces/DEMO-1"))

	sessions := f.tracker.sessionsFor(issue.ID)
	require.Len(t, sessions, 1)
	assert.Equal(t, "op1", sessions[0].Operator)
	assert.Equal(t, epoch, sessions[0].StartedAt)
	assert.Nil(t, sessions[0].EndedAt)
	assert.Equal(t, "/repo-workspaces/DEMO-1", sessions[0].WorkspacePath)
	assert.Equal(t, "DEMO-1/fix-login-timeout", sessions[0].Branch)
}

func TestStartWork_ByCanonicalID(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)

	res, err := f.start(issue.ID)
	require.NoError(t, err)
	assert.Equal(t, "DEMO-1", res.Session.IssueKey)
}

func TestStartWork_NotReady(t *testing.T) {
	for _, status := range []constants.IssueStatus{
		constants.IssueStatusInProgress, constants.IssueStatusReview, constants.IssueStatusDone,
	} {
		t.Run(string(status), func(t *testing.T) {
			f := newFixture(t)
			issue := f.tracker.addIssue("DEMO-1", "x", status)

			_, err := f.start("DEMO-1")
			require.ErrorIs(t, err, berrors.ErrInvalidTransition)
			assert.Contains(t, err.Error(), "start DEMO-1")

			assert.Empty(t, f.tracker.sessionsFor(issue.ID))
			assert.Zero(t, f.workspaces.creates)
			assert.Equal(t, status, f.tracker.status(issue.ID))
		})
	}
}

func TestStartWork_VersionControlUnreachable(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	f.workspaces.createErr = &git.CommandError{Args: []string{"worktree", "list"}, Err: exec.ErrNotFound}

	res, err := f.start("DEMO-1")
	require.NoError(t, err)

	require.ErrorIs(t, res.WorkspaceWarning, berrors.ErrVersionControl)
	assert.Contains(t, res.WorkspaceWarning.Error(), "start DEMO-1")
	assert.Nil(t, res.Workspace)
	assert.Equal(t, constants.IssueStatusInProgress, res.Issue.Status)

	sessions := f.tracker.sessionsFor(issue.ID)
	require.Len(t, sessions, 1)
	assert.Empty(t, sessions[0].WorkspacePath)
	assert.Empty(t, sessions[0].Branch)
}

func TestStartWork_WorkspaceExistsIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	f.workspaces.createErr = berrors.ErrWorkspaceExists

	res, err := f.start("DEMO-1")
	require.NoError(t, err)
	require.ErrorIs(t, res.WorkspaceWarning, berrors.ErrWorkspaceExists)
	assert.Equal(t, constants.IssueStatusInProgress, res.Issue.Status)
}

func TestStartWork_References(t *testing.T) {
	f := newFixture(t)

	_, err := f.start("DEMO-99")
	require.ErrorIs(t, err, berrors.ErrIssueNotFound)
	assert.Contains(t, err.Error(), "start DEMO-99")

	_, err = f.start("what?")
	require.ErrorIs(t, err, berrors.ErrInvalidReference)

	_, err = f.svc.StartWork(context.Background(), StartRequest{IssueRef: "DEMO-1", BasePath: "/repo"})
	require.ErrorIs(t, err, berrors.ErrEmptyValue)

	_, err = f.svc.StartWork(context.Background(), StartRequest{IssueRef: "DEMO-1", Operator: "op1"})
	require.ErrorIs(t, err, berrors.ErrEmptyValue)
}

func TestStartWork_TrackerFailuresAreFatal(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	boom := testutil.ErrMockDatabaseLocked
	f.tracker.startSessionErr = boom

	_, err := f.start("DEMO-1")
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "start DEMO-1")

	// Nothing is left behind: no session, no status change, no workspace.
	assert.Equal(t, constants.IssueStatusReady, f.tracker.status(issue.ID))
	assert.Empty(t, f.tracker.sessionsFor(issue.ID))
	assert.Equal(t, 1, f.workspaces.creates)
	assert.Equal(t, 1, f.workspaces.removes)
	assert.False(t, f.workspaces.has("/repo-workspaces/DEMO-1"))

	// Once the tracker recovers the same start goes through.
	f.tracker.startSessionErr = nil
	res, err := f.start("DEMO-1")
	require.NoError(t, err)
	require.NoError(t, res.WorkspaceWarning)
	assert.Equal(t, constants.IssueStatusInProgress, f.tracker.status(issue.ID))
	assert.Equal(t, 1, f.tracker.activeCount(issue.ID))
	assert.True(t, f.workspaces.has(res.Workspace.Path))
}

func TestStartWork_TrackerFailureWithoutWorkspace(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	f.workspaces.createErr = &git.CommandError{Err: exec.ErrNotFound}
	boom := testutil.ErrMockDiskIO
	f.tracker.startSessionErr = boom

	_, err := f.start("DEMO-1")
	require.ErrorIs(t, err, boom)
	assert.Zero(t, f.workspaces.removes)
	assert.Equal(t, constants.IssueStatusReady, f.tracker.status(issue.ID))
}

func TestStartWork_InFlightFailsFast(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	f.tracker.addIssue("DEMO-2", "y", constants.IssueStatusReady)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var once sync.Once
	f.tracker.beforeStartSession = func() {
		once.Do(func() {
			close(entered)
			<-proceed
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.start("DEMO-1")
		done <- err
	}()
	<-entered

	_, err := f.start("DEMO-1")
	require.ErrorIs(t, err, berrors.ErrSessionInFlight)
	assert.True(t, berrors.IsRetryable(err))

	// Other keys are not blocked by the in-flight start.
	res, err := f.start("DEMO-2")
	require.NoError(t, err)
	assert.Equal(t, "DEMO-2", res.Session.IssueKey)

	close(proceed)
	require.NoError(t, <-done)
	assert.Equal(t, 2, f.workspaces.creates)
}

func TestStartWork_ConcurrentSameIssue(t *testing.T) {
	for round := range 20 {
		f := newFixture(t)
		issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)

		const callers = 8
		var (
			wg        sync.WaitGroup
			gate      = make(chan struct{})
			successes atomic.Int32
		)
		for range callers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				_, err := f.start("DEMO-1")
				if err == nil {
					successes.Add(1)
					return
				}
				assert.True(t,
					errors.Is(err, berrors.ErrSessionInFlight) || errors.Is(err, berrors.ErrInvalidTransition),
					"round %d: unexpected error %v", round, err)
			}()
		}
		close(gate)
		wg.Wait()

		assert.Equal(t, int32(1), successes.Load(), "round %d", round)
		assert.Equal(t, 1, f.tracker.activeCount(issue.ID), "round %d", round)
		assert.Equal(t, 1, f.workspaces.creates, "round %d", round)
	}
}

func TestSubmitWork_RemovesWorkspace(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	started, err := f.start("DEMO-1")
	require.NoError(t, err)

	f.clock.Advance(95 * time.Minute)
	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1", CommitRef: "commit-abc"})
	require.NoError(t, err)
	require.NoError(t, res.CleanupWarning)

	assert.Equal(t, constants.IssueStatusReview, res.Issue.Status)
	assert.Equal(t, 95*time.Minute, res.TimeSpent)
	require.NotNil(t, res.Cleanup)
	assert.True(t, res.Cleanup.Removed)
	assert.False(t, res.WorkspaceRetained)
	assert.False(t, f.workspaces.has(started.Workspace.Path))

	sessions := f.tracker.sessionsFor(issue.ID)
	require.Len(t, sessions, 1)
	require.NotNil(t, sessions[0].EndedAt)
	assert.Equal(t, epoch.Add(95*time.Minute), *sessions[0].EndedAt)
	assert.Equal(t, "commit-abc", sessions[0].CommitRef)
}

func TestSubmitWork_DirtyWorkspaceIsRetained(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	started, err := f.start("DEMO-1")
	require.NoError(t, err)
	f.workspaces.setDirty(started.Workspace.Path, 2)

	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1", CommitRef: "c1"})
	require.NoError(t, err)

	assert.Equal(t, constants.IssueStatusReview, res.Issue.Status)
	require.ErrorIs(t, res.CleanupWarning, berrors.ErrWorkspaceDirty)
	assert.Contains(t, res.CleanupWarning.Error(), "2 uncommitted")
	assert.True(t, res.Cleanup.Refused)
	assert.True(t, res.WorkspaceRetained)
	assert.True(t, f.workspaces.has(started.Workspace.Path))

	latest := f.tracker.sessionsFor(issue.ID)[0]
	assert.True(t, latest.WorkspaceRetained)

	// Cleanup without force is still refused.
	cleanup, err := f.svc.CleanupWorkspace(context.Background(), "DEMO-1", false)
	require.NoError(t, err)
	assert.True(t, cleanup.Refused)
	assert.True(t, f.workspaces.has(started.Workspace.Path))

	cleanup, err = f.svc.CleanupWorkspace(context.Background(), "DEMO-1", true)
	require.NoError(t, err)
	assert.True(t, cleanup.Removed)
	assert.False(t, f.workspaces.has(started.Workspace.Path))
	assert.False(t, f.tracker.sessionsFor(issue.ID)[0].WorkspaceRetained)
}

func TestSubmitWork_ForceCleanup(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	started, err := f.start("DEMO-1")
	require.NoError(t, err)
	f.workspaces.setDirty(started.Workspace.Path, 1)

	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1", ForceCleanup: true})
	require.NoError(t, err)
	require.NoError(t, res.CleanupWarning)
	assert.True(t, res.Cleanup.Removed)
	assert.Equal(t, 1, res.Cleanup.UncommittedCount)
}

func TestSubmitWork_VersionControlFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	_, err := f.start("DEMO-1")
	require.NoError(t, err)
	f.workspaces.removeErr = testutil.GitFailure("fatal: locked", "worktree", "remove")

	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1"})
	require.NoError(t, err)
	require.ErrorIs(t, res.CleanupWarning, berrors.ErrVersionControl)
	assert.Contains(t, res.CleanupWarning.Error(), "fatal: locked")
	assert.True(t, res.WorkspaceRetained)
	assert.Equal(t, constants.IssueStatusReview, f.tracker.status(issue.ID))
}

func TestSubmitWork_WithoutWorkspace(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	f.workspaces.createErr = &git.CommandError{Err: exec.ErrNotFound}
	_, err := f.start("DEMO-1")
	require.NoError(t, err)

	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1"})
	require.NoError(t, err)
	assert.Nil(t, res.Cleanup)
	require.NoError(t, res.CleanupWarning)
	assert.Equal(t, constants.IssueStatusReview, res.Issue.Status)
}

func TestSubmitWork_NoActiveSession(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)

	_, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1"})
	require.ErrorIs(t, err, berrors.ErrNoActiveSession)
	assert.Contains(t, err.Error(), "submit DEMO-1")
	assert.Equal(t, constants.IssueStatusReady, f.tracker.status(issue.ID))
}

func TestSubmitWork_TrackerFailureIsFatal(t *testing.T) {
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)
	started, err := f.start("DEMO-1")
	require.NoError(t, err)
	boom := testutil.ErrMockDatabaseLocked
	f.tracker.submitSessionErr = boom

	_, err = f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1", CommitRef: "commit-abc"})
	require.ErrorIs(t, err, boom)
	assert.True(t, f.workspaces.has(started.Workspace.Path), "teardown must not run before state is persisted")

	// The session stays open and the issue in progress, so submit can be retried.
	assert.Equal(t, constants.IssueStatusInProgress, f.tracker.status(issue.ID))
	assert.Equal(t, 1, f.tracker.activeCount(issue.ID))

	f.tracker.submitSessionErr = nil
	res, err := f.svc.SubmitWork(context.Background(), SubmitRequest{IssueRef: "DEMO-1", CommitRef: "commit-abc"})
	require.NoError(t, err)
	assert.Equal(t, constants.IssueStatusReview, res.Issue.Status)
	assert.Equal(t, "commit-abc", res.Session.CommitRef)
	assert.Zero(t, f.tracker.activeCount(issue.ID))
	assert.False(t, f.workspaces.has(started.Workspace.Path))
}

func TestSubmitThenRestart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	issue := f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)

	_, err := f.start("DEMO-1")
	require.NoError(t, err)
	_, err = f.svc.SubmitWork(ctx, SubmitRequest{IssueRef: "DEMO-1"})
	require.NoError(t, err)

	// Review is not ready.
	_, err = f.start("DEMO-1")
	require.ErrorIs(t, err, berrors.ErrInvalidTransition)

	// Rejected in review, back to ready.
	_, err = f.tracker.SetIssueStatus(ctx, issue.ID, constants.IssueStatusReady)
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	res, err := f.start("DEMO-1")
	require.NoError(t, err)
	assert.Equal(t, epoch.Add(time.Hour), res.Session.StartedAt)

	_, sessions, err := f.svc.Sessions(ctx, "DEMO-1")
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.NotNil(t, sessions[0].EndedAt)
	assert.Nil(t, sessions[1].EndedAt)
	assert.Equal(t, 1, f.tracker.activeCount(issue.ID))
}

func TestCleanupWorkspace_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "x", constants.IssueStatusReady)

	_, err := f.svc.CleanupWorkspace(ctx, "DEMO-1", false)
	require.ErrorIs(t, err, berrors.ErrSessionNotFound)

	_, err = f.start("DEMO-1")
	require.NoError(t, err)
	_, err = f.svc.CleanupWorkspace(ctx, "DEMO-1", false)
	require.ErrorIs(t, err, berrors.ErrSessionActive)

	_, err = f.svc.SubmitWork(ctx, SubmitRequest{IssueRef: "DEMO-1"})
	require.NoError(t, err)

	// Workspace already removed at submission.
	res, err := f.svc.CleanupWorkspace(ctx, "DEMO-1", false)
	require.NoError(t, err)
	assert.False(t, res.Removed)
	assert.False(t, res.Refused)
}

func TestListWorkspaces(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "alpha", constants.IssueStatusReady)
	f.tracker.addIssue("DEMO-2", "beta", constants.IssueStatusReady)
	_, err := f.start("DEMO-1")
	require.NoError(t, err)
	_, err = f.start("DEMO-2")
	require.NoError(t, err)
	f.workspaces.setDirty("/repo-workspaces/DEMO-2", 3)

	list, err := f.svc.ListWorkspaces(ctx, "/repo", false)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.True(t, list[0].Primary)
	assert.Nil(t, list[1].Status)

	list, err = f.svc.ListWorkspaces(ctx, "/repo", true)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Nil(t, list[0].Status, "primary checkout is not queried")
	require.NotNil(t, list[1].Status)
	assert.False(t, list[1].Status.HasChanges)
	require.NotNil(t, list[2].Status)
	assert.Equal(t, 3, list[2].Status.UncommittedCount)
}

func TestListWorkspaces_StatusFailureKeepsEntry(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "alpha", constants.IssueStatusReady)
	_, err := f.start("DEMO-1")
	require.NoError(t, err)
	f.workspaces.statusErr = &git.CommandError{Err: exec.ErrNotFound}

	list, err := f.svc.ListWorkspaces(context.Background(), "/repo", true)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[1].Status)
}

func TestGetWorkspaceStatus(t *testing.T) {
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "alpha", constants.IssueStatusReady)
	started, err := f.start("DEMO-1")
	require.NoError(t, err)

	st, err := f.svc.GetWorkspaceStatus(context.Background(), started.Workspace.Path)
	require.NoError(t, err)
	assert.Equal(t, "DEMO-1/alpha", st.Branch)

	_, err = f.svc.GetWorkspaceStatus(context.Background(), "/repo-workspaces/DEMO-404")
	require.ErrorIs(t, err, berrors.ErrWorkspaceNotFound)
}

func TestCheckEditAllowed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.tracker.addIssue("DEMO-1", "alpha", constants.IssueStatusReady)
	_, err := f.start("DEMO-1")
	require.NoError(t, err)

	d, err := f.svc.CheckEditAllowed(ctx, "/repo", "", "/repo/src/main.go")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Contains(t, d.Reason, "berth start")

	d, err = f.svc.CheckEditAllowed(ctx, "/repo", "", "/repo-workspaces/DEMO-1/src/main.go")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, "/repo-workspaces/DEMO-1", d.Workspace)

	d, err = f.svc.CheckEditAllowed(ctx, "/repo", "", "/repo2/x.go")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestWorkSession_TimeSpentActive(t *testing.T) {
	s := &domain.WorkSession{StartedAt: epoch}
	assert.Equal(t, time.Hour, s.TimeSpent(epoch.Add(time.Hour)))
}
