package domain

import "time"

// WorkSession records one operator's attempt at an issue, bounded by start
// and submit. Sessions are never deleted; ending one only sets EndedAt.
//
// Example JSON representation:
//
//	{
//	    "id": "0d9c3f7a-2b8e-4c61-a1f4-6e5d7c8b9a01",
//	    "issue_id": "7c1e...",
//	    "issue_key": "DEMO-1",
//	    "operator": "op1",
//	    "started_at": "2026-03-01T09:00:00Z",
//	    "ended_at": "2026-03-01T10:30:00Z",
//	    "workspace_path": "/repo-workspaces/DEMO-1",
//	    "branch": "DEMO-1/fix-login-timeout",
//	    "commit_ref": "commit-abc",
//	    "workspace_retained": false
//	}
type WorkSession struct {
	ID       string `json:"id"`
	IssueID  string `json:"issue_id"`
	IssueKey string `json:"issue_key"`
	Operator string `json:"operator"`

	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// WorkspacePath and Branch are empty when workspace creation failed.
	WorkspacePath string `json:"workspace_path,omitempty"`
	Branch        string `json:"branch,omitempty"`

	// CommitRef is recorded at submission.
	CommitRef string `json:"commit_ref,omitempty"`

	// WorkspaceRetained is set when teardown was refused at submission because
	// the workspace had uncommitted changes. The workspace outlives the session
	// until an operator cleans it up.
	WorkspaceRetained bool `json:"workspace_retained,omitempty"`
}

// Active reports whether the session has not been ended.
func (s *WorkSession) Active() bool {
	return s.EndedAt == nil
}

// HasWorkspace reports whether a workspace was recorded for the session.
func (s *WorkSession) HasWorkspace() bool {
	return s.WorkspacePath != ""
}

// TimeSpent returns EndedAt minus StartedAt. For an active session the
// duration up to now is returned.
func (s *WorkSession) TimeSpent(now time.Time) time.Duration {
	end := now
	if s.EndedAt != nil {
		end = *s.EndedAt
	}
	if end.Before(s.StartedAt) {
		return 0
	}
	return end.Sub(s.StartedAt)
}
