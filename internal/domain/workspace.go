package domain

// Workspace is an isolated git worktree plus its branch. Workspaces are not
// persisted; they are read live from the version-control executable.
//
// Example JSON representation:
//
//	{
//	    "path": "/src/repo-workspaces/DEMO-1",
//	    "branch": "DEMO-1/fix-login-timeout",
//	    "head": "3f2a9c1...",
//	    "issue_key": "DEMO-1",
//	    "primary": false
//	}
type Workspace struct {
	// Path is the absolute path of the checkout.
	Path string `json:"path"`

	// Branch is the checked-out branch, empty on a detached HEAD.
	Branch string `json:"branch,omitempty"`

	// Head is the HEAD commit SHA.
	Head string `json:"head,omitempty"`

	// IssueKey is set when the workspace lives under the workspace root.
	IssueKey string `json:"issue_key,omitempty"`

	// Primary marks the shared checkout. It is listed for visibility but
	// never created or removed by berth.
	Primary bool `json:"primary"`

	// Prunable is true when git reports the worktree directory is missing.
	Prunable bool `json:"prunable,omitempty"`

	// Locked is true when the worktree has a git lock.
	Locked bool `json:"locked,omitempty"`

	// Status is filled in only when a status query was requested.
	Status *WorkspaceStatus `json:"status,omitempty"`
}

// WorkspaceStatus is the working-tree state of a workspace.
type WorkspaceStatus struct {
	Path             string `json:"path"`
	Branch           string `json:"branch"`
	HasChanges       bool   `json:"has_changes"`
	UncommittedCount int    `json:"uncommitted_count"`
}
