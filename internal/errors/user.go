package errors

import "errors"

// ErrorInfo holds user-facing message and suggested action for an error.
type ErrorInfo struct {
	// Message is the user-friendly error description.
	Message string
	// Action is a suggested action to resolve the issue (empty if none).
	Action string
}

// errorEntry pairs a sentinel error with its user-facing info.
type errorEntry struct {
	err  error
	info ErrorInfo
}

// errorInfoEntries maps sentinel errors to user-facing messages.
// A slice rather than a map because lookups go through errors.Is.
//
//nolint:gochecknoglobals // Pre-built mapping
var errorInfoEntries = []errorEntry{
	{
		err: ErrIssueNotFound,
		info: ErrorInfo{
			Message: "No issue matches that key or id.",
			Action:  "Run 'berth issue list' to see known issues.",
		},
	},
	{
		err: ErrProjectNotFound,
		info: ErrorInfo{
			Message: "The project does not exist.",
			Action:  "Run 'berth project list' or create it with 'berth project create'.",
		},
	},
	{
		err: ErrInvalidReference,
		info: ErrorInfo{
			Message: "The issue reference is neither a key like DEMO-1 nor a canonical id.",
			Action:  "Pass an issue key (PREFIX-NUMBER) or the issue's canonical id.",
		},
	},
	{
		err: ErrInvalidTransition,
		info: ErrorInfo{
			Message: "The issue is not in a status that allows this operation.",
			Action:  "Check the issue with 'berth issue show' and move it to 'ready' first if needed.",
		},
	},
	{
		err: ErrSessionInFlight,
		info: ErrorInfo{
			Message: "Another start or submit for this issue is in progress.",
			Action:  "Wait a few seconds and retry.",
		},
	},
	{
		err: ErrSessionActive,
		info: ErrorInfo{
			Message: "The issue already has an active work session.",
			Action:  "Submit the existing session with 'berth submit' before starting again.",
		},
	},
	{
		err: ErrSessionHistory,
		info: ErrorInfo{
			Message: "The issue has recorded work sessions and cannot be deleted.",
			Action:  "Move it to done with 'berth issue set-status <ISSUE-KEY> done' instead.",
		},
	},
	{
		err: ErrNoActiveSession,
		info: ErrorInfo{
			Message: "The issue has no active work session to submit.",
			Action:  "Start one with 'berth start <ISSUE-KEY>'.",
		},
	},
	{
		err: ErrWorkspaceExists,
		info: ErrorInfo{
			Message: "A workspace already exists at the computed path.",
			Action:  "Remove it with 'berth workspace cleanup <ISSUE-KEY>' or reuse it.",
		},
	},
	{
		err: ErrWorkspaceNotFound,
		info: ErrorInfo{
			Message: "The workspace path no longer exists.",
			Action:  "Run 'berth workspace list' to see registered workspaces.",
		},
	},
	{
		err: ErrWorkspaceDirty,
		info: ErrorInfo{
			Message: "The workspace was kept because it has uncommitted changes.",
			Action:  "Commit or discard the changes, then run 'berth workspace cleanup <ISSUE-KEY>' (add --force to discard).",
		},
	},
	{
		err: ErrNotAWorktree,
		info: ErrorInfo{
			Message: "The path is not a removable worktree.",
			Action:  "The shared checkout is never removed. Run 'git worktree list' to see valid worktrees.",
		},
	},
	{
		err: ErrVersionControl,
		info: ErrorInfo{
			Message: "The git executable failed. The issue state was still recorded.",
			Action:  "Check the git output above, fix the local checkout, and retry the workspace step.",
		},
	},
	{
		err: ErrNotGitRepo,
		info: ErrorInfo{
			Message: "The base path is not a git repository.",
			Action:  "Pass --base-path pointing at the shared checkout.",
		},
	},
	{
		err: ErrEditOutsideWorkspace,
		info: ErrorInfo{
			Message: "Edits to the shared checkout are not allowed.",
			Action:  "Run 'berth start <ISSUE-KEY>' and edit inside the issue's workspace.",
		},
	},
	{
		err: ErrDuplicatePrefix,
		info: ErrorInfo{
			Message: "Another project already uses that key prefix.",
			Action:  "Pick a different prefix.",
		},
	},
	{
		err: ErrLockTimeout,
		info: ErrorInfo{
			Message: "Could not acquire a lock in time.",
			Action:  "Another berth process may be running. Retry shortly.",
		},
	},
	{
		err: ErrConfigInvalid,
		info: ErrorInfo{
			Message: "The configuration is invalid.",
			Action:  "Run 'berth config show' and fix the reported key.",
		},
	},
	{
		err: ErrNonInteractiveMode,
		info: ErrorInfo{
			Message: "Confirmation needed but no terminal is attached.",
			Action:  "Re-run with --yes to confirm.",
		},
	},
	{
		err: ErrInvalidOutputFormat,
		info: ErrorInfo{
			Message: "Unknown output format.",
			Action:  "Use --output text or --output json.",
		},
	},
}

// getErrorInfo looks up the ErrorInfo for err via errors.Is traversal.
// Returns an ErrorInfo with the original message if no sentinel matches.
func getErrorInfo(err error) ErrorInfo {
	for _, entry := range errorInfoEntries {
		if errors.Is(err, entry.err) {
			return entry.info
		}
	}
	return ErrorInfo{Message: err.Error()}
}

// UserMessage returns a user-friendly message for common errors.
// For unrecognized errors, it returns the error's original message.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return getErrorInfo(err).Message
}

// Actionable returns a user-friendly message along with a suggested action.
// The action is empty when no remediation is known.
func Actionable(err error) (message, action string) {
	if err == nil {
		return "", ""
	}
	info := getErrorInfo(err)
	return info.Message, info.Action
}
