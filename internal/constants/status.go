package constants

// IssueStatus represents the lifecycle state of an issue.
// Status values use snake_case for JSON and database compatibility.
type IssueStatus string

// Issue status constants. The session core only drives two transitions
// (ready → in_progress on start, in_progress → review on submit); the rest of
// the workflow belongs to the tracker:
//
//	Ready → InProgress
//	InProgress → Review
//	Review → Done, Ready
//	Done → Ready
const (
	// IssueStatusReady indicates the issue can be picked up.
	IssueStatusReady IssueStatus = "ready"

	// IssueStatusInProgress indicates an operator holds an active work session.
	IssueStatusInProgress IssueStatus = "in_progress"

	// IssueStatusReview indicates work was submitted and awaits review.
	IssueStatusReview IssueStatus = "review"

	// IssueStatusDone indicates the issue is finished.
	IssueStatusDone IssueStatus = "done"
)

// String returns the string representation of the IssueStatus.
func (s IssueStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known issue statuses.
func (s IssueStatus) IsValid() bool {
	switch s {
	case IssueStatusReady, IssueStatusInProgress, IssueStatusReview, IssueStatusDone:
		return true
	default:
		return false
	}
}

// AllIssueStatuses returns every known issue status in workflow order.
func AllIssueStatuses() []IssueStatus {
	return []IssueStatus{IssueStatusReady, IssueStatusInProgress, IssueStatusReview, IssueStatusDone}
}
