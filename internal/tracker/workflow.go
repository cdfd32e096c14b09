package tracker

import (
	"github.com/mrz1836/berth/internal/constants"
)

// ValidTransitions is the issue workflow. Leaving in_progress is only
// possible through submission, so an in_progress issue always has a
// session behind it.
//
//nolint:gochecknoglobals // Read-only workflow table
var ValidTransitions = map[constants.IssueStatus][]constants.IssueStatus{
	constants.IssueStatusReady:      {constants.IssueStatusInProgress},
	constants.IssueStatusInProgress: {constants.IssueStatusReview},
	constants.IssueStatusReview:     {constants.IssueStatusDone, constants.IssueStatusReady},
	constants.IssueStatusDone:       {constants.IssueStatusReady},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to constants.IssueStatus) bool {
	for _, next := range ValidTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
