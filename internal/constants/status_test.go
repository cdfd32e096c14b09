package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueStatus_String(t *testing.T) {
	tests := []struct {
		status   IssueStatus
		expected string
	}{
		{IssueStatusReady, "ready"},
		{IssueStatusInProgress, "in_progress"},
		{IssueStatusReview, "review"},
		{IssueStatusDone, "done"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.status.String())
		})
	}
}

func TestIssueStatus_IsValid(t *testing.T) {
	for _, s := range AllIssueStatuses() {
		assert.True(t, s.IsValid(), "status %q should be valid", s)
	}
	assert.False(t, IssueStatus("").IsValid())
	assert.False(t, IssueStatus("blocked").IsValid())
}
