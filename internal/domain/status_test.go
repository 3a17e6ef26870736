package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allStatuses = []JobStatus{
	JobStatusReceived, JobStatusValidated, JobStatusIngested, JobStatusTranscribed,
	JobStatusInsights, JobStatusDrafted, JobStatusReviewed, JobStatusDelivered,
	JobStatusStored, JobStatusAnalytics,
	JobStatusFailedValidation, JobStatusBlockedEntitlement, JobStatusManualReview,
	JobStatusNeedsUserInput, JobStatusFailed,
}

func TestCanTransitionTo(t *testing.T) {
	// The full legal table. Any (source, target) pair not listed here must be
	// rejected - checked exhaustively below.
	legal := map[JobStatus][]JobStatus{
		JobStatusReceived:    {JobStatusValidated, JobStatusFailedValidation},
		JobStatusValidated:   {JobStatusIngested, JobStatusBlockedEntitlement},
		JobStatusIngested:    {JobStatusTranscribed, JobStatusFailed},
		JobStatusTranscribed: {JobStatusInsights, JobStatusNeedsUserInput, JobStatusFailed},
		JobStatusInsights:    {JobStatusDrafted, JobStatusFailed},
		JobStatusDrafted:     {JobStatusReviewed, JobStatusFailed},
		JobStatusReviewed:    {JobStatusDelivered, JobStatusManualReview, JobStatusFailed},
		JobStatusDelivered:   {JobStatusStored, JobStatusFailed},
		JobStatusStored:      {JobStatusAnalytics, JobStatusFailed},

		JobStatusManualReview:   {JobStatusDelivered, JobStatusFailed},
		JobStatusNeedsUserInput: {JobStatusTranscribed, JobStatusFailed},
	}

	for _, from := range allStatuses {
		allowed := map[JobStatus]bool{}
		for _, to := range legal[from] {
			allowed[to] = true
		}
		for _, to := range allStatuses {
			got := CanTransitionTo(from, to)
			assert.Equal(t, allowed[to], got, "transition %s -> %s", from, to)
		}
	}
}

func TestCanTransitionTo_TerminalStatusesHaveNoTargets(t *testing.T) {
	for _, from := range []JobStatus{JobStatusAnalytics, JobStatusFailedValidation, JobStatusBlockedEntitlement, JobStatusFailed} {
		for _, to := range allStatuses {
			assert.False(t, CanTransitionTo(from, to), "terminal %s must not transition to %s", from, to)
		}
	}
}

func TestIsTerminalStatus(t *testing.T) {
	terminal := map[JobStatus]bool{
		JobStatusAnalytics:          true,
		JobStatusFailedValidation:   true,
		JobStatusBlockedEntitlement: true,
		JobStatusFailed:             true,
	}

	for _, status := range allStatuses {
		assert.Equal(t, terminal[status], IsTerminalStatus(status), "status %s", status)
	}
}

func TestRequiresUserAction(t *testing.T) {
	userAction := map[JobStatus]bool{
		JobStatusManualReview:   true,
		JobStatusNeedsUserInput: true,
	}

	for _, status := range allStatuses {
		assert.Equal(t, userAction[status], RequiresUserAction(status), "status %s", status)
	}
}

func TestIsValidStatus(t *testing.T) {
	for _, status := range allStatuses {
		assert.True(t, IsValidStatus(status))
	}
	assert.False(t, IsValidStatus("PROCESSING"))
	assert.False(t, IsValidStatus(""))
}

func TestInvalidTransitionError_Message(t *testing.T) {
	err := &InvalidTransitionError{From: JobStatusReceived, To: JobStatusDelivered}
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RECEIVED -> DELIVERED")
	assert.Contains(t, err.Error(), "VALIDATED")
	assert.Contains(t, err.Error(), "FAILED_VALIDATION")

	terminalErr := &InvalidTransitionError{From: JobStatusFailed, To: JobStatusReceived}
	assert.Contains(t, terminalErr.Error(), "no transitions allowed from FAILED")
}

func TestAllowedTransitions_ReturnsCopy(t *testing.T) {
	allowed := AllowedTransitions(JobStatusReceived)
	require.Len(t, allowed, 2)
	allowed[0] = JobStatusFailed

	again := AllowedTransitions(JobStatusReceived)
	assert.Equal(t, JobStatusValidated, again[0])
}
