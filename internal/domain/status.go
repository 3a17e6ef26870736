package domain

import (
	"fmt"
	"strings"
)

// JobStatus is the lifecycle state of a job. The literal values are a
// compatibility surface: pollers and the dashboard match on these exact names.
type JobStatus string

const (
	JobStatusReceived    JobStatus = "RECEIVED"
	JobStatusValidated   JobStatus = "VALIDATED"
	JobStatusIngested    JobStatus = "INGESTED"
	JobStatusTranscribed JobStatus = "TRANSCRIBED"
	JobStatusInsights    JobStatus = "INSIGHTS"
	JobStatusDrafted     JobStatus = "DRAFTED"
	JobStatusReviewed    JobStatus = "REVIEWED"
	JobStatusDelivered   JobStatus = "DELIVERED"
	JobStatusStored      JobStatus = "STORED"
	JobStatusAnalytics   JobStatus = "ANALYTICS_LOGGED"

	JobStatusFailedValidation   JobStatus = "FAILED_VALIDATION"
	JobStatusBlockedEntitlement JobStatus = "BLOCKED_ENTITLEMENT"
	JobStatusManualReview       JobStatus = "REQUIRES_MANUAL_REVIEW"
	JobStatusNeedsUserInput     JobStatus = "NEEDS_USER_INPUT"
	JobStatusFailed             JobStatus = "FAILED"
)

// transitions maps each status to the set of statuses it may legally move to.
// An empty slice means the status is a dead end for validated transitions.
var transitions = map[JobStatus][]JobStatus{
	JobStatusReceived:    {JobStatusValidated, JobStatusFailedValidation},
	JobStatusValidated:   {JobStatusIngested, JobStatusBlockedEntitlement},
	JobStatusIngested:    {JobStatusTranscribed, JobStatusFailed},
	JobStatusTranscribed: {JobStatusInsights, JobStatusNeedsUserInput, JobStatusFailed},
	JobStatusInsights:    {JobStatusDrafted, JobStatusFailed},
	JobStatusDrafted:     {JobStatusReviewed, JobStatusFailed},
	JobStatusReviewed:    {JobStatusDelivered, JobStatusManualReview, JobStatusFailed},
	JobStatusDelivered:   {JobStatusStored, JobStatusFailed},
	JobStatusStored:      {JobStatusAnalytics, JobStatusFailed},
	JobStatusAnalytics:   {},

	JobStatusFailedValidation:   {},
	JobStatusBlockedEntitlement: {},
	JobStatusManualReview:       {JobStatusDelivered, JobStatusFailed},
	JobStatusNeedsUserInput:     {JobStatusTranscribed, JobStatusFailed},
	JobStatusFailed:             {},
}

// CanTransitionTo reports whether a validated status update from current to
// target is permitted by the transition table.
func CanTransitionTo(current, target JobStatus) bool {
	for _, allowed := range transitions[current] {
		if allowed == target {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the legal targets for a status. The returned
// slice is a copy and safe to modify.
func AllowedTransitions(status JobStatus) []JobStatus {
	allowed := transitions[status]
	out := make([]JobStatus, len(allowed))
	copy(out, allowed)
	return out
}

// IsValidStatus reports whether the status belongs to the transition table's
// domain.
func IsValidStatus(status JobStatus) bool {
	_, ok := transitions[status]
	return ok
}

// IsTerminalStatus reports whether a job in this status has finished for good.
func IsTerminalStatus(status JobStatus) bool {
	switch status {
	case JobStatusAnalytics, JobStatusFailedValidation, JobStatusBlockedEntitlement, JobStatusFailed:
		return true
	}
	return false
}

// RequiresUserAction reports whether the job is parked waiting for external
// intervention before the pipeline can resume.
func RequiresUserAction(status JobStatus) bool {
	return status == JobStatusManualReview || status == JobStatusNeedsUserInput
}

// InvalidTransitionError is returned when a status update targets a status
// the transition table does not permit from the current one.
type InvalidTransitionError struct {
	From JobStatus
	To   JobStatus
}

func (e *InvalidTransitionError) Error() string {
	allowed := transitions[e.From]
	if len(allowed) == 0 {
		return fmt.Sprintf("invalid transition: %s -> %s (no transitions allowed from %s)", e.From, e.To, e.From)
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return fmt.Sprintf("invalid transition: %s -> %s (allowed: %s)", e.From, e.To, strings.Join(names, ", "))
}
