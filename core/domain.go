package core

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var statuses = []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}

// ParseStatus rejects anything outside the closed status set.
func ParseStatus(value string) (Status, error) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range statuses {
		if status == normalized {
			return status, nil
		}
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", value))
}

func (s Status) Valid() bool {
	_, err := ParseStatus(string(s))
	return err == nil
}

// CanTransition reports whether the ledger may move from s to next. Claim is the
// only way into processing and outcome recording the only way out of it.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	case StatusFailed:
		return next == StatusProcessing
	default:
		return false
	}
}

func (s Status) String() string { return string(s) }

type SubmitStatus string

const (
	SubmitAccepted     SubmitStatus = "accepted"
	SubmitDeduplicated SubmitStatus = "deduplicated"
	SubmitConflict     SubmitStatus = "conflict"
)

type AuditAction string

const (
	AuditEventReceived               AuditAction = "event_received"
	AuditEventInserted               AuditAction = "event_inserted"
	AuditEventDeduped                AuditAction = "event_deduped"
	AuditConflictDetected            AuditAction = "conflict_detected"
	AuditProcessingAttemptStarted    AuditAction = "processing_attempt_started"
	AuditProcessingAttemptFailed     AuditAction = "processing_attempt_failed"
	AuditProcessingSucceeded         AuditAction = "processing_succeeded"
	AuditRetryScheduled              AuditAction = "retry_scheduled"
	AuditProcessingFailedPermanently AuditAction = "processing_failed_permanently"
	AuditProcessingReclaimed         AuditAction = "processing_reclaimed"
)

type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "success"
	OutcomeFailure AuditOutcome = "failure"
	// OutcomePending is the neutral outcome.
	OutcomePending AuditOutcome = "pending"
)

type ExecutionOutcome string

const (
	ExecutionSucceeded      ExecutionOutcome = "succeeded"
	ExecutionRetryScheduled ExecutionOutcome = "retry_scheduled"
	ExecutionExhausted      ExecutionOutcome = "exhausted"
)

// Event is immutable once stored.
type Event struct {
	ID                 string         `json:"-"`
	EventID            string         `json:"event_id"`
	EventType          string         `json:"event_type"`
	OccurredAt         time.Time      `json:"occurred_at"`
	Payload            map[string]any `json:"payload"`
	PayloadFingerprint string         `json:"payload_fingerprint"`
	ReceivedAt         time.Time      `json:"created_at"`
}

type ProcessingRecord struct {
	ID             string     `json:"-"`
	EventID        string     `json:"event_id"`
	Status         Status     `json:"status"`
	AttemptCount   int        `json:"attempt_count"`
	LastAttemptAt  *time.Time `json:"last_attempt_at"`
	NextEligibleAt *time.Time `json:"next_eligible_at"`
	ClaimedAt      *time.Time `json:"claimed_at"`
	CompletedAt    *time.Time `json:"completed_at"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Exhausted reports a failed record whose attempt budget is spent.
func (r ProcessingRecord) Exhausted(maxAttempts int) bool {
	return r.Status == StatusFailed && r.AttemptCount >= maxAttempts
}

type AuditEntry struct {
	ID        int64        `json:"id"`
	Timestamp time.Time    `json:"timestamp"`
	EventID   string       `json:"event_id"`
	Action    AuditAction  `json:"action"`
	Detail    string       `json:"details"`
	Outcome   AuditOutcome `json:"success"`
}

type Submission struct {
	EventID    string
	EventType  string
	OccurredAt time.Time
	Payload    map[string]any
}

func (s Submission) Validate() error {
	if strings.TrimSpace(s.EventID) == "" {
		return NewValidationError("event_id", "event_id is required")
	}
	if strings.TrimSpace(s.EventType) == "" {
		return NewValidationError("event_type", "event_type is required")
	}
	if s.OccurredAt.IsZero() {
		return NewValidationError("occurred_at", "occurred_at is required")
	}
	if s.Payload == nil {
		return NewValidationError("payload", "payload must be a JSON object")
	}
	return nil
}

type SubmitResult struct {
	Status  SubmitStatus `json:"status"`
	Message string       `json:"message"`
	EventID string       `json:"event_id"`
}

// Lease is a claimed ledger row together with its event.
type Lease struct {
	Event  Event
	Record ProcessingRecord
}

type FailureUpdate struct {
	EventID string
	Now     time.Time
	Reason  string
	// NextEligibleAt is nil once the attempt budget is exhausted.
	NextEligibleAt *time.Time
}

type EventFilter struct {
	EventType string
	Limit     int
	Offset    int
}

type LedgerFilter struct {
	Status Status
	Limit  int
	Offset int
}

type AuditFilter struct {
	EventID string
	Action  AuditAction
	Limit   int
	Offset  int
	// Ascending returns oldest first. The default is newest first.
	Ascending bool
}

type BatchStats struct {
	Leased    int `json:"leased"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Exhausted int `json:"exhausted"`
}

func (s BatchStats) Add(other BatchStats) BatchStats {
	return BatchStats{
		Leased:    s.Leased + other.Leased,
		Succeeded: s.Succeeded + other.Succeeded,
		Failed:    s.Failed + other.Failed,
		Exhausted: s.Exhausted + other.Exhausted,
	}
}

type ReclaimStats struct {
	Reclaimed int `json:"reclaimed"`
	Exhausted int `json:"exhausted"`
}
