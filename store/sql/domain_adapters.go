package sqlstore

import (
	"time"

	"github.com/goliatone/go-webhook-spine/core"
	"github.com/google/uuid"
)

func newEventRecord(event core.Event) *eventRecord {
	return &eventRecord{
		ID:                 uuid.NewString(),
		EventID:            event.EventID,
		EventType:          event.EventType,
		OccurredAt:         event.OccurredAt.UTC(),
		Payload:            payloadDocument(copyAnyMap(event.Payload)),
		PayloadFingerprint: event.PayloadFingerprint,
		CreatedAt:          event.ReceivedAt.UTC(),
	}
}

func newPendingRecord(eventID string, now time.Time) *processingStateRecord {
	return &processingStateRecord{
		ID:        uuid.NewString(),
		EventID:   eventID,
		Status:    string(core.StatusPending),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (r *eventRecord) toDomain() core.Event {
	if r == nil {
		return core.Event{}
	}
	return core.Event{
		ID:                 r.ID,
		EventID:            r.EventID,
		EventType:          r.EventType,
		OccurredAt:         r.OccurredAt.UTC(),
		Payload:            copyAnyMap(r.Payload),
		PayloadFingerprint: r.PayloadFingerprint,
		ReceivedAt:         r.CreatedAt.UTC(),
	}
}

func (r *processingStateRecord) toDomain() core.ProcessingRecord {
	if r == nil {
		return core.ProcessingRecord{}
	}
	return core.ProcessingRecord{
		ID:             r.ID,
		EventID:        r.EventID,
		Status:         core.Status(r.Status),
		AttemptCount:   r.AttemptCount,
		LastAttemptAt:  cloneTimePointer(r.LastAttemptAt),
		NextEligibleAt: cloneTimePointer(r.NextEligibleAt),
		ClaimedAt:      cloneTimePointer(r.ClaimedAt),
		CompletedAt:    cloneTimePointer(r.CompletedAt),
		ErrorMessage:   r.ErrorMessage,
		CreatedAt:      r.CreatedAt.UTC(),
		UpdatedAt:      r.UpdatedAt.UTC(),
	}
}

func newAuditLogRecord(entry core.AuditEntry) *auditLogRecord {
	timestamp := entry.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	outcome := entry.Outcome
	if outcome == "" {
		outcome = core.OutcomePending
	}
	return &auditLogRecord{
		Timestamp: timestamp.UTC(),
		EventID:   entry.EventID,
		Action:    string(entry.Action),
		Detail:    entry.Detail,
		Outcome:   string(outcome),
	}
}

func (r *auditLogRecord) toDomain() core.AuditEntry {
	if r == nil {
		return core.AuditEntry{}
	}
	return core.AuditEntry{
		ID:        r.ID,
		Timestamp: r.Timestamp.UTC(),
		EventID:   r.EventID,
		Action:    core.AuditAction(r.Action),
		Detail:    r.Detail,
		Outcome:   core.AuditOutcome(r.Outcome),
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func cloneTimePointer(input *time.Time) *time.Time {
	if input == nil {
		return nil
	}
	value := input.UTC()
	return &value
}
