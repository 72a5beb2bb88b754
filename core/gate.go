package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	messageAccepted     = "Event received and queued for processing"
	messageDeduplicated = "Event already processed"
)

// Gate decides accept, deduplicate, or conflict for inbound events. It holds no
// state of its own; every decision is made against the store.
type Gate struct {
	events    EventStore
	audit     AuditTrail
	notifier  Notifier
	clock     Clock
	telemetry telemetry
}

func NewGate(events EventStore, audit AuditTrail, options ...Option) (*Gate, error) {
	if events == nil {
		return nil, fmt.Errorf("core: gate requires an event store")
	}
	if audit == nil {
		return nil, fmt.Errorf("core: gate requires an audit trail")
	}
	resolved := resolveOptions("spine.gate", options)
	return &Gate{
		events:    events,
		audit:     audit,
		notifier:  resolved.notifier,
		clock:     resolved.clock,
		telemetry: newTelemetry(resolved),
	}, nil
}

func (g *Gate) Submit(ctx context.Context, submission Submission) (result SubmitResult, err error) {
	startedAt := time.Now()
	submission.EventType = strings.TrimSpace(submission.EventType)
	fields := map[string]any{
		"event_id":   submission.EventID,
		"event_type": submission.EventType,
	}
	defer func() {
		fields["result"] = string(result.Status)
		g.telemetry.observeOperation(ctx, startedAt, "ingest", err, fields)
	}()

	if err = submission.Validate(); err != nil {
		return SubmitResult{}, err
	}
	fingerprint, err := Fingerprint(submission.Payload)
	if err != nil {
		return SubmitResult{}, NewValidationError("payload", err.Error())
	}

	if err = g.append(ctx, submission.EventID, AuditEventReceived, "Type: "+submission.EventType, OutcomePending); err != nil {
		return SubmitResult{}, NewStoreUnavailableError("append audit", err)
	}

	event := Event{
		EventID:            submission.EventID,
		EventType:          submission.EventType,
		OccurredAt:         submission.OccurredAt.UTC(),
		Payload:            submission.Payload,
		PayloadFingerprint: fingerprint,
		ReceivedAt:         g.clock(),
	}
	insertErr := g.events.InsertWithLedger(ctx, event)
	if insertErr == nil {
		g.appendBestEffort(ctx, event.EventID, AuditEventInserted, "Event stored in database", OutcomeSuccess)
		g.notify(ctx, event.EventID)
		return SubmitResult{Status: SubmitAccepted, Message: messageAccepted, EventID: event.EventID}, nil
	}
	if !IsDuplicateEvent(insertErr) {
		return SubmitResult{}, NewStoreUnavailableError("insert event", insertErr)
	}

	// The row exists, either from an earlier delivery or from a concurrent
	// first delivery that won the unique constraint. Re-read and compare.
	existing, err := g.events.GetEvent(ctx, event.EventID)
	if err != nil {
		return SubmitResult{}, NewStoreUnavailableError("get event", err)
	}
	return g.resolveExisting(ctx, existing, fingerprint), nil
}

func (g *Gate) resolveExisting(ctx context.Context, existing Event, fingerprint string) SubmitResult {
	if existing.PayloadFingerprint != fingerprint {
		message := conflictMessage(existing.EventID)
		g.telemetry.logWarn(ctx, "event conflict", map[string]any{
			"event_id":             existing.EventID,
			"stored_fingerprint":   existing.PayloadFingerprint,
			"received_fingerprint": fingerprint,
		})
		g.appendBestEffort(ctx, existing.EventID, AuditConflictDetected, message, OutcomeFailure)
		return SubmitResult{Status: SubmitConflict, Message: message, EventID: existing.EventID}
	}
	g.appendBestEffort(ctx, existing.EventID, AuditEventDeduped, "Duplicate ignored", OutcomeSuccess)
	return SubmitResult{Status: SubmitDeduplicated, Message: messageDeduplicated, EventID: existing.EventID}
}

func (g *Gate) append(ctx context.Context, eventID string, action AuditAction, detail string, outcome AuditOutcome) error {
	return g.audit.Append(ctx, AuditEntry{
		Timestamp: g.clock(),
		EventID:   eventID,
		Action:    action,
		Detail:    detail,
		Outcome:   outcome,
	})
}

// appendBestEffort is used once the decision is already durable; losing the
// audit row must not change what the caller is told.
func (g *Gate) appendBestEffort(ctx context.Context, eventID string, action AuditAction, detail string, outcome AuditOutcome) {
	if err := g.append(ctx, eventID, action, detail, outcome); err != nil {
		g.telemetry.logError(ctx, "audit append failed", map[string]any{
			"event_id": eventID,
			"action":   string(action),
			"error":    err.Error(),
		})
	}
}

func (g *Gate) notify(ctx context.Context, eventID string) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.Notify(ctx, eventID); err != nil {
		g.telemetry.logWarn(ctx, "wake notification failed", map[string]any{
			"event_id": eventID,
			"error":    err.Error(),
		})
	}
}
