package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Processor claims ledger rows and records execution outcomes. It implements
// LeaseSource and LeaseHandler.
type Processor struct {
	events    EventReader
	ledger    Ledger
	audit     AuditTrail
	executor  Executor
	backoff   BackoffPolicy
	cfg       ProcessingConfig
	clock     Clock
	hook      ProcessingHook
	telemetry telemetry
}

func NewProcessor(
	events EventReader,
	ledger Ledger,
	audit AuditTrail,
	executor Executor,
	cfg ProcessingConfig,
	options ...Option,
) (*Processor, error) {
	if events == nil || ledger == nil || audit == nil {
		return nil, fmt.Errorf("core: processor requires event reader, ledger, and audit trail")
	}
	if executor == nil {
		return nil, fmt.Errorf("core: processor requires an executor")
	}
	cfg = withProcessingDefaults(cfg)
	resolved := resolveOptions("spine.processor", options)
	hook := resolved.hook
	if hook == nil {
		hook = nopHook{}
	}
	return &Processor{
		events:    events,
		ledger:    ledger,
		audit:     audit,
		executor:  executor,
		backoff:   NewExponentialBackoff(cfg),
		cfg:       cfg,
		clock:     resolved.clock,
		hook:      hook,
		telemetry: newTelemetry(resolved),
	}, nil
}

func (p *Processor) Config() ProcessingConfig { return p.cfg }

// ProcessBatch claims and executes leases until the batch size is reached or
// nothing is eligible.
func (p *Processor) ProcessBatch(ctx context.Context) (BatchStats, error) {
	return drainBatch(ctx, p, p, p.cfg.BatchSize)
}

// ClaimNext inspects up to candidates eligible rows and claims the first one
// no other worker holds.
func (p *Processor) ClaimNext(ctx context.Context, candidates int) (Lease, bool, error) {
	if candidates <= 0 {
		candidates = p.cfg.BatchSize
	}
	now := p.clock()
	ids, err := p.ledger.ListCandidates(ctx, now, p.cfg.MaxAttempts, candidates)
	if err != nil {
		return Lease{}, false, NewStoreUnavailableError("list candidates", err)
	}
	for _, id := range ids {
		lease, ok, err := p.claim(ctx, id, now)
		if err != nil {
			return Lease{}, false, err
		}
		if ok {
			return lease, true, nil
		}
	}
	return Lease{}, false, nil
}

// LeaseNext claims up to limit rows out of one candidate batch.
func (p *Processor) LeaseNext(ctx context.Context, limit int) ([]Lease, error) {
	if limit <= 0 {
		limit = 1
	}
	now := p.clock()
	ids, err := p.ledger.ListCandidates(ctx, now, p.cfg.MaxAttempts, max(limit, p.cfg.BatchSize))
	if err != nil {
		return nil, NewStoreUnavailableError("list candidates", err)
	}
	leases := make([]Lease, 0, limit)
	for _, id := range ids {
		if len(leases) >= limit {
			break
		}
		lease, ok, err := p.claim(ctx, id, now)
		if err != nil {
			return leases, err
		}
		if ok {
			leases = append(leases, lease)
		}
	}
	return leases, nil
}

func (p *Processor) claim(ctx context.Context, eventID string, now time.Time) (Lease, bool, error) {
	record, ok, err := p.ledger.Claim(ctx, eventID, now, p.cfg.MaxAttempts)
	if err != nil {
		return Lease{}, false, NewStoreUnavailableError("claim", err)
	}
	if !ok {
		return Lease{}, false, nil
	}
	event, err := p.events.GetEvent(ctx, eventID)
	if err != nil {
		// The row stays processing until the watchdog reclaims its lease.
		return Lease{}, false, NewStoreUnavailableError("load claimed event", err)
	}
	p.appendBestEffort(ctx, eventID, AuditProcessingAttemptStarted,
		fmt.Sprintf("Attempt %d/%d", record.AttemptCount, p.cfg.MaxAttempts), OutcomePending)
	p.hook.OnStart(ctx, AttemptEvent{
		EventID:   eventID,
		EventType: event.EventType,
		Attempt:   record.AttemptCount,
		StartedAt: now,
	})
	return Lease{Event: event, Record: record}, true, nil
}

// Execute invokes the executor outside any lock, then records the outcome in
// its own transaction. Execution and recording ignore cancellation of ctx so a
// shutdown never abandons an in-flight call halfway.
func (p *Processor) Execute(ctx context.Context, lease Lease) (outcome ExecutionOutcome, err error) {
	startedAt := time.Now()
	eventID := lease.Record.EventID
	attempt := lease.Record.AttemptCount
	fields := map[string]any{
		"event_id":   eventID,
		"event_type": lease.Event.EventType,
		"attempt":    attempt,
	}
	defer func() {
		fields["result"] = string(outcome)
		p.telemetry.observeOperation(ctx, startedAt, "process", err, fields)
	}()

	// Only a held lease may reach the executor; both outcomes leave processing.
	if err = CheckTransition(eventID, lease.Record.Status, StatusCompleted); err != nil {
		return "", err
	}

	detached := context.WithoutCancel(ctx)
	execCtx, cancel := context.WithTimeout(detached, p.cfg.ExecutionTimeout)
	execErr := p.executeSafe(execCtx, lease.Event)
	cancel()

	now := p.clock()
	attemptEvent := AttemptEvent{
		EventID:   eventID,
		EventType: lease.Event.EventType,
		Attempt:   attempt,
		StartedAt: startedAt,
		Duration:  time.Since(startedAt),
	}

	if execErr == nil {
		if _, err = p.ledger.MarkCompleted(detached, eventID, now); err != nil {
			return "", outcomeStoreError("mark completed", err)
		}
		p.appendBestEffort(detached, eventID, AuditProcessingSucceeded,
			fmt.Sprintf("Completed on attempt %d", attempt), OutcomeSuccess)
		p.hook.OnSuccess(detached, attemptEvent)
		return ExecutionSucceeded, nil
	}

	reason := failureReason(execErr)
	fields["execution_error"] = reason
	next := NextEligibleAt(p.backoff, now, attempt, p.cfg.MaxAttempts)
	if _, err = p.ledger.MarkFailed(detached, FailureUpdate{
		EventID:        eventID,
		Now:            now,
		Reason:         reason,
		NextEligibleAt: next,
	}); err != nil {
		return "", outcomeStoreError("mark failed", err)
	}
	p.appendBestEffort(detached, eventID, AuditProcessingAttemptFailed,
		fmt.Sprintf("Failed on attempt %d: %s", attempt, reason), OutcomeFailure)
	attemptEvent.Err = NewExecutionError(eventID, execErr)
	p.hook.OnFailure(detached, attemptEvent)

	if next != nil {
		delay := p.backoff.Delay(attempt)
		p.appendBestEffort(detached, eventID, AuditRetryScheduled,
			fmt.Sprintf("Retry in %s (attempt %d/%d)", delay, attempt+1, p.cfg.MaxAttempts), OutcomePending)
		attemptEvent.Delay = delay
		p.hook.OnRetry(detached, attemptEvent)
		return ExecutionRetryScheduled, nil
	}

	p.appendBestEffort(detached, eventID, AuditProcessingFailedPermanently,
		fmt.Sprintf("Failed after %d attempts", attempt), OutcomeFailure)
	p.telemetry.logWarn(detached, "event exhausted retries", map[string]any{
		"event_id": eventID,
		"error":    NewExhaustedError(eventID, attempt).Error(),
	})
	return ExecutionExhausted, nil
}

func outcomeStoreError(op string, err error) error {
	if IsTextCode(err, ErrorIllegalTransition) {
		return err
	}
	return NewStoreUnavailableError(op, err)
}

func (p *Processor) executeSafe(ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.executor.Execute(ctx, event)
}

func (p *Processor) appendBestEffort(ctx context.Context, eventID string, action AuditAction, detail string, outcome AuditOutcome) {
	err := p.audit.Append(ctx, AuditEntry{
		Timestamp: p.clock(),
		EventID:   eventID,
		Action:    action,
		Detail:    detail,
		Outcome:   outcome,
	})
	if err != nil {
		p.telemetry.logError(ctx, "audit append failed", map[string]any{
			"event_id": eventID,
			"action":   string(action),
			"error":    err.Error(),
		})
	}
}

// failureReason is the error_message recorded for a failed attempt. Rich
// errors contribute their message plus the wrapped cause, if any.
func failureReason(err error) string {
	if err == nil {
		return ""
	}
	reason := strings.TrimSpace(err.Error())
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && strings.TrimSpace(rich.Message) != "" {
		reason = strings.TrimSpace(rich.Message)
		if cause := errors.Unwrap(rich); cause != nil {
			reason += ": " + strings.TrimSpace(cause.Error())
		}
	}
	if reason == "" {
		return "downstream call failed"
	}
	return reason
}

var (
	_ LeaseSource  = (*Processor)(nil)
	_ LeaseHandler = (*Processor)(nil)
)
