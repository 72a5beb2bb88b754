package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// EventStore owns the events table. InsertWithLedger looks up event_id and, when
// absent, creates the event and its pending ledger row in the same transaction.
// It returns an error carrying ErrorEventDuplicate when the row already exists
// or when the unique constraint rejects a concurrent insert.
type EventStore interface {
	InsertWithLedger(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, eventID string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
}

// Ledger owns processing_state. Claim must not block on a row held by another
// worker and must re-check eligibility while holding the row.
type Ledger interface {
	ListCandidates(ctx context.Context, now time.Time, maxAttempts int, limit int) ([]string, error)
	Claim(ctx context.Context, eventID string, now time.Time, maxAttempts int) (ProcessingRecord, bool, error)
	MarkCompleted(ctx context.Context, eventID string, now time.Time) (ProcessingRecord, error)
	MarkFailed(ctx context.Context, update FailureUpdate) (ProcessingRecord, error)
	ReclaimStale(ctx context.Context, claimedBefore time.Time, now time.Time, limit int) ([]ProcessingRecord, error)
	GetRecord(ctx context.Context, eventID string) (ProcessingRecord, error)
	ListRecords(ctx context.Context, filter LedgerFilter) ([]ProcessingRecord, error)
}

type LedgerReader interface {
	GetRecord(ctx context.Context, eventID string) (ProcessingRecord, error)
	ListRecords(ctx context.Context, filter LedgerFilter) ([]ProcessingRecord, error)
}

type AuditTrail interface {
	Append(ctx context.Context, entry AuditEntry) error
	ListEntries(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

type AuditReader interface {
	ListEntries(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// LeaseSource hands out claimed work. The scheduler only knows this capability.
type LeaseSource interface {
	LeaseNext(ctx context.Context, limit int) ([]Lease, error)
}

// LeaseHandler runs one claimed lease to a recorded outcome.
type LeaseHandler interface {
	Execute(ctx context.Context, lease Lease) (ExecutionOutcome, error)
}

// Executor is the downstream side effect. A nil error is success.
type Executor interface {
	Execute(ctx context.Context, event Event) error
}

type ExecutorFunc func(ctx context.Context, event Event) error

func (f ExecutorFunc) Execute(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Notifier nudges idle workers after an event is accepted. It never carries work.
type Notifier interface {
	Notify(ctx context.Context, eventID string) error
}

// WakeSource delivers nudges to a scheduler between poll ticks.
type WakeSource interface {
	Wakeups(ctx context.Context) (<-chan struct{}, error)
}

type AttemptEvent struct {
	EventID   string
	EventType string
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type ProcessingHook interface {
	OnStart(ctx context.Context, event AttemptEvent)
	OnSuccess(ctx context.Context, event AttemptEvent)
	OnFailure(ctx context.Context, event AttemptEvent)
	OnRetry(ctx context.Context, event AttemptEvent)
}

type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
