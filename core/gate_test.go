package core

import (
	"context"
	"errors"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
)

func newTestGate(t *testing.T, store *memoryStore, options ...Option) *Gate {
	t.Helper()
	gate, err := NewGate(store, store, options...)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	return gate
}

func TestGate_SubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gate := newTestGate(t, store)

	payload := map[string]any{"order_id": "o-1", "amount": 42}
	first, err := gate.Submit(ctx, testSubmission("E1", payload))
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if first.Status != SubmitAccepted {
		t.Fatalf("expected accepted, got %q", first.Status)
	}

	for i := 0; i < 3; i++ {
		next, err := gate.Submit(ctx, testSubmission("E1", payload))
		if err != nil {
			t.Fatalf("repeat submit: %v", err)
		}
		if next.Status != SubmitDeduplicated {
			t.Fatalf("expected deduplicated, got %q", next.Status)
		}
	}

	if len(store.events) != 1 {
		t.Fatalf("expected one stored event, got %d", len(store.events))
	}
	record := store.records["E1"]
	if record.Status != StatusPending || record.AttemptCount != 0 {
		t.Fatalf("expected pending ledger row with zero attempts, got %+v", record)
	}
	if got := store.countAction(AuditEventReceived); got != 4 {
		t.Fatalf("expected 4 event_received entries, got %d", got)
	}
	if got := store.countAction(AuditEventInserted); got != 1 {
		t.Fatalf("expected 1 event_inserted entry, got %d", got)
	}
	if got := store.countAction(AuditEventDeduped); got != 3 {
		t.Fatalf("expected 3 event_deduped entries, got %d", got)
	}
}

func TestGate_SubmitDetectsConflict(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gate := newTestGate(t, store)

	if res, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1})); err != nil || res.Status != SubmitAccepted {
		t.Fatalf("expected accepted, got %+v err=%v", res, err)
	}
	res, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 2}))
	if err != nil {
		t.Fatalf("conflicting submit: %v", err)
	}
	if res.Status != SubmitConflict {
		t.Fatalf("expected conflict, got %q", res.Status)
	}
	if res.Message != "Event E1 already exists with different payload" {
		t.Fatalf("unexpected conflict message %q", res.Message)
	}
	if len(store.events) != 1 {
		t.Fatalf("expected no second event row, got %d", len(store.events))
	}
	if got := store.countAction(AuditConflictDetected); got != 1 {
		t.Fatalf("expected exactly one conflict_detected entry, got %d", got)
	}
	if fp, _ := Fingerprint(map[string]any{"a": 1}); store.events["E1"].PayloadFingerprint != fp {
		t.Fatalf("conflict must not mutate the stored event")
	}
}

func TestGate_FingerprintIgnoresKeyOrder(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gate := newTestGate(t, store)

	if _, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1, "b": 2})); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	res, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"b": 2, "a": 1}))
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if res.Status != SubmitDeduplicated {
		t.Fatalf("expected deduplicated for reordered keys, got %q", res.Status)
	}
}

func TestGate_ResolvesInsertRaceByRereading(t *testing.T) {
	ctx := context.Background()
	payload := map[string]any{"a": 1}
	fingerprint, err := Fingerprint(payload)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}

	store := newMemoryStore()
	store.raceOnInsert = &Event{EventID: "E1", EventType: "order.created", PayloadFingerprint: fingerprint}
	gate := newTestGate(t, store)
	res, err := gate.Submit(ctx, testSubmission("E1", payload))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != SubmitDeduplicated {
		t.Fatalf("expected race with identical payload to deduplicate, got %q", res.Status)
	}

	store = newMemoryStore()
	store.raceOnInsert = &Event{EventID: "E1", EventType: "order.created", PayloadFingerprint: "other"}
	gate = newTestGate(t, store)
	res, err = gate.Submit(ctx, testSubmission("E1", payload))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Status != SubmitConflict {
		t.Fatalf("expected race with different payload to conflict, got %q", res.Status)
	}
}

func TestGate_ConcurrentFirstDeliveriesAcceptOnce(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gate := newTestGate(t, store)

	const callers = 8
	results := make(chan SubmitStatus, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1}))
			if err != nil {
				t.Errorf("submit: %v", err)
				return
			}
			results <- res.Status
		}()
	}
	wg.Wait()
	close(results)

	accepted := 0
	for status := range results {
		switch status {
		case SubmitAccepted:
			accepted++
		case SubmitDeduplicated:
		default:
			t.Fatalf("unexpected status %q", status)
		}
	}
	if accepted != 1 {
		t.Fatalf("expected exactly one accepted, got %d", accepted)
	}
}

func TestGate_ValidationErrorsAreNotPersisted(t *testing.T) {
	store := newMemoryStore()
	gate := newTestGate(t, store)

	cases := []Submission{
		{EventType: "x", OccurredAt: testSubmission("", nil).OccurredAt, Payload: map[string]any{}},
		{EventID: "E1", OccurredAt: testSubmission("", nil).OccurredAt, Payload: map[string]any{}},
		{EventID: "E1", EventType: "x", Payload: map[string]any{}},
		{EventID: "E1", EventType: "x", OccurredAt: testSubmission("", nil).OccurredAt},
	}
	for _, submission := range cases {
		_, err := gate.Submit(context.Background(), submission)
		if err == nil {
			t.Fatalf("expected validation error for %+v", submission)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope, got %T", err)
		}
		if rich.Category != goerrors.CategoryValidation {
			t.Fatalf("expected validation category, got %q", rich.Category)
		}
		if rich.TextCode != ErrorBadInput {
			t.Fatalf("expected %q, got %q", ErrorBadInput, rich.TextCode)
		}
	}
	if len(store.events) != 0 || len(store.audit) != 0 {
		t.Fatalf("expected nothing persisted for invalid submissions")
	}
}

func TestGate_StoreFailurePropagates(t *testing.T) {
	store := newMemoryStore()
	store.failInsert = errors.New("dial tcp: connection refused")
	gate := newTestGate(t, store)

	_, err := gate.Submit(context.Background(), testSubmission("E1", map[string]any{"a": 1}))
	if err == nil {
		t.Fatalf("expected store failure to surface")
	}
	if !IsStoreUnavailable(err) {
		t.Fatalf("expected store unavailable error, got %v", err)
	}
}

func TestGate_NotifiesOnAcceptOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	waker := NewLocalWaker()
	wakeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	wakeups, err := waker.Wakeups(wakeCtx)
	if err != nil {
		t.Fatalf("wakeups: %v", err)
	}

	metrics := &captureMetrics{}
	gate := newTestGate(t, store, WithNotifier(waker), WithMetricsRecorder(metrics))
	if _, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-wakeups:
	default:
		t.Fatalf("expected a wakeup after accept")
	}

	if _, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-wakeups:
		t.Fatalf("did not expect a wakeup after dedupe")
	default:
	}
	if got := metrics.count("spine.ingest.total"); got != 2 {
		t.Fatalf("expected 2 ingest counters, got %d", got)
	}
}

func TestGate_EventIDIsMatchedExactly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	gate := newTestGate(t, store)

	first, err := gate.Submit(ctx, testSubmission("E1", map[string]any{"a": 1}))
	if err != nil || first.Status != SubmitAccepted {
		t.Fatalf("expected accepted, got %+v err=%v", first, err)
	}
	second, err := gate.Submit(ctx, testSubmission(" E1 ", map[string]any{"a": 2}))
	if err != nil || second.Status != SubmitAccepted {
		t.Fatalf("expected padded id to be a distinct event, got %+v err=%v", second, err)
	}
	if second.EventID != " E1 " {
		t.Fatalf("expected id echoed as sent, got %q", second.EventID)
	}
	if len(store.events) != 2 {
		t.Fatalf("expected two stored events, got %d", len(store.events))
	}

	if _, err := gate.Submit(ctx, testSubmission("   ", map[string]any{})); !IsTextCode(err, ErrorBadInput) {
		t.Fatalf("expected whitespace-only id to be rejected, got %v", err)
	}
}
