package core

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// memoryStore is an in-memory EventStore, Ledger, and AuditTrail that honours
// the same compare-and-set rules as the SQL stores.
type memoryStore struct {
	mu      sync.Mutex
	events  map[string]Event
	records map[string]ProcessingRecord
	audit   []AuditEntry
	seq     int64

	failGet    error
	failInsert error
	failAppend error
	failMark   error
	// raceOnInsert simulates a concurrent first delivery that commits between
	// the lookup and the insert.
	raceOnInsert *Event
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		events:  map[string]Event{},
		records: map[string]ProcessingRecord{},
	}
}

func (s *memoryStore) InsertWithLedger(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failInsert != nil {
		return s.failInsert
	}
	if _, ok := s.events[event.EventID]; ok {
		return NewDuplicateEventError(event.EventID, nil)
	}
	if s.raceOnInsert != nil {
		winner := *s.raceOnInsert
		s.raceOnInsert = nil
		s.events[winner.EventID] = winner
		s.records[winner.EventID] = ProcessingRecord{EventID: winner.EventID, Status: StatusPending}
		return NewDuplicateEventError(event.EventID, errors.New("unique constraint failed"))
	}
	s.events[event.EventID] = event
	s.records[event.EventID] = ProcessingRecord{
		EventID:   event.EventID,
		Status:    StatusPending,
		CreatedAt: event.ReceivedAt,
		UpdatedAt: event.ReceivedAt,
	}
	return nil
}

func (s *memoryStore) GetEvent(_ context.Context, eventID string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return Event{}, s.failGet
	}
	event, ok := s.events[eventID]
	if !ok {
		return Event{}, NewNotFoundError("event", eventID)
	}
	return event, nil
}

func (s *memoryStore) ListEvents(_ context.Context, filter EventFilter) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.events))
	for _, event := range s.events {
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventID < out[j].EventID })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func eligible(record ProcessingRecord, now time.Time, maxAttempts int) bool {
	if record.AttemptCount >= maxAttempts {
		return false
	}
	switch record.Status {
	case StatusPending:
		return true
	case StatusFailed:
		return record.NextEligibleAt != nil && !record.NextEligibleAt.After(now)
	default:
		return false
	}
}

func (s *memoryStore) ListCandidates(_ context.Context, now time.Time, maxAttempts int, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0)
	for id, record := range s.records {
		if eligible(record, now, maxAttempts) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *memoryStore) Claim(_ context.Context, eventID string, now time.Time, maxAttempts int) (ProcessingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[eventID]
	if !ok || !eligible(record, now, maxAttempts) {
		return ProcessingRecord{}, false, nil
	}
	if err := CheckTransition(eventID, record.Status, StatusProcessing); err != nil {
		return ProcessingRecord{}, false, err
	}
	record.Status = StatusProcessing
	record.AttemptCount++
	record.LastAttemptAt = &now
	record.ClaimedAt = &now
	record.UpdatedAt = now
	s.records[eventID] = record
	return record, true, nil
}

func (s *memoryStore) MarkCompleted(_ context.Context, eventID string, now time.Time) (ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		return ProcessingRecord{}, s.failMark
	}
	record := s.records[eventID]
	if err := CheckTransition(eventID, record.Status, StatusCompleted); err != nil {
		return ProcessingRecord{}, err
	}
	record.Status = StatusCompleted
	record.CompletedAt = &now
	record.ClaimedAt = nil
	record.ErrorMessage = ""
	record.UpdatedAt = now
	s.records[eventID] = record
	return record, nil
}

func (s *memoryStore) MarkFailed(_ context.Context, update FailureUpdate) (ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failMark != nil {
		return ProcessingRecord{}, s.failMark
	}
	record := s.records[update.EventID]
	if err := CheckTransition(update.EventID, record.Status, StatusFailed); err != nil {
		return ProcessingRecord{}, err
	}
	record.Status = StatusFailed
	record.ErrorMessage = update.Reason
	record.ClaimedAt = nil
	if update.NextEligibleAt != nil {
		next := *update.NextEligibleAt
		record.NextEligibleAt = &next
	}
	record.UpdatedAt = update.Now
	s.records[update.EventID] = record
	return record, nil
}

func (s *memoryStore) ReclaimStale(_ context.Context, claimedBefore time.Time, now time.Time, limit int) ([]ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProcessingRecord{}
	for id, record := range s.records {
		if len(out) >= limit {
			break
		}
		if record.Status != StatusProcessing || record.ClaimedAt == nil || !record.ClaimedAt.Before(claimedBefore) {
			continue
		}
		if err := CheckTransition(id, record.Status, StatusFailed); err != nil {
			return nil, err
		}
		record.Status = StatusFailed
		record.ClaimedAt = nil
		record.NextEligibleAt = &now
		record.ErrorMessage = LeaseExpiredReason
		record.UpdatedAt = now
		s.records[id] = record
		out = append(out, record)
	}
	return out, nil
}

func (s *memoryStore) GetRecord(_ context.Context, eventID string) (ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[eventID]
	if !ok {
		return ProcessingRecord{}, NewNotFoundError("processing record", eventID)
	}
	return record, nil
}

func (s *memoryStore) ListRecords(_ context.Context, filter LedgerFilter) ([]ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []ProcessingRecord{}
	for _, record := range s.records {
		if filter.Status != "" && record.Status != filter.Status {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func (s *memoryStore) Append(_ context.Context, entry AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAppend != nil {
		return s.failAppend
	}
	s.seq++
	entry.ID = s.seq
	s.audit = append(s.audit, entry)
	return nil
}

func (s *memoryStore) ListEntries(_ context.Context, filter AuditFilter) ([]AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AuditEntry{}
	for _, entry := range s.audit {
		if filter.EventID != "" && entry.EventID != filter.EventID {
			continue
		}
		if filter.Action != "" && entry.Action != filter.Action {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *memoryStore) actions(eventID string) []AuditAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []AuditAction{}
	for _, entry := range s.audit {
		if entry.EventID == eventID {
			out = append(out, entry.Action)
		}
	}
	return out
}

func (s *memoryStore) countAction(action AuditAction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, entry := range s.audit {
		if entry.Action == action {
			count++
		}
	}
	return count
}

// fakeClock is advanced manually by tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type scriptedExecutor struct {
	mu      sync.Mutex
	results []error
	calls   map[string]int
}

func (e *scriptedExecutor) Execute(_ context.Context, event Event) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.calls == nil {
		e.calls = map[string]int{}
	}
	e.calls[event.EventID]++
	if len(e.results) == 0 {
		return nil
	}
	result := e.results[0]
	if len(e.results) > 1 {
		e.results = e.results[1:]
	}
	return result
}

func (e *scriptedExecutor) callCount(eventID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[eventID]
}

type recordingHook struct {
	mu     sync.Mutex
	events []string
}

func (h *recordingHook) add(kind string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, kind)
}

func (h *recordingHook) OnStart(context.Context, AttemptEvent)   { h.add("start") }
func (h *recordingHook) OnSuccess(context.Context, AttemptEvent) { h.add("success") }
func (h *recordingHook) OnFailure(context.Context, AttemptEvent) { h.add("failure") }
func (h *recordingHook) OnRetry(context.Context, AttemptEvent)   { h.add("retry") }

type captureMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *captureMetrics) IncCounter(_ context.Context, name string, value int64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name] += value
}

func (m *captureMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *captureMetrics) count(name string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func testSubmission(eventID string, payload map[string]any) Submission {
	return Submission{
		EventID:    eventID,
		EventType:  "order.created",
		OccurredAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload:    payload,
	}
}
