package core

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLoggerProvider struct {
	logger Logger
}

func (p stubLoggerProvider) GetLogger(string) Logger { return p.logger }

func TestGateObservability_AcceptEmitsCounterAndLog(t *testing.T) {
	store := newMemoryStore()
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	gate := newTestGate(t, store,
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
	)

	if _, err := gate.Submit(context.Background(), testSubmission("E1", map[string]any{"a": 1})); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !hasCounter(metrics.counters, "spine.ingest.total", "success") {
		t.Fatalf("expected spine.ingest.total success counter, got %+v", metrics.counters)
	}
	if !hasHistogram(metrics.histograms, "spine.ingest.duration_ms", "success") {
		t.Fatalf("expected spine.ingest.duration_ms histogram")
	}
	entry, ok := findLog(logger.snapshot(), "info", "ingest succeeded")
	if !ok {
		t.Fatalf("expected ingest succeeded log, got %+v", logger.snapshot())
	}
	if entry.fields["event_id"] != "E1" || entry.fields["operation"] != "ingest" {
		t.Fatalf("expected event_id and operation fields, got %v", entry.fields)
	}
	if _, ok := entry.fields["duration_ms"]; !ok {
		t.Fatalf("expected duration_ms field, got %v", entry.fields)
	}
}

func TestGateObservability_StoreFailureLogsError(t *testing.T) {
	store := newMemoryStore()
	store.failInsert = errors.New("database is closed")
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	gate := newTestGate(t, store,
		WithMetricsRecorder(metrics),
		WithLogger(logger),
	)

	if _, err := gate.Submit(context.Background(), testSubmission("E1", map[string]any{"a": 1})); err == nil {
		t.Fatalf("expected store failure")
	}
	if !hasCounter(metrics.counters, "spine.ingest.total", "failure") {
		t.Fatalf("expected failure counter, got %+v", metrics.counters)
	}
	entry, ok := findLog(logger.snapshot(), "error", "ingest failed")
	if !ok {
		t.Fatalf("expected ingest failed log")
	}
	if entry.fields["error"] == nil {
		t.Fatalf("expected error field, got %v", entry.fields)
	}
}

func TestProcessorObservability_TagsOutcome(t *testing.T) {
	store := newMemoryStore()
	clock := newFakeClock()
	seedEvent(t, store, "E1")
	metrics := &captureMetricsRecorder{}
	processor := newTestProcessor(t, store, &scriptedExecutor{results: []error{errors.New("HTTP 500")}}, clock,
		WithMetricsRecorder(metrics))

	lease, ok, err := processor.ClaimNext(context.Background(), 10)
	if err != nil || !ok {
		t.Fatalf("expected claim, ok=%v err=%v", ok, err)
	}
	if _, err := processor.Execute(context.Background(), lease); err != nil {
		t.Fatalf("execute: %v", err)
	}
	found := false
	for _, counter := range metrics.counters {
		if counter.name == "spine.process.total" && counter.tags["result"] == string(ExecutionRetryScheduled) {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected process counter tagged with retry result, got %+v", metrics.counters)
	}
}

func TestFlattenFieldsIsSorted(t *testing.T) {
	args := flattenFields(map[string]any{"b": 2, "a": 1, "c": 3})
	if len(args) != 6 || args[0] != "a" || args[2] != "b" || args[4] != "c" {
		t.Fatalf("expected sorted key/value args, got %v", args)
	}
	if normalizeOperation(" Poll-Cycle ") != "poll_cycle" {
		t.Fatalf("unexpected normalized operation %q", normalizeOperation(" Poll-Cycle "))
	}
}

func hasCounter(counters []capturedCounter, name string, status string) bool {
	for _, counter := range counters {
		if counter.name == name && counter.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(histograms []capturedHistogram, name string, status string) bool {
	for _, histogram := range histograms {
		if histogram.name == name && histogram.tags["status"] == status {
			return true
		}
	}
	return false
}

func findLog(logs []capturedLog, level string, msg string) (capturedLog, bool) {
	for _, entry := range logs {
		if entry.level == level && entry.msg == msg {
			return entry, true
		}
	}
	return capturedLog{}, false
}
