package spine

import "github.com/goliatone/go-webhook-spine/core"

type Config = core.Config
type ProcessingConfig = core.ProcessingConfig

type Option = core.Option

type Event = core.Event
type Submission = core.Submission
type SubmitResult = core.SubmitResult
type ProcessingRecord = core.ProcessingRecord
type AuditEntry = core.AuditEntry
type Status = core.Status

type Gate = core.Gate
type Processor = core.Processor
type Scheduler = core.Scheduler
type Watchdog = core.Watchdog
type Executor = core.Executor
type ExecutorFunc = core.ExecutorFunc

var (
	WithLogger          = core.WithLogger
	WithLoggerProvider  = core.WithLoggerProvider
	WithMetricsRecorder = core.WithMetricsRecorder
	WithClock           = core.WithClock
	WithNotifier        = core.WithNotifier
	WithWakeSource      = core.WithWakeSource
	WithProcessingHook  = core.WithProcessingHook
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}

func NewGate(events core.EventStore, audit core.AuditTrail, opts ...Option) (*Gate, error) {
	return core.NewGate(events, audit, opts...)
}

func NewProcessor(
	events core.EventReader,
	ledger core.Ledger,
	audit core.AuditTrail,
	executor Executor,
	cfg ProcessingConfig,
	opts ...Option,
) (*Processor, error) {
	return core.NewProcessor(events, ledger, audit, executor, cfg, opts...)
}
