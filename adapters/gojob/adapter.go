package gojob

import (
	"context"
	"strings"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
	"github.com/goliatone/go-webhook-spine/core"
)

const JobIDProcessEvent = "spine.process.event"

// ToExecutionMessage describes a processing attempt as a go-job message. The
// event id doubles as the idempotency key, matching the ledger's one row per
// event.
func ToExecutionMessage(event core.AttemptEvent) *job.ExecutionMessage {
	params := map[string]any{"event_id": event.EventID}
	if eventType := strings.TrimSpace(event.EventType); eventType != "" {
		params["event_type"] = eventType
	}
	return &job.ExecutionMessage{
		JobID:          JobIDProcessEvent,
		ScriptPath:     JobIDProcessEvent,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(event.EventID),
	}
}

func ToWorkerEvent(event core.AttemptEvent) worker.Event {
	return worker.Event{
		Message:   ToExecutionMessage(event),
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
}

// ProcessingHook forwards processor attempt callbacks to a go-job worker hook.
type ProcessingHook struct {
	hook worker.Hook
}

func NewProcessingHook(hook worker.Hook) *ProcessingHook {
	return &ProcessingHook{hook: hook}
}

func (h *ProcessingHook) OnStart(ctx context.Context, event core.AttemptEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnStart(ctx, ToWorkerEvent(event))
}

func (h *ProcessingHook) OnSuccess(ctx context.Context, event core.AttemptEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnSuccess(ctx, ToWorkerEvent(event))
}

func (h *ProcessingHook) OnFailure(ctx context.Context, event core.AttemptEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnFailure(ctx, ToWorkerEvent(event))
}

func (h *ProcessingHook) OnRetry(ctx context.Context, event core.AttemptEvent) {
	if h == nil || h.hook == nil {
		return
	}
	h.hook.OnRetry(ctx, ToWorkerEvent(event))
}

// LoggingHook is a worker.Hook that writes each attempt to a go-job logger.
type LoggingHook struct {
	logger job.Logger
}

func NewLoggingHook(logger job.Logger) *LoggingHook {
	return &LoggingHook{logger: logger}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.log("attempt started", event)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.log("attempt succeeded", event, "duration_ms", event.Duration.Milliseconds())
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	if h == nil || h.logger == nil {
		return
	}
	args := append(eventArgs(event), "duration_ms", event.Duration.Milliseconds())
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	h.logger.Error("attempt failed", args...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.log("retry scheduled", event, "delay", event.Delay.String())
}

func (h *LoggingHook) log(message string, event worker.Event, extra ...any) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Info(message, append(eventArgs(event), extra...)...)
}

func eventArgs(event worker.Event) []any {
	args := []any{"attempt", event.Attempt}
	if event.Message != nil {
		args = append(args, "job_id", event.Message.JobID)
		if eventID, ok := event.Message.Parameters["event_id"]; ok {
			args = append(args, "event_id", eventID)
		}
	}
	return args
}

var (
	_ core.ProcessingHook = (*ProcessingHook)(nil)
	_ worker.Hook         = (*LoggingHook)(nil)
)
