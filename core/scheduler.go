package core

import (
	"context"
	"fmt"
	"time"
)

// Scheduler is a poll loop over a LeaseSource. A WakeSource, when configured,
// shortens the wait between ticks but never replaces the ticker.
type Scheduler struct {
	source    LeaseSource
	handler   LeaseHandler
	interval  time.Duration
	batchSize int
	wake      WakeSource
	telemetry telemetry
}

func NewScheduler(source LeaseSource, handler LeaseHandler, cfg ProcessingConfig, options ...Option) (*Scheduler, error) {
	if source == nil || handler == nil {
		return nil, fmt.Errorf("core: scheduler requires a lease source and handler")
	}
	cfg = withProcessingDefaults(cfg)
	resolved := resolveOptions("spine.scheduler", options)
	return &Scheduler{
		source:    source,
		handler:   handler,
		interval:  cfg.PollInterval,
		batchSize: cfg.BatchSize,
		wake:      resolved.wakeSource,
		telemetry: newTelemetry(resolved),
	}, nil
}

// RunOnce processes up to one batch, claiming and executing one lease at a
// time. A store failure aborts the cycle and is returned.
func (s *Scheduler) RunOnce(ctx context.Context) (BatchStats, error) {
	return drainBatch(ctx, s.source, s.handler, s.batchSize)
}

func drainBatch(ctx context.Context, source LeaseSource, handler LeaseHandler, batchSize int) (BatchStats, error) {
	var stats BatchStats
	for stats.Leased < batchSize {
		if ctx.Err() != nil {
			return stats, nil
		}
		leases, err := source.LeaseNext(ctx, 1)
		if err != nil {
			return stats, err
		}
		if len(leases) == 0 {
			return stats, nil
		}
		for _, lease := range leases {
			stats.Leased++
			outcome, err := handler.Execute(ctx, lease)
			if err != nil {
				return stats, err
			}
			switch outcome {
			case ExecutionSucceeded:
				stats.Succeeded++
			case ExecutionRetryScheduled:
				stats.Failed++
			case ExecutionExhausted:
				stats.Failed++
				stats.Exhausted++
			}
		}
	}
	return stats, nil
}

// Run blocks until ctx is cancelled. Errors from a cycle are logged and the
// next cycle retries from scratch.
func (s *Scheduler) Run(ctx context.Context) error {
	var wakeups <-chan struct{}
	if s.wake != nil {
		ch, err := s.wake.Wakeups(ctx)
		if err != nil {
			s.telemetry.logWarn(ctx, "wake source unavailable, polling only", map[string]any{"error": err.Error()})
		} else {
			wakeups = ch
		}
	}

	s.telemetry.logInfo(ctx, "scheduler started", map[string]any{
		"poll_interval": s.interval.String(),
		"batch_size":    s.batchSize,
		"push_wake":     wakeups != nil,
	})
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		full := s.cycle(ctx)
		if ctx.Err() != nil {
			s.telemetry.logInfo(context.WithoutCancel(ctx), "scheduler stopped", nil)
			return nil
		}
		if full {
			continue
		}
		select {
		case <-ctx.Done():
			s.telemetry.logInfo(context.WithoutCancel(ctx), "scheduler stopped", nil)
			return nil
		case <-ticker.C:
		case _, ok := <-wakeups:
			if !ok {
				wakeups = nil
			}
		}
	}
}

// cycle reports whether the batch filled up, in which case more work is
// likely waiting and the loop skips the sleep.
func (s *Scheduler) cycle(ctx context.Context) bool {
	startedAt := time.Now()
	stats, err := s.RunOnce(ctx)
	if err != nil {
		s.telemetry.observeOperation(ctx, startedAt, "poll_cycle", err, statsFields(stats))
		return false
	}
	if stats.Leased > 0 {
		s.telemetry.observeOperation(ctx, startedAt, "poll_cycle", nil, statsFields(stats))
	}
	return stats.Leased >= s.batchSize
}

func statsFields(stats BatchStats) map[string]any {
	return map[string]any{
		"leased":    stats.Leased,
		"succeeded": stats.Succeeded,
		"failed":    stats.Failed,
		"exhausted": stats.Exhausted,
	}
}
