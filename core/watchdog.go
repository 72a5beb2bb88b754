package core

import (
	"context"
	"fmt"
	"time"
)

// LeaseExpiredReason is the error_message written on reclaimed rows.
const LeaseExpiredReason = "lease expired"

// Watchdog returns processing rows whose claim outlived the lease timeout to
// the failed state, eligible immediately when attempts remain.
type Watchdog struct {
	ledger    Ledger
	audit     AuditTrail
	cfg       ProcessingConfig
	clock     Clock
	telemetry telemetry
}

func NewWatchdog(ledger Ledger, audit AuditTrail, cfg ProcessingConfig, options ...Option) (*Watchdog, error) {
	if ledger == nil || audit == nil {
		return nil, fmt.Errorf("core: watchdog requires ledger and audit trail")
	}
	cfg = withProcessingDefaults(cfg)
	if err := validateLease(cfg); err != nil {
		return nil, err
	}
	resolved := resolveOptions("spine.watchdog", options)
	return &Watchdog{
		ledger:    ledger,
		audit:     audit,
		cfg:       cfg,
		clock:     resolved.clock,
		telemetry: newTelemetry(resolved),
	}, nil
}

func (w *Watchdog) Sweep(ctx context.Context) (stats ReclaimStats, err error) {
	startedAt := time.Now()
	defer func() {
		if err != nil || stats.Reclaimed > 0 {
			w.telemetry.observeOperation(ctx, startedAt, "reclaim", err, map[string]any{
				"reclaimed": stats.Reclaimed,
				"exhausted": stats.Exhausted,
			})
		}
	}()

	now := w.clock()
	cutoff := now.Add(-w.cfg.LeaseTimeout)
	records, err := w.ledger.ReclaimStale(ctx, cutoff, now, w.cfg.BatchSize)
	if err != nil {
		return stats, NewStoreUnavailableError("reclaim stale", err)
	}
	for _, record := range records {
		stats.Reclaimed++
		w.append(ctx, record.EventID, AuditProcessingReclaimed,
			fmt.Sprintf("Lease expired after %s on attempt %d", w.cfg.LeaseTimeout, record.AttemptCount), OutcomeFailure)
		if record.AttemptCount >= w.cfg.MaxAttempts {
			stats.Exhausted++
			w.append(ctx, record.EventID, AuditProcessingFailedPermanently,
				fmt.Sprintf("Failed after %d attempts", record.AttemptCount), OutcomeFailure)
		}
	}
	return stats, nil
}

func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
			w.telemetry.logError(ctx, "watchdog sweep failed", map[string]any{"error": err.Error()})
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *Watchdog) append(ctx context.Context, eventID string, action AuditAction, detail string, outcome AuditOutcome) {
	err := w.audit.Append(ctx, AuditEntry{
		Timestamp: w.clock(),
		EventID:   eventID,
		Action:    action,
		Detail:    detail,
		Outcome:   outcome,
	})
	if err != nil {
		w.telemetry.logError(ctx, "audit append failed", map[string]any{
			"event_id": eventID,
			"action":   string(action),
			"error":    err.Error(),
		})
	}
}
