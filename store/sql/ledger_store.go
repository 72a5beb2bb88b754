package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

const defaultLedgerListLimit = 50

// eligibleClause matches rows a worker may claim: pending rows, and failed
// rows whose backoff elapsed, both with attempts remaining.
const eligibleClause = "(status = ? OR (status = ? AND next_eligible_at IS NOT NULL AND next_eligible_at <= ?)) AND attempt_count < ?"

func eligibleArgs(now time.Time, maxAttempts int) []any {
	return []any{string(core.StatusPending), string(core.StatusFailed), now.UTC(), maxAttempts}
}

var errLeaseLost = errors.New("sqlstore: processing lease is no longer held")

// LedgerStore manages processing_state rows. On Postgres a claim takes a row
// lock with SKIP LOCKED before the guarded update; SQLite has no row locks,
// so the guarded update alone serves as the compare-and-set.
type LedgerStore struct {
	db       *bun.DB
	repo     repository.Repository[*processingStateRecord]
	rowLocks bool
}

func NewLedgerStore(db *bun.DB) (*LedgerStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processingStateRecord](db, processingStateHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processing state repository wiring: %w", err)
		}
	}
	return &LedgerStore{
		db:       db,
		repo:     repo,
		rowLocks: db.Dialect().Name() == dialect.PG,
	}, nil
}

func (s *LedgerStore) ListCandidates(ctx context.Context, now time.Time, maxAttempts int, limit int) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	var ids []string
	err := s.db.NewSelect().
		Model((*processingStateRecord)(nil)).
		Column("event_id").
		Where(eligibleClause, eligibleArgs(now, maxAttempts)...).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// Claim moves one eligible row to processing. It reports false when the row
// is locked by another worker or no longer eligible.
func (s *LedgerStore) Claim(ctx context.Context, eventID string, now time.Time, maxAttempts int) (core.ProcessingRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.ProcessingRecord{}, false, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	now = now.UTC()
	claimed := false
	record := &processingStateRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if s.rowLocks {
			var locked []string
			err := tx.NewSelect().
				Model((*processingStateRecord)(nil)).
				Column("event_id").
				Where("event_id = ?", eventID).
				Where(eligibleClause, eligibleArgs(now, maxAttempts)...).
				For("UPDATE SKIP LOCKED").
				Scan(ctx, &locked)
			if err != nil && !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			if len(locked) == 0 {
				return nil
			}
		}
		res, err := tx.NewUpdate().
			Model((*processingStateRecord)(nil)).
			Set("status = ?", string(core.StatusProcessing)).
			Set("attempt_count = attempt_count + 1").
			Set("last_attempt_at = ?", now).
			Set("claimed_at = ?", now).
			Set("updated_at = ?", now).
			Where("event_id = ?", eventID).
			Where(eligibleClause, eligibleArgs(now, maxAttempts)...).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected != 1 {
			return nil
		}
		claimed = true
		return selectRecordTx(ctx, tx, record, eventID)
	})
	if err != nil {
		return core.ProcessingRecord{}, false, err
	}
	if !claimed {
		return core.ProcessingRecord{}, false, nil
	}
	return record.toDomain(), true, nil
}

func (s *LedgerStore) MarkCompleted(ctx context.Context, eventID string, now time.Time) (core.ProcessingRecord, error) {
	if s == nil || s.db == nil {
		return core.ProcessingRecord{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	now = now.UTC()
	return s.finish(ctx, eventID, core.StatusCompleted, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.
			Set("status = ?", string(core.StatusCompleted)).
			Set("completed_at = ?", now).
			Set("claimed_at = NULL").
			Set("error_message = ?", "").
			Set("updated_at = ?", now)
	})
}

// MarkFailed records a failed attempt. A nil NextEligibleAt leaves the
// column untouched so an exhausted row keeps its last schedule.
func (s *LedgerStore) MarkFailed(ctx context.Context, update core.FailureUpdate) (core.ProcessingRecord, error) {
	if s == nil || s.db == nil {
		return core.ProcessingRecord{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	eventID := update.EventID
	now := update.Now.UTC()
	return s.finish(ctx, eventID, core.StatusFailed, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		q = q.
			Set("status = ?", string(core.StatusFailed)).
			Set("error_message = ?", update.Reason).
			Set("claimed_at = NULL").
			Set("updated_at = ?", now)
		if update.NextEligibleAt != nil {
			q = q.Set("next_eligible_at = ?", update.NextEligibleAt.UTC())
		}
		return q
	})
}

func (s *LedgerStore) finish(
	ctx context.Context,
	eventID string,
	target core.Status,
	apply func(*bun.UpdateQuery) *bun.UpdateQuery,
) (core.ProcessingRecord, error) {
	record := &processingStateRecord{}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewUpdate().Model((*processingStateRecord)(nil))
		res, err := apply(query).
			Where("event_id = ?", eventID).
			Where("status = ?", string(core.StatusProcessing)).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := res.RowsAffected(); affected != 1 {
			// The row left processing; report the move that was refused.
			if err := selectRecordTx(ctx, tx, record, eventID); err != nil {
				return err
			}
			if err := core.CheckTransition(eventID, core.Status(record.Status), target); err != nil {
				return err
			}
			return fmt.Errorf("%w: %s", errLeaseLost, eventID)
		}
		return selectRecordTx(ctx, tx, record, eventID)
	})
	if err != nil {
		return core.ProcessingRecord{}, err
	}
	return record.toDomain(), nil
}

// ReclaimStale fails processing rows claimed before claimedBefore and makes
// them eligible at now. Rows without attempts left stay ineligible.
func (s *LedgerStore) ReclaimStale(ctx context.Context, claimedBefore time.Time, now time.Time, limit int) ([]core.ProcessingRecord, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}
	now = now.UTC()
	var records []*processingStateRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := tx.NewSelect().
			Model((*processingStateRecord)(nil)).
			Column("event_id").
			Where("status = ?", string(core.StatusProcessing)).
			Where("claimed_at IS NOT NULL AND claimed_at < ?", claimedBefore.UTC()).
			Order("claimed_at ASC").
			Limit(limit)
		if s.rowLocks {
			query = query.For("UPDATE SKIP LOCKED")
		}
		var ids []string
		if err := query.Scan(ctx, &ids); err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		_, err := tx.NewUpdate().
			Model((*processingStateRecord)(nil)).
			Set("status = ?", string(core.StatusFailed)).
			Set("next_eligible_at = ?", now).
			Set("claimed_at = NULL").
			Set("error_message = ?", core.LeaseExpiredReason).
			Set("updated_at = ?", now).
			Where("event_id IN (?)", bun.In(ids)).
			Where("status = ?", string(core.StatusProcessing)).
			Exec(ctx)
		if err != nil {
			return err
		}
		return tx.NewSelect().
			Model(&records).
			Where("?TableAlias.event_id IN (?)", bun.In(ids)).
			Order("event_id ASC").
			Scan(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make([]core.ProcessingRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *LedgerStore) GetRecord(ctx context.Context, eventID string) (core.ProcessingRecord, error) {
	if s == nil || s.db == nil {
		return core.ProcessingRecord{}, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	record := &processingStateRecord{}
	if err := selectRecordTx(ctx, s.db, record, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProcessingRecord{}, core.NewNotFoundError("processing record", eventID)
		}
		return core.ProcessingRecord{}, err
	}
	return record.toDomain(), nil
}

// ListRecords returns rows most recently updated first.
func (s *LedgerStore) ListRecords(ctx context.Context, filter core.LedgerFilter) ([]core.ProcessingRecord, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: ledger store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultLedgerListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(limit, max(filter.Offset, 0)),
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	out := make([]core.ProcessingRecord, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func selectRecordTx(ctx context.Context, db bun.IDB, record *processingStateRecord, eventID string) error {
	return db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
}
