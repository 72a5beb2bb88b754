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
)

const defaultEventListLimit = 50

// EventStore persists the append-only events table. Inserts always carry the
// matching pending processing_state row in the same transaction.
type EventStore struct {
	db         *bun.DB
	repo       repository.Repository[*eventRecord]
	ledgerRepo repository.Repository[*processingStateRecord]
}

func NewEventStore(db *bun.DB) (*EventStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*eventRecord](db, eventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid event repository wiring: %w", err)
		}
	}
	ledgerRepo := repository.NewRepository[*processingStateRecord](db, processingStateHandlers())
	if validator, ok := ledgerRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processing state repository wiring: %w", err)
		}
	}
	return &EventStore{db: db, repo: repo, ledgerRepo: ledgerRepo}, nil
}

// InsertWithLedger looks the event up and, when absent, inserts it together
// with its pending processing row. An existing row, or a unique violation from
// a concurrent first delivery, yields a duplicate error for the caller to
// resolve by re-reading.
func (s *EventStore) InsertWithLedger(ctx context.Context, event core.Event) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: event store is not configured")
	}
	eventID := event.EventID
	if strings.TrimSpace(eventID) == "" {
		return core.NewValidationError("event_id", "event_id is required")
	}
	event.EventID = eventID
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = time.Now().UTC()
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*eventRecord)(nil)).
			Where("?TableAlias.event_id = ?", eventID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if exists {
			return core.NewDuplicateEventError(eventID, nil)
		}
		if _, err := s.repo.CreateTx(ctx, tx, newEventRecord(event)); err != nil {
			return err
		}
		_, err = s.ledgerRepo.CreateTx(ctx, tx, newPendingRecord(eventID, event.ReceivedAt))
		return err
	})
	if err == nil || core.IsDuplicateEvent(err) {
		return err
	}
	if isUniqueViolation(err) {
		return core.NewDuplicateEventError(eventID, err)
	}
	return err
}

func (s *EventStore) GetEvent(ctx context.Context, eventID string) (core.Event, error) {
	if s == nil || s.db == nil {
		return core.Event{}, fmt.Errorf("sqlstore: event store is not configured")
	}
	record := &eventRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Event{}, core.NewNotFoundError("event", eventID)
		}
		return core.Event{}, err
	}
	return record.toDomain(), nil
}

// ListEvents returns events newest first.
func (s *EventStore) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.Event, error) {
	if s == nil || s.repo == nil {
		return nil, fmt.Errorf("sqlstore: event store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("created_at DESC"),
		repository.SelectPaginate(limit, max(filter.Offset, 0)),
	}
	if eventType := strings.TrimSpace(filter.EventType); eventType != "" {
		selectors = append(selectors, repository.SelectBy("event_type", "=", eventType))
	}
	records, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, err
	}
	events := make([]core.Event, 0, len(records))
	for _, record := range records {
		events = append(events, record.toDomain())
	}
	return events, nil
}
