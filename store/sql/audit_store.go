package sqlstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-webhook-spine/core"
	"github.com/uptrace/bun"
)

const defaultAuditListLimit = 100

// AuditStore appends to audit_log. Rows are never updated or deleted.
type AuditStore struct {
	db *bun.DB
}

func NewAuditStore(db *bun.DB) (*AuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &AuditStore{db: db}, nil
}

func (s *AuditStore) Append(ctx context.Context, entry core.AuditEntry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: audit store is not configured")
	}
	if strings.TrimSpace(entry.EventID) == "" {
		return fmt.Errorf("sqlstore: audit entry event id is required")
	}
	if strings.TrimSpace(string(entry.Action)) == "" {
		return fmt.Errorf("sqlstore: audit entry action is required")
	}
	_, err := s.db.NewInsert().Model(newAuditLogRecord(entry)).Exec(ctx)
	return err
}

// ListEntries returns entries newest first unless filter.Ascending is set.
func (s *AuditStore) ListEntries(ctx context.Context, filter core.AuditFilter) ([]core.AuditEntry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: audit store is not configured")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultAuditListLimit
	}
	order := "id DESC"
	if filter.Ascending {
		order = "id ASC"
	}
	var records []*auditLogRecord
	query := s.db.NewSelect().
		Model(&records).
		Order(order).
		Limit(limit).
		Offset(max(filter.Offset, 0))
	if strings.TrimSpace(filter.EventID) != "" {
		query = query.Where("?TableAlias.event_id = ?", filter.EventID)
	}
	if action := strings.TrimSpace(string(filter.Action)); action != "" {
		query = query.Where("?TableAlias.action = ?", action)
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}
	entries := make([]core.AuditEntry, 0, len(records))
	for _, record := range records {
		entries = append(entries, record.toDomain())
	}
	return entries, nil
}
