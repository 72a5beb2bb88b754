package sqlstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goliatone/go-webhook-spine/core"
	"github.com/uptrace/bun"
)

type eventRecord struct {
	bun.BaseModel `bun:"table:events,alias:ev"`

	ID                 string         `bun:"id,pk"`
	EventID            string         `bun:"event_id,notnull"`
	EventType          string         `bun:"event_type,notnull"`
	OccurredAt         time.Time      `bun:"occurred_at,notnull"`
	Payload            payloadDocument `bun:"payload,type:jsonb,notnull"`
	PayloadFingerprint string          `bun:"payload_fingerprint,notnull"`
	CreatedAt          time.Time       `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

// payloadDocument reads numbers back as json.Number so stored integers keep
// every digit.
type payloadDocument map[string]any

func (p payloadDocument) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(map[string]any(p))
	if err != nil {
		return nil, fmt.Errorf("sqlstore: encode payload: %w", err)
	}
	return string(raw), nil
}

func (p *payloadDocument) Scan(src any) error {
	var raw []byte
	switch typed := src.(type) {
	case nil:
		*p = payloadDocument{}
		return nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("sqlstore: unsupported payload column type %T", src)
	}
	decoded, err := core.DecodePayload(raw)
	if err != nil {
		return fmt.Errorf("sqlstore: decode payload: %w", err)
	}
	if decoded == nil {
		decoded = map[string]any{}
	}
	*p = payloadDocument(decoded)
	return nil
}

type processingStateRecord struct {
	bun.BaseModel `bun:"table:processing_state,alias:ps"`

	ID             string     `bun:"id,pk"`
	EventID        string     `bun:"event_id,notnull"`
	Status         string     `bun:"status,notnull"`
	AttemptCount   int        `bun:"attempt_count,notnull"`
	LastAttemptAt  *time.Time `bun:"last_attempt_at,nullzero"`
	NextEligibleAt *time.Time `bun:"next_eligible_at,nullzero"`
	ClaimedAt      *time.Time `bun:"claimed_at,nullzero"`
	CompletedAt    *time.Time `bun:"completed_at,nullzero"`
	ErrorMessage   string     `bun:"error_message,notnull"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// auditLogRecord ids are assigned by the database so entries order strictly
// by insertion.
type auditLogRecord struct {
	bun.BaseModel `bun:"table:audit_log,alias:al"`

	ID        int64     `bun:"id,pk,autoincrement"`
	Timestamp time.Time `bun:"timestamp,notnull"`
	EventID   string    `bun:"event_id,notnull"`
	Action    string    `bun:"action,notnull"`
	Detail    string    `bun:"detail,notnull"`
	Outcome   string    `bun:"outcome,notnull"`
}
