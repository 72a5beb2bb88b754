package query

import (
	"strings"

	"github.com/goliatone/go-webhook-spine/core"
)

const (
	TypeGetEvent       = "spine.query.event.get"
	TypeListEvents     = "spine.query.event.list"
	TypeGetProcessing  = "spine.query.processing.get"
	TypeListProcessing = "spine.query.processing.list"
	TypeListAudit      = "spine.query.audit.list"

	MaxListLimit = 500
)

type GetEventMessage struct {
	EventID string
}

func (GetEventMessage) Type() string { return TypeGetEvent }

func (m GetEventMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event_id is required")
	}
	return nil
}

type ListEventsMessage struct {
	Filter core.EventFilter
}

func (ListEventsMessage) Type() string { return TypeListEvents }

func (m ListEventsMessage) Validate() error {
	return validatePage(m.Filter.Limit, m.Filter.Offset)
}

type GetProcessingMessage struct {
	EventID string
}

func (GetProcessingMessage) Type() string { return TypeGetProcessing }

func (m GetProcessingMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event_id is required")
	}
	return nil
}

type ListProcessingMessage struct {
	Filter core.LedgerFilter
}

func (ListProcessingMessage) Type() string { return TypeListProcessing }

func (m ListProcessingMessage) Validate() error {
	if m.Filter.Status != "" && !m.Filter.Status.Valid() {
		return queryValidationError("status", "status must be one of pending, processing, completed, failed")
	}
	return validatePage(m.Filter.Limit, m.Filter.Offset)
}

type ListAuditMessage struct {
	Filter core.AuditFilter
}

func (ListAuditMessage) Type() string { return TypeListAudit }

func (m ListAuditMessage) Validate() error {
	return validatePage(m.Filter.Limit, m.Filter.Offset)
}

func validatePage(limit int, offset int) error {
	if limit < 0 || limit > MaxListLimit {
		return queryValidationError("limit", "limit must be between 0 and 500")
	}
	if offset < 0 {
		return queryValidationError("offset", "offset must not be negative")
	}
	return nil
}
