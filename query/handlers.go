package query

import (
	"context"

	"github.com/goliatone/go-webhook-spine/core"
)

type GetEventQuery struct {
	reader core.EventReader
}

func NewGetEventQuery(reader core.EventReader) *GetEventQuery {
	return &GetEventQuery{reader: reader}
}

func (q *GetEventQuery) Query(ctx context.Context, msg GetEventMessage) (core.Event, error) {
	if q == nil || q.reader == nil {
		return core.Event{}, queryDependencyError("query: event reader is required")
	}
	return q.reader.GetEvent(ctx, msg.EventID)
}

type ListEventsQuery struct {
	reader core.EventReader
}

func NewListEventsQuery(reader core.EventReader) *ListEventsQuery {
	return &ListEventsQuery{reader: reader}
}

func (q *ListEventsQuery) Query(ctx context.Context, msg ListEventsMessage) ([]core.Event, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: event reader is required")
	}
	return q.reader.ListEvents(ctx, msg.Filter)
}

type GetProcessingQuery struct {
	reader core.LedgerReader
}

func NewGetProcessingQuery(reader core.LedgerReader) *GetProcessingQuery {
	return &GetProcessingQuery{reader: reader}
}

func (q *GetProcessingQuery) Query(ctx context.Context, msg GetProcessingMessage) (core.ProcessingRecord, error) {
	if q == nil || q.reader == nil {
		return core.ProcessingRecord{}, queryDependencyError("query: ledger reader is required")
	}
	return q.reader.GetRecord(ctx, msg.EventID)
}

type ListProcessingQuery struct {
	reader core.LedgerReader
}

func NewListProcessingQuery(reader core.LedgerReader) *ListProcessingQuery {
	return &ListProcessingQuery{reader: reader}
}

func (q *ListProcessingQuery) Query(ctx context.Context, msg ListProcessingMessage) ([]core.ProcessingRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: ledger reader is required")
	}
	return q.reader.ListRecords(ctx, msg.Filter)
}

type ListAuditQuery struct {
	reader core.AuditReader
}

func NewListAuditQuery(reader core.AuditReader) *ListAuditQuery {
	return &ListAuditQuery{reader: reader}
}

func (q *ListAuditQuery) Query(ctx context.Context, msg ListAuditMessage) ([]core.AuditEntry, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: audit reader is required")
	}
	return q.reader.ListEntries(ctx, msg.Filter)
}
