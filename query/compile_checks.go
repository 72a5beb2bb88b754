package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-spine/core"
)

var (
	_ gocmd.Querier[GetEventMessage, core.Event]                    = (*GetEventQuery)(nil)
	_ gocmd.Querier[ListEventsMessage, []core.Event]                = (*ListEventsQuery)(nil)
	_ gocmd.Querier[GetProcessingMessage, core.ProcessingRecord]    = (*GetProcessingQuery)(nil)
	_ gocmd.Querier[ListProcessingMessage, []core.ProcessingRecord] = (*ListProcessingQuery)(nil)
	_ gocmd.Querier[ListAuditMessage, []core.AuditEntry]            = (*ListAuditQuery)(nil)
)
