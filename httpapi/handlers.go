package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-spine/command"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/query"
)

type webhookRequest struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// occurredAtLayouts are tried in order. Layouts without an offset are read as
// UTC; fractional seconds are accepted by all of them.
var occurredAtLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05Z07:00", false},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02T15:04", true},
}

func parseOccurredAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, candidate := range occurredAtLayouts {
		var (
			parsed time.Time
			err    error
		)
		if candidate.naive {
			parsed, err = time.ParseInLocation(candidate.layout, raw, time.UTC)
		} else {
			parsed, err = time.Parse(candidate.layout, raw)
		}
		if err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, core.NewValidationError("occurred_at", "occurred_at must be an ISO-8601 timestamp")
}

// submit answers 200 for accepted, deduplicated and conflict alike; only
// malformed input and store failures produce an error status.
func (a *api) submit(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindWith(&req, exactNumberJSON{}); err != nil {
		a.logWarn(c.Request.Context(), "invalid webhook body", "error", err.Error())
		badRequest(c, "body", "body must be a JSON object with event_id, event_type, occurred_at and payload")
		return
	}
	occurredAt, err := parseOccurredAt(req.OccurredAt)
	if err != nil {
		abortWithError(c, err)
		return
	}
	msg := command.SubmitEventMessage{Submission: core.Submission{
		EventID:    req.EventID,
		EventType:  strings.TrimSpace(req.EventType),
		OccurredAt: occurredAt,
		Payload:    req.Payload,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}

	collector := gocmd.NewResult[core.SubmitResult]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := a.handlers.Submit.Execute(ctx, msg); err != nil {
		abortWithError(c, err)
		return
	}
	result, _ := collector.Load()
	c.JSON(http.StatusOK, result)
}

func (a *api) listEvents(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	msg := query.ListEventsMessage{Filter: core.EventFilter{
		EventType: strings.TrimSpace(c.Query("event_type")),
		Limit:     limit,
		Offset:    offset,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	events, err := a.handlers.ListEvents.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(events))
}

func (a *api) getEvent(c *gin.Context) {
	msg := query.GetEventMessage{EventID: c.Param("event_id")}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	event, err := a.handlers.GetEvent.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

func (a *api) listProcessing(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	filter := core.LedgerFilter{Limit: limit, Offset: offset}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status, err := core.ParseStatus(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}
		filter.Status = status
	}
	msg := query.ListProcessingMessage{Filter: filter}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	records, err := a.handlers.ListProcessing.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(records))
}

func (a *api) getProcessing(c *gin.Context) {
	msg := query.GetProcessingMessage{EventID: c.Param("event_id")}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	record, err := a.handlers.GetProcessing.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (a *api) listAudit(c *gin.Context) {
	limit, offset, ok := pagination(c)
	if !ok {
		return
	}
	msg := query.ListAuditMessage{Filter: core.AuditFilter{
		EventID: strings.TrimSpace(c.Query("event_id")),
		Action:  core.AuditAction(strings.TrimSpace(c.Query("action"))),
		Limit:   limit,
		Offset:  offset,
	}}
	if err := msg.Validate(); err != nil {
		abortWithError(c, err)
		return
	}
	entries, err := a.handlers.ListAudit.Query(c.Request.Context(), msg)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNil(entries))
}

// pagination reads limit and offset. A missing limit stays zero so each store
// applies its own default.
func pagination(c *gin.Context) (int, int, bool) {
	limit, ok := intQuery(c, "limit")
	if !ok {
		return 0, 0, false
	}
	offset, ok := intQuery(c, "offset")
	if !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

func intQuery(c *gin.Context, name string) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		badRequest(c, name, name+" must be an integer")
		return 0, false
	}
	return value, true
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
