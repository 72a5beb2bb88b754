package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-spine/command"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/query"
	glog "github.com/goliatone/go-logger/glog"
)

const ServiceName = "Webhook Postgres Connector Spine v1"

// Handlers are the command and query endpoints the API routes into. Submit and
// every query are required; ProcessBatch is optional and disables
// POST /process/once when nil.
type Handlers struct {
	Submit         gocmd.Commander[command.SubmitEventMessage]
	ProcessBatch   gocmd.Commander[command.ProcessBatchMessage]
	GetEvent       gocmd.Querier[query.GetEventMessage, core.Event]
	ListEvents     gocmd.Querier[query.ListEventsMessage, []core.Event]
	GetProcessing  gocmd.Querier[query.GetProcessingMessage, core.ProcessingRecord]
	ListProcessing gocmd.Querier[query.ListProcessingMessage, []core.ProcessingRecord]
	ListAudit      gocmd.Querier[query.ListAuditMessage, []core.AuditEntry]
}

func (h Handlers) validate() error {
	switch {
	case h.Submit == nil:
		return fmt.Errorf("httpapi: submit command is required")
	case h.GetEvent == nil, h.ListEvents == nil:
		return fmt.Errorf("httpapi: event queries are required")
	case h.GetProcessing == nil, h.ListProcessing == nil:
		return fmt.Errorf("httpapi: processing queries are required")
	case h.ListAudit == nil:
		return fmt.Errorf("httpapi: audit query is required")
	}
	return nil
}

type Option func(*api)

func WithLogger(logger core.Logger) Option {
	return func(a *api) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithClock(clock core.Clock) Option {
	return func(a *api) {
		if clock != nil {
			a.clock = clock
		}
	}
}

type api struct {
	handlers Handlers
	logger   core.Logger
	clock    core.Clock
}

// NewRouter builds the ingestion, read and health routes on a new gin engine.
func NewRouter(handlers Handlers, options ...Option) (*gin.Engine, error) {
	if err := handlers.validate(); err != nil {
		return nil, err
	}
	a := &api{
		handlers: handlers,
		logger:   glog.Nop(),
		clock:    func() time.Time { return time.Now().UTC() },
	}
	for _, option := range options {
		if option != nil {
			option(a)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.logger))
	router.GET("/", a.health)
	router.POST("/webhook", a.submit)
	if handlers.ProcessBatch != nil {
		router.POST("/process/once", a.processOnce)
	}

	read := router.Group("/api")
	read.GET("/events", a.listEvents)
	read.GET("/events/:event_id", a.getEvent)
	read.GET("/processing", a.listProcessing)
	read.GET("/processing/:event_id", a.getProcessing)
	read.GET("/audit", a.listAudit)
	return router, nil
}

func (a *api) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":   ServiceName,
		"status":    "healthy",
		"timestamp": a.clock().Format(time.RFC3339Nano),
	})
}

func (a *api) processOnce(c *gin.Context) {
	collector := gocmd.NewResult[core.BatchStats]()
	ctx := gocmd.ContextWithResult(c.Request.Context(), collector)
	if err := a.handlers.ProcessBatch.Execute(ctx, command.ProcessBatchMessage{}); err != nil {
		abortWithError(c, err)
		return
	}
	stats, _ := collector.Load()
	c.JSON(http.StatusOK, stats)
}

func (a *api) logWarn(ctx context.Context, message string, args ...any) {
	a.logger.WithContext(ctx).Warn(message, args...)
}

func requestLogger(logger core.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startedAt := time.Now()
		c.Next()
		logger.WithContext(c.Request.Context()).Debug("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
		)
	}
}
