package httpapi

import (
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-webhook-spine/core"
	glog "github.com/goliatone/go-logger/glog"
)

const MockServiceName = "Mock Third-Party API"

type MockOption func(*mockAPI)

// WithRandom replaces the failure draw. It must return values in [0,1).
func WithRandom(draw func() float64) MockOption {
	return func(m *mockAPI) {
		if draw != nil {
			m.draw = draw
		}
	}
}

func WithMockLogger(logger core.Logger) MockOption {
	return func(m *mockAPI) {
		if logger != nil {
			m.logger = logger
		}
	}
}

type mockAPI struct {
	failureRate float64
	draw        func() float64
	logger      core.Logger
}

// NewMockRouter serves a downstream stand-in that fails with HTTP 500 at the
// configured rate.
func NewMockRouter(cfg core.MockAPIConfig, options ...MockOption) *gin.Engine {
	m := &mockAPI{
		failureRate: cfg.FailureRate,
		draw:        rand.Float64,
		logger:      glog.Nop(),
	}
	for _, option := range options {
		if option != nil {
			option(m)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(m.logger))
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":   MockServiceName,
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		})
	})
	router.POST("/third_party/mock", m.handle)
	return router
}

func (m *mockAPI) handle(c *gin.Context) {
	var body struct {
		EventID string `json:"event_id"`
	}
	_ = c.ShouldBindJSON(&body)
	eventID := strings.TrimSpace(body.EventID)
	if eventID == "" {
		eventID = "unknown"
	}
	logger := m.logger.WithContext(c.Request.Context())
	if m.draw() < m.failureRate {
		logger.Warn("mock api failing", "event_id", eventID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Simulated failure"})
		return
	}
	logger.Info("mock api success", "event_id", eventID)
	c.JSON(http.StatusOK, gin.H{
		"status":   "success",
		"event_id": eventID,
		"message":  "Event processed successfully",
	})
}
