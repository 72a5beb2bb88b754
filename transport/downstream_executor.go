package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-webhook-spine/core"
)

const (
	DefaultDownstreamPath    = "/third_party/mock"
	DefaultDownstreamTimeout = 10 * time.Second
)

// DownstreamExecutor delivers an event by POSTing {"event_id": ...} to the
// configured endpoint. Only HTTP 200 counts as success; every other status,
// a timeout, or a connection error is a transient failure.
type DownstreamExecutor struct {
	client   *RESTClient
	endpoint string
	timeout  time.Duration
}

type DownstreamOption func(*DownstreamExecutor)

func WithHTTPDoer(doer HTTPDoer) DownstreamOption {
	return func(e *DownstreamExecutor) {
		if doer != nil {
			e.client = NewRESTClient(doer)
		}
	}
}

func WithRequestTimeout(timeout time.Duration) DownstreamOption {
	return func(e *DownstreamExecutor) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

func NewDownstreamExecutor(cfg core.DownstreamConfig, options ...DownstreamOption) (*DownstreamExecutor, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, downstreamError(stageConfigure, nil, "transport: downstream base url is required", nil)
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = DefaultDownstreamPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	executor := &DownstreamExecutor{
		client:   NewRESTClient(nil),
		endpoint: base + path,
		timeout:  DefaultDownstreamTimeout,
	}
	for _, option := range options {
		if option != nil {
			option(executor)
		}
	}
	executor.client.DefaultHeaders["Content-Type"] = "application/json"
	return executor, nil
}

func (e *DownstreamExecutor) Endpoint() string { return e.endpoint }

func (e *DownstreamExecutor) Execute(ctx context.Context, event core.Event) error {
	body, err := json.Marshal(map[string]string{"event_id": event.EventID})
	if err != nil {
		return downstreamError(stageEncode, err, "transport: encode downstream body",
			map[string]any{"event_id": event.EventID})
	}
	res, err := e.client.Do(ctx, Request{
		Method:  http.MethodPost,
		URL:     e.endpoint,
		Body:    body,
		Timeout: e.timeout,
	})
	if err != nil {
		return err
	}
	if res.StatusCode != http.StatusOK {
		return downstreamError(stageStatus, nil,
			fmt.Sprintf("HTTP %d", res.StatusCode),
			map[string]any{
				"event_id":    event.EventID,
				"status_code": res.StatusCode,
				"endpoint":    e.endpoint,
			},
		)
	}
	return nil
}

var _ core.Executor = (*DownstreamExecutor)(nil)
