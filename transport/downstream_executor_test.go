package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-webhook-spine/core"
)

func TestDownstreamExecutor_PostsEventIDAndAcceptsOK(t *testing.T) {
	var received map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/third_party/mock" {
			t.Errorf("expected default path, got %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()

	executor, err := NewDownstreamExecutor(core.DownstreamConfig{BaseURL: server.URL + "/"})
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	if err := executor.Execute(context.Background(), core.Event{EventID: "E1"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if received["event_id"] != "E1" {
		t.Fatalf("expected event_id in body, got %v", received)
	}
}

func TestDownstreamExecutor_NonOKStatusIsFailure(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusInternalServerError, http.StatusServiceUnavailable} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		executor, err := NewDownstreamExecutor(core.DownstreamConfig{BaseURL: server.URL, Path: "hook"})
		if err != nil {
			t.Fatalf("new executor: %v", err)
		}
		err = executor.Execute(context.Background(), core.Event{EventID: "E1"})
		server.Close()
		if err == nil {
			t.Fatalf("status %d: expected failure", status)
		}
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("status %d: expected go-errors envelope, got %T", status, err)
		}
		if rich.TextCode != core.ErrorExecutionFailed {
			t.Fatalf("status %d: expected %q, got %q", status, core.ErrorExecutionFailed, rich.TextCode)
		}
		if !strings.Contains(rich.Message, "HTTP") {
			t.Fatalf("status %d: expected status in message, got %q", status, rich.Message)
		}
		if rich.Metadata["stage"] != "status" || rich.Metadata["event_id"] != "E1" || rich.Metadata["endpoint"] != executor.Endpoint() {
			t.Fatalf("status %d: unexpected metadata %v", status, rich.Metadata)
		}
	}
}

func TestDownstreamExecutor_TimeoutIsFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	executor, err := NewDownstreamExecutor(core.DownstreamConfig{BaseURL: server.URL},
		WithRequestTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	if err := executor.Execute(context.Background(), core.Event{EventID: "E1"}); err == nil {
		t.Fatalf("expected timeout failure")
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestDownstreamExecutor_ConnectionErrorIsExternal(t *testing.T) {
	executor, err := NewDownstreamExecutor(core.DownstreamConfig{BaseURL: "http://downstream.invalid"},
		WithHTTPDoer(failingDoer{}))
	if err != nil {
		t.Fatalf("new executor: %v", err)
	}
	if executor.Endpoint() != "http://downstream.invalid/third_party/mock" {
		t.Fatalf("unexpected endpoint %q", executor.Endpoint())
	}
	err = executor.Execute(context.Background(), core.Event{EventID: "E1"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external go-errors envelope, got %v", err)
	}
}

func TestNewDownstreamExecutor_RequiresBaseURL(t *testing.T) {
	_, err := NewDownstreamExecutor(core.DownstreamConfig{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorInternal || rich.Metadata["stage"] != "configure" {
		t.Fatalf("expected configure error, got %v", err)
	}
}

func TestDownstreamError_StageDecidesEnvelope(t *testing.T) {
	cases := []struct {
		stage    stage
		status   int
		textCode string
	}{
		{stage: stageConfigure, status: http.StatusInternalServerError, textCode: core.ErrorInternal},
		{stage: stageEncode, status: http.StatusInternalServerError, textCode: core.ErrorInternal},
		{stage: stageBuild, status: http.StatusBadRequest, textCode: core.ErrorBadInput},
		{stage: stageSend, status: http.StatusBadGateway, textCode: core.ErrorExecutionFailed},
		{stage: stageRead, status: http.StatusBadGateway, textCode: core.ErrorExecutionFailed},
		{stage: stageStatus, status: http.StatusBadGateway, textCode: core.ErrorExecutionFailed},
	}
	for _, tc := range cases {
		err := downstreamError(tc.stage, errors.New("cause"), "step failed", map[string]any{"event_id": "E1"})
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("%s: expected go-errors envelope, got %T", tc.stage, err)
		}
		if rich.Code != tc.status || rich.TextCode != tc.textCode {
			t.Fatalf("%s: expected %d/%q, got %d/%q", tc.stage, tc.status, tc.textCode, rich.Code, rich.TextCode)
		}
		if rich.Metadata["stage"] != string(tc.stage) || rich.Metadata["event_id"] != "E1" {
			t.Fatalf("%s: unexpected metadata %v", tc.stage, rich.Metadata)
		}
	}
}

func TestRESTClient_EnforcesBodyLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer server.Close()

	client := NewRESTClient(server.Client())
	client.MaxResponseBodyBytes = 16
	if _, err := client.Do(context.Background(), Request{URL: server.URL}); err == nil {
		t.Fatalf("expected body limit error")
	}
	client.MaxResponseBodyBytes = 128
	res, err := client.Do(context.Background(), Request{URL: server.URL})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusOK || len(res.Body) != 64 {
		t.Fatalf("unexpected response %d/%d", res.StatusCode, len(res.Body))
	}
}

func TestRESTClient_RejectsEmptyURL(t *testing.T) {
	_, err := NewRESTClient(nil).Do(context.Background(), Request{})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) || rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected bad input error, got %v", err)
	}
}
