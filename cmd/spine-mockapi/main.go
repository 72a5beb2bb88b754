// Command spine-mockapi stands in for the downstream API and fails a
// configurable share of calls.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goliatone/go-webhook-spine/adapters/gologger"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/httpapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := core.LoadConfig(ctx, nil, core.Config{})
	logger := gologger.New(gologger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		os.Exit(1)
	}
	gin.SetMode(gin.ReleaseMode)

	server := &http.Server{
		Addr:              cfg.MockAPI.Addr,
		Handler:           httpapi.NewMockRouter(cfg.MockAPI, httpapi.WithMockLogger(logger.GetLogger("spine.mockapi"))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Info("mock api listening", "addr", cfg.MockAPI.Addr, "failure_rate", cfg.MockAPI.FailureRate)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("mock api failed", "error", err.Error())
		os.Exit(1)
	}
}
