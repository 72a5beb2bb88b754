// Command spine-api serves webhook ingestion, the read API and the manual
// processing trigger.
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
	spine "github.com/goliatone/go-webhook-spine"
	"github.com/goliatone/go-webhook-spine/adapters/gologger"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/httpapi"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := core.LoadConfig(ctx, nil, core.Config{})
	logger := gologger.New(gologger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		logger.Error("load config failed", "error", err.Error())
		return err
	}
	gin.SetMode(gin.ReleaseMode)

	rt, err := spine.NewRuntime(ctx, cfg,
		spine.WithComponentOptions(core.WithLoggerProvider(logger)),
	)
	if err != nil {
		logger.Error("runtime setup failed", "error", err.Error())
		return err
	}
	defer rt.Close()

	router, err := httpapi.NewRouter(rt.Facade.HTTPHandlers(true),
		httpapi.WithLogger(logger.GetLogger("spine.http")))
	if err != nil {
		logger.Error("router setup failed", "error", err.Error())
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", "addr", cfg.HTTP.Addr, "driver", cfg.Database.Driver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("api server failed", "error", err.Error())
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api shutdown failed", "error", err.Error())
		return err
	}
	logger.Info("api stopped")
	return nil
}
