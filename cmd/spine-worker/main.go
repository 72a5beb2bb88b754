// Command spine-worker runs the processing scheduler and the lease watchdog.
// Any number of workers may share one database.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	spine "github.com/goliatone/go-webhook-spine"
	"github.com/goliatone/go-webhook-spine/adapters/gojob"
	"github.com/goliatone/go-webhook-spine/adapters/gologger"
	"github.com/goliatone/go-webhook-spine/core"
)

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

	jobLogger := gologger.JobLogger("attempts", logger)
	rt, err := spine.NewRuntime(ctx, cfg,
		spine.WithComponentOptions(core.WithLoggerProvider(logger)),
		spine.WithAttemptHook(gojob.NewProcessingHook(gojob.NewLoggingHook(jobLogger))),
	)
	if err != nil {
		logger.Error("runtime setup failed", "error", err.Error())
		return err
	}
	defer rt.Close()

	logger.Info("worker starting",
		"max_attempts", cfg.Processing.MaxAttempts,
		"poll_interval", cfg.Processing.PollInterval.String(),
		"lease_timeout", cfg.Processing.LeaseTimeout.String(),
	)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = rt.Scheduler.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		_ = rt.Watchdog.Run(ctx)
	}()
	wg.Wait()
	logger.Info("worker stopped")
	return nil
}
