package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-webhook-spine/core"
)

type Submitter interface {
	Submit(ctx context.Context, submission core.Submission) (core.SubmitResult, error)
}

type BatchRunner interface {
	ProcessBatch(ctx context.Context) (core.BatchStats, error)
}

type Sweeper interface {
	Sweep(ctx context.Context) (core.ReclaimStats, error)
}

// SubmitEventCommand stores the core.SubmitResult in the context collector.
type SubmitEventCommand struct {
	gate Submitter
}

func NewSubmitEventCommand(gate Submitter) *SubmitEventCommand {
	return &SubmitEventCommand{gate: gate}
}

func (c *SubmitEventCommand) Execute(ctx context.Context, msg SubmitEventMessage) error {
	if c == nil || c.gate == nil {
		return commandDependencyError("command: ingestion gate is required")
	}
	out, err := c.gate.Submit(ctx, msg.Submission)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessBatchCommand struct {
	runner BatchRunner
}

func NewProcessBatchCommand(runner BatchRunner) *ProcessBatchCommand {
	return &ProcessBatchCommand{runner: runner}
}

func (c *ProcessBatchCommand) Execute(ctx context.Context, _ ProcessBatchMessage) error {
	if c == nil || c.runner == nil {
		return commandDependencyError("command: batch runner is required")
	}
	stats, err := c.runner.ProcessBatch(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, stats)
	return nil
}

type ReclaimStaleCommand struct {
	sweeper Sweeper
}

func NewReclaimStaleCommand(sweeper Sweeper) *ReclaimStaleCommand {
	return &ReclaimStaleCommand{sweeper: sweeper}
}

func (c *ReclaimStaleCommand) Execute(ctx context.Context, _ ReclaimStaleMessage) error {
	if c == nil || c.sweeper == nil {
		return commandDependencyError("command: watchdog is required")
	}
	stats, err := c.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, stats)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
