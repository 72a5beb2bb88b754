package command

import "github.com/goliatone/go-webhook-spine/core"

const (
	TypeSubmitEvent  = "spine.command.event.submit"
	TypeProcessBatch = "spine.command.processing.batch"
	TypeReclaimStale = "spine.command.processing.reclaim"
)

type SubmitEventMessage struct {
	Submission core.Submission
}

func (SubmitEventMessage) Type() string { return TypeSubmitEvent }

func (m SubmitEventMessage) Validate() error {
	return m.Submission.Validate()
}

// ProcessBatchMessage runs one processing cycle of up to the configured batch
// size.
type ProcessBatchMessage struct{}

func (ProcessBatchMessage) Type() string { return TypeProcessBatch }

func (ProcessBatchMessage) Validate() error { return nil }

type ReclaimStaleMessage struct{}

func (ReclaimStaleMessage) Type() string { return TypeReclaimStale }

func (ReclaimStaleMessage) Validate() error { return nil }
