package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SubmitEventMessage]  = (*SubmitEventCommand)(nil)
	_ gocmd.Commander[ProcessBatchMessage] = (*ProcessBatchCommand)(nil)
	_ gocmd.Commander[ReclaimStaleMessage] = (*ReclaimStaleCommand)(nil)
)
