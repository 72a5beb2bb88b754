package spine

import (
	"fmt"

	"github.com/goliatone/go-webhook-spine/command"
	"github.com/goliatone/go-webhook-spine/core"
	"github.com/goliatone/go-webhook-spine/httpapi"
	"github.com/goliatone/go-webhook-spine/query"
)

type Commands struct {
	SubmitEvent  *command.SubmitEventCommand
	ProcessBatch *command.ProcessBatchCommand
	ReclaimStale *command.ReclaimStaleCommand
}

type Queries struct {
	GetEvent       *query.GetEventQuery
	ListEvents     *query.ListEventsQuery
	GetProcessing  *query.GetProcessingQuery
	ListProcessing *query.ListProcessingQuery
	ListAudit      *query.ListAuditQuery
}

type Readers struct {
	Events core.EventReader
	Ledger core.LedgerReader
	Audit  core.AuditReader
}

func (r Readers) validate() error {
	if r.Events == nil || r.Ledger == nil || r.Audit == nil {
		return fmt.Errorf("spine: event, ledger and audit readers are required")
	}
	return nil
}

// Facade groups the command and query handlers over one set of components.
type Facade struct {
	commands Commands
	queries  Queries
}

// NewFacade builds every handler. runner and sweeper may be nil on an
// ingestion-only deployment; their commands then report a missing dependency.
func NewFacade(gate command.Submitter, runner command.BatchRunner, sweeper command.Sweeper, readers Readers) (*Facade, error) {
	if gate == nil {
		return nil, fmt.Errorf("spine: ingestion gate is required")
	}
	if err := readers.validate(); err != nil {
		return nil, err
	}
	facade := &Facade{}
	facade.commands = Commands{
		SubmitEvent:  command.NewSubmitEventCommand(gate),
		ProcessBatch: command.NewProcessBatchCommand(runner),
		ReclaimStale: command.NewReclaimStaleCommand(sweeper),
	}
	facade.queries = Queries{
		GetEvent:       query.NewGetEventQuery(readers.Events),
		ListEvents:     query.NewListEventsQuery(readers.Events),
		GetProcessing:  query.NewGetProcessingQuery(readers.Ledger),
		ListProcessing: query.NewListProcessingQuery(readers.Ledger),
		ListAudit:      query.NewListAuditQuery(readers.Audit),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

// HTTPHandlers wires the facade into the gin routes. withProcessing controls
// whether POST /process/once is exposed.
func (f *Facade) HTTPHandlers(withProcessing bool) httpapi.Handlers {
	if f == nil {
		return httpapi.Handlers{}
	}
	handlers := httpapi.Handlers{
		Submit:         f.commands.SubmitEvent,
		GetEvent:       f.queries.GetEvent,
		ListEvents:     f.queries.ListEvents,
		GetProcessing:  f.queries.GetProcessing,
		ListProcessing: f.queries.ListProcessing,
		ListAudit:      f.queries.ListAudit,
	}
	if withProcessing {
		handlers.ProcessBatch = f.commands.ProcessBatch
	}
	return handlers
}
