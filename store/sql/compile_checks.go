package sqlstore

import "github.com/goliatone/go-webhook-spine/core"

var (
	_ core.EventStore   = (*EventStore)(nil)
	_ core.EventReader  = (*CachedEventReader)(nil)
	_ core.Ledger       = (*LedgerStore)(nil)
	_ core.LedgerReader = (*LedgerStore)(nil)
	_ core.AuditTrail   = (*AuditStore)(nil)
)
