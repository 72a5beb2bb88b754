// Package core holds the webhook spine domain: the idempotent ingestion gate,
// the processing ledger state machine, and the scheduler and watchdog that
// drive it. Storage, transport, and notification adapters depend on core;
// core never imports them.
package core
