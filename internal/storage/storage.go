// Package storage implements the persistence/audit adapter: a thin, typed
// wrapper over a table-oriented REST store, used by the agent runtime
// (heartbeat rows in agents), the orchestrator (alerts, system health) and
// the Order Gateway (orders, positions, audit events).
//
// The backing store is external; this package only speaks its HTTP/REST
// table contract (github.com/go-resty/resty/v2) and provides an in-memory
// stand-in for tests.
package storage

import (
	"context"
	"fmt"
)

// Row is a single table row as a JSON-safe key-value mapping. Decimal and
// UUID values are converted to JSON-safe scalars (floats, strings) by the
// caller before being handed to the adapter — the adapter itself never
// inspects domain types.
type Row map[string]interface{}

// Filter narrows a Get/Patch call to the rows matching key equality.
type Filter map[string]interface{}

// Adapter is the persistence contract every agent and the gateway depend on.
// No cross-table transactions are provided; callers compensate with
// ordering discipline.
type Adapter interface {
	// Get fetches rows from table matching filters, returning only the
	// columns named in sel (empty sel returns all columns).
	Get(ctx context.Context, table string, filters Filter, sel []string) ([]Row, error)

	// Insert appends a new row to table.
	Insert(ctx context.Context, table string, row Row) error

	// Upsert writes row to table, merging onto any existing row matching
	// onConflict's key columns. Idempotent on that conflict key.
	Upsert(ctx context.Context, table string, row Row, onConflict []string) error

	// Patch partially updates the rows in table matching filters.
	Patch(ctx context.Context, table string, filters Filter, partial Row) error
}

// PersistenceError wraps a failure to reach or write to the backing store.
// Agents log and continue on PersistenceError. The gateway rejects the order
// when a gate read or a staged-order write fails; after a venue fill it
// records the failure in an audit row and in the result's error instead.
type PersistenceError struct {
	Op    string
	Table string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error: %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
