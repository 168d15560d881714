package store

import (
	"context"
	"fmt"
)

// Row is a single table record as returned by the hosted data store. Values
// are whatever the JSON decoder produced; the sync engine never interprets
// them beyond the "id" conflict key.
type Row map[string]interface{}

// Filter describes a single-column condition for bulk deletes. The hosted
// store refuses unfiltered deletes, so callers that want "delete everything"
// express it as a tautology (see backup.NilIDFilter).
type Filter struct {
	Column   string
	Operator string // "eq", "neq", "gt", ...
	Value    string
}

// TableStore abstracts the hosted data store's per-table CRUD surface so the
// export/restore engine can be exercised against an in-memory fake.
type TableStore interface {
	// Select returns rows in the inclusive offset range [from, to].
	Select(ctx context.Context, table string, from, to int) ([]Row, error)

	// Upsert writes rows, resolving conflicts on conflictKey by merge.
	Upsert(ctx context.Context, table string, rows []Row, conflictKey string) error

	// Insert writes rows without conflict resolution.
	Insert(ctx context.Context, table string, rows []Row) error

	// Delete removes all rows matching the filter.
	Delete(ctx context.Context, table string, filter Filter) error
}

// APIError is an error reported by the hosted store's HTTP API.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("store API error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("store API error: %s", e.Message)
}
