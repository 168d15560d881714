package backup

import (
	"context"
	"time"

	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

// Restorer replays a validated snapshot into the data store in four
// sequential phases with fixed table orderings. Critical tables (the company
// graph) restore fail-fast so referential integrity either lands whole or
// the restore stops; secondary tables restore best-effort because the
// store's access rules may forbid bulk overwrite of them.
//
// There is no cross-table transaction: a failure mid-restore leaves the
// store partially cleared or partially repopulated, and re-running the
// restore is the recovery path.
type Restorer struct {
	writer *BatchWriter
	logger *logging.Logger
}

// NewRestorer creates a new snapshot restorer
func NewRestorer(tableStore store.TableStore, logger *logging.Logger) *Restorer {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Restorer{
		writer: NewBatchWriter(tableStore, logger),
		logger: logger,
	}
}

// Restore executes the four phases. The progress callback receives each
// table name as it is processed. Phase orderings come from the snapshot's
// tier definitions, never from the snapshot document's own key order.
func (r *Restorer) Restore(ctx context.Context, snapshot *Snapshot, progress ProgressFunc) (*RestoreResult, error) {
	start := time.Now()
	result := &RestoreResult{
		RowsWritten: make(map[string]int),
	}

	// Phase 1: clear secondary tables, best-effort.
	r.logger.LogRestorePhase("clear secondary tables", SecondaryDeleteOrder)
	for _, table := range SecondaryDeleteOrder {
		r.notify(progress, table)
		r.writer.DeleteAllSafe(ctx, table)
	}

	// Phase 2: clear critical tables children-before-parents. Any failure
	// aborts the whole restore here.
	r.logger.LogRestorePhase("clear critical tables", CriticalDeleteOrder)
	for _, table := range CriticalDeleteOrder {
		r.notify(progress, table)
		if err := r.writer.DeleteAll(ctx, table); err != nil {
			return nil, NewRestoreError("restore aborted while clearing critical tables", err).
				WithContext("table", table)
		}
	}

	// Phase 3: repopulate critical tables parents-before-children,
	// fail-fast.
	r.logger.LogRestorePhase("restore critical tables", CriticalInsertOrder)
	for _, table := range CriticalInsertOrder {
		r.notify(progress, table)
		rows := snapshot.Tabelas[table]
		if err := r.writer.InsertBatch(ctx, table, rows); err != nil {
			return nil, NewRestoreError("restore aborted while writing critical tables", err).
				WithContext("table", table)
		}
		result.RowsWritten[table] = len(rows)
		result.TablesRestored++
	}

	// Phase 4: repopulate secondary tables, best-effort, skipping empty
	// ones.
	r.logger.LogRestorePhase("restore secondary tables", SecondaryInsertOrder)
	for _, table := range SecondaryInsertOrder {
		rows := snapshot.Tabelas[table]
		if len(rows) == 0 {
			result.TablesSkipped = append(result.TablesSkipped, table)
			continue
		}
		r.notify(progress, table)
		r.writer.InsertBatchSafe(ctx, table, rows)
		result.RowsWritten[table] = len(rows)
		result.TablesRestored++
	}

	result.Duration = time.Since(start)
	return result, nil
}

func (r *Restorer) notify(progress ProgressFunc, table string) {
	if progress != nil {
		progress(table)
	}
}
