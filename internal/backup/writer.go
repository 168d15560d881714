package backup

import (
	"context"
	"fmt"

	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

// BatchWriter writes row sequences to the data store in fixed-size upsert
// chunks. One chunking implementation serves both tiers; the failure policy
// decides whether a failed chunk aborts the table or is logged and skipped.
type BatchWriter struct {
	store     store.TableStore
	logger    *logging.Logger
	chunkSize int
}

// NewBatchWriter creates a writer with the default chunk size
func NewBatchWriter(tableStore store.TableStore, logger *logging.Logger) *BatchWriter {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &BatchWriter{
		store:     tableStore,
		logger:    logger,
		chunkSize: ChunkSize,
	}
}

// InsertBatch upserts rows fail-fast: the first failed chunk aborts the
// remaining chunks and the error names the table and the 1-based chunk
// index. Empty input is a no-op.
func (w *BatchWriter) InsertBatch(ctx context.Context, table string, rows []store.Row) error {
	return w.writeChunks(ctx, table, rows, FailFast)
}

// InsertBatchSafe upserts rows best-effort: a failed chunk is retried as a
// plain insert (the caller may lack upsert permission but still be allowed
// to insert), and if that also fails the chunk is logged and the next chunk
// proceeds. Never returns an error.
func (w *BatchWriter) InsertBatchSafe(ctx context.Context, table string, rows []store.Row) {
	_ = w.writeChunks(ctx, table, rows, BestEffort)
}

// writeChunks partitions rows into chunks and writes them sequentially under
// the given failure policy
func (w *BatchWriter) writeChunks(ctx context.Context, table string, rows []store.Row, policy FailurePolicy) error {
	if len(rows) == 0 {
		return nil
	}

	totalChunks := (len(rows) + w.chunkSize - 1) / w.chunkSize

	for i := 0; i < len(rows); i += w.chunkSize {
		end := i + w.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[i:end]
		chunkIndex := i/w.chunkSize + 1

		err := w.store.Upsert(ctx, table, chunk, ConflictKey)
		if err == nil {
			w.logger.LogBatchWrite(table, chunkIndex, totalChunks, len(chunk), nil)
			continue
		}

		if policy == FailFast {
			w.logger.LogBatchWrite(table, chunkIndex, totalChunks, len(chunk), err)
			return NewWriteError(
				fmt.Sprintf("failed to write table %s (chunk %d): %v", table, chunkIndex, err), err).
				WithContext("table", table).
				WithContext("chunk", chunkIndex)
		}

		// Best effort: fall back to a plain insert before giving up on the
		// chunk.
		if insertErr := w.store.Insert(ctx, table, chunk); insertErr != nil {
			w.logger.LogBatchWrite(table, chunkIndex, totalChunks, len(chunk), insertErr)
			w.logger.Warnf("skipping chunk %d of table %s: upsert failed (%v), insert fallback failed (%v)",
				chunkIndex, table, err, insertErr)
			continue
		}
		w.logger.LogBatchWrite(table, chunkIndex, totalChunks, len(chunk), nil)
	}

	return nil
}

// DeleteAll removes every row from a table, fail-fast. The store requires a
// filter clause on bulk deletes, so "everything" is expressed as the
// tautological nil-UUID condition.
func (w *BatchWriter) DeleteAll(ctx context.Context, table string) error {
	if err := w.store.Delete(ctx, table, NilIDFilter()); err != nil {
		return NewWriteError(
			fmt.Sprintf("failed to clear table %s: %v", table, err), err).
			WithContext("table", table)
	}
	return nil
}

// DeleteAllSafe removes every row from a table, logging failures instead of
// returning them
func (w *BatchWriter) DeleteAllSafe(ctx context.Context, table string) {
	if err := w.store.Delete(ctx, table, NilIDFilter()); err != nil {
		w.logger.Warnf("skipping clear of table %s: %v", table, err)
	}
}
