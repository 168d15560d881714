package backup

import (
	"context"
	"fmt"

	"empresa-sync/internal/store"
)

// PaginatedReader fetches entire tables from the data store in fixed-size
// pages. The hosted store caps response sizes, so a single select cannot be
// trusted to return everything.
type PaginatedReader struct {
	store    store.TableStore
	pageSize int
}

// NewPaginatedReader creates a reader with the default page size
func NewPaginatedReader(tableStore store.TableStore) *PaginatedReader {
	return &PaginatedReader{
		store:    tableStore,
		pageSize: PageSize,
	}
}

// ReadAll returns the full ordered row sequence of a table. It requests
// pages sequentially by offset and stops when a page comes back short or
// empty. Any read error is fatal to this table's read; there is no retry.
func (r *PaginatedReader) ReadAll(ctx context.Context, table string) ([]store.Row, error) {
	var rows []store.Row

	for offset := 0; ; offset += r.pageSize {
		page, err := r.store.Select(ctx, table, offset, offset+r.pageSize-1)
		if err != nil {
			return nil, NewReadError(
				fmt.Sprintf("failed to read table %s: %v", table, err), err).
				WithContext("table", table).
				WithContext("offset", offset)
		}

		rows = append(rows, page...)

		if len(page) < r.pageSize {
			break
		}
	}

	return rows, nil
}
