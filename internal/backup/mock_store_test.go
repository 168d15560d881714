package backup

import (
	"context"
	"fmt"
	"sync"

	"empresa-sync/internal/store"
)

// storeCall records one data store invocation for order and argument checks
type storeCall struct {
	op     string
	table  string
	rows   int
	from   int
	to     int
	filter store.Filter
}

// fakeTableStore is an in-memory TableStore with per-table error injection.
// Shared by the writer, exporter, restorer and manager tests.
type fakeTableStore struct {
	mu      sync.Mutex
	tables  map[string][]store.Row
	calls   []storeCall
	failing map[string]error // op:table -> injected error
}

func newFakeTableStore() *fakeTableStore {
	return &fakeTableStore{
		tables:  make(map[string][]store.Row),
		failing: make(map[string]error),
	}
}

func (f *fakeTableStore) failOn(op, table string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[op+":"+table] = err
}

func (f *fakeTableStore) injected(op, table string) error {
	return f.failing[op+":"+table]
}

func (f *fakeTableStore) seed(table string, count int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rows := make([]store.Row, count)
	for i := range rows {
		rows[i] = store.Row{"id": fmt.Sprintf("%s-%d", table, i)}
	}
	f.tables[table] = rows
}

func (f *fakeTableStore) Select(ctx context.Context, table string, from, to int) ([]store.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "select", table: table, from: from, to: to})
	if err := f.injected("select", table); err != nil {
		return nil, err
	}
	rows := f.tables[table]
	if from >= len(rows) {
		return nil, nil
	}
	end := to + 1
	if end > len(rows) {
		end = len(rows)
	}
	return rows[from:end], nil
}

func (f *fakeTableStore) Upsert(ctx context.Context, table string, rows []store.Row, conflictKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "upsert", table: table, rows: len(rows)})
	if err := f.injected("upsert", table); err != nil {
		return err
	}
	f.tables[table] = append(f.tables[table], rows...)
	return nil
}

func (f *fakeTableStore) Insert(ctx context.Context, table string, rows []store.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "insert", table: table, rows: len(rows)})
	if err := f.injected("insert", table); err != nil {
		return err
	}
	f.tables[table] = append(f.tables[table], rows...)
	return nil
}

func (f *fakeTableStore) Delete(ctx context.Context, table string, filter store.Filter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, storeCall{op: "delete", table: table, filter: filter})
	if err := f.injected("delete", table); err != nil {
		return err
	}
	f.tables[table] = nil
	return nil
}

// callsFor returns the recorded calls matching an operation
func (f *fakeTableStore) callsFor(op string) []storeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []storeCall
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func makeRows(count int) []store.Row {
	rows := make([]store.Row, count)
	for i := range rows {
		rows[i] = store.Row{"id": fmt.Sprintf("row-%d", i)}
	}
	return rows
}
