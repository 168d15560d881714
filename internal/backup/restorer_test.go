package backup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

func populatedSnapshot() *Snapshot {
	snapshot := NewSnapshot(time.Now())
	snapshot.SetTable("servicos", makeRows(2))
	snapshot.SetTable("empresas", makeRows(3))
	snapshot.SetTable("rets", makeRows(1))
	snapshot.SetTable("responsaveis", makeRows(1))
	snapshot.SetTable("documentos", makeRows(4))
	snapshot.SetTable("observacoes", makeRows(2))
	snapshot.SetTable("usuarios", makeRows(2))
	snapshot.SetTable("logs", makeRows(5))
	return snapshot
}

func TestRestorer_Restore_PhaseOrdering(t *testing.T) {
	fake := newFakeTableStore()
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	_, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.NoError(t, err)

	// Phase 1 and 2: deletes in fixed order, secondary first.
	deletes := fake.callsFor("delete")
	wantDeletes := append(append([]string{}, SecondaryDeleteOrder...), CriticalDeleteOrder...)
	require.Len(t, deletes, len(wantDeletes))
	for i, call := range deletes {
		assert.Equal(t, wantDeletes[i], call.table)
	}

	// Phase 3 and 4: writes parents before children, secondary last.
	// Empty secondary tables produce no write at all.
	upserts := fake.callsFor("upsert")
	wantWrites := []string{"servicos", "empresas", "rets", "responsaveis", "documentos", "observacoes", "usuarios", "logs"}
	require.Len(t, upserts, len(wantWrites))
	for i, call := range upserts {
		assert.Equal(t, wantWrites[i], call.table)
	}
}

func TestRestorer_Restore_OrderIndependentOfDocumentOrder(t *testing.T) {
	// Tabelas is a map; the restore order must come from the tier
	// definitions regardless of how the document happened to be built.
	snapshot := &Snapshot{
		Versao:   SchemaVersion,
		Tabelas:  map[string][]store.Row{},
		Contagem: map[string]int{},
	}
	for i := len(AllTables) - 1; i >= 0; i-- {
		snapshot.SetTable(AllTables[i], makeRows(1))
	}

	fake := newFakeTableStore()
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	_, err := restorer.Restore(context.Background(), snapshot, nil)
	require.NoError(t, err)

	upserts := fake.callsFor("upsert")
	wantWrites := append(append([]string{}, CriticalInsertOrder...), SecondaryInsertOrder...)
	require.Len(t, upserts, len(wantWrites))
	for i, call := range upserts {
		assert.Equal(t, wantWrites[i], call.table)
	}
}

func TestRestorer_Restore_CriticalDeleteFailureAborts(t *testing.T) {
	fake := newFakeTableStore()
	fake.failOn("delete", "rets", errors.New("forbidden"))
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	result, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "clearing critical tables")

	// Nothing was written: the abort happened before phase 3.
	assert.Empty(t, fake.callsFor("upsert"))
	assert.Empty(t, fake.callsFor("insert"))

	// The phase stopped at the failing table.
	deletes := fake.callsFor("delete")
	assert.Equal(t, "rets", deletes[len(deletes)-1].table)
}

func TestRestorer_Restore_SecondaryDeleteFailureIsAbsorbed(t *testing.T) {
	fake := newFakeTableStore()
	fake.failOn("delete", "lixeira", errors.New("forbidden"))
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	_, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	assert.NoError(t, err)
}

func TestRestorer_Restore_CriticalInsertFailureAborts(t *testing.T) {
	fake := newFakeTableStore()
	fake.failOn("upsert", "empresas", errors.New("constraint violation"))
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	result, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "writing critical tables")

	// servicos made it, rets and everything after empresas did not.
	upserts := fake.callsFor("upsert")
	require.Len(t, upserts, 2)
	assert.Equal(t, "servicos", upserts[0].table)
	assert.Equal(t, "empresas", upserts[1].table)
}

func TestRestorer_Restore_SecondaryInsertFailureIsAbsorbed(t *testing.T) {
	fake := newFakeTableStore()
	fake.failOn("upsert", "logs", errors.New("forbidden"))
	fake.failOn("insert", "logs", errors.New("forbidden"))
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	result, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.NoError(t, err)

	// usuarios still restored after the logs failure.
	assert.Contains(t, result.RowsWritten, "usuarios")
}

func TestRestorer_Restore_SkipsEmptySecondaryTables(t *testing.T) {
	fake := newFakeTableStore()
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	result, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.NoError(t, err)

	// departamentos, lixeira and notificacoes were empty in the snapshot.
	assert.ElementsMatch(t, []string{"departamentos", "lixeira", "notificacoes"}, result.TablesSkipped)
	assert.NotContains(t, result.RowsWritten, "departamentos")
}

func TestRestorer_Restore_ResultCounts(t *testing.T) {
	fake := newFakeTableStore()
	restorer := NewRestorer(fake, logging.NewDefaultLogger())

	result, err := restorer.Restore(context.Background(), populatedSnapshot(), nil)
	require.NoError(t, err)

	assert.Equal(t, 8, result.TablesRestored)
	assert.Equal(t, 3, result.RowsWritten["empresas"])
	assert.Equal(t, 5, result.RowsWritten["logs"])
	assert.False(t, result.DryRun)
	assert.GreaterOrEqual(t, result.Duration, time.Duration(0))
}
