package display

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/provision"
)

func TestPrintSnapshotList(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	created := time.Date(2025, 9, 1, 12, 30, 0, 0, time.UTC)
	printer.PrintSnapshotList([]*backup.SnapshotMetadata{
		{
			ID:                "snapshot-20250901-123000-abcd1234",
			CreatedAt:         created,
			TotalRows:         1207,
			Size:              4096,
			CompressedSize:    1024,
			CompressionType:   backup.CompressionTypeGzip,
			EncryptionEnabled: true,
			Status:            backup.SnapshotStatusCompleted,
		},
	})

	output := buf.String()
	assert.Contains(t, output, "snapshot-20250901-123000-abcd1234")
	assert.Contains(t, output, "2025-09-01 12:30:00")
	assert.Contains(t, output, "1207")
	assert.Contains(t, output, "1.0 KB")
	assert.NotContains(t, output, "4.0 KB")
	assert.Contains(t, output, "GZIP")
	assert.Contains(t, output, "yes")
}

func TestPrintSnapshotList_Empty(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintSnapshotList(nil)

	assert.Contains(t, buf.String(), "No snapshots found")
}

func TestPrintSnapshotDetails(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintSnapshotDetails(&backup.SnapshotMetadata{
		ID:          "snapshot-20250901-123000-abcd1234",
		CreatedAt:   time.Date(2025, 9, 1, 12, 30, 0, 0, time.UTC),
		CreatedBy:   "admin@example.com",
		Description: "before migration",
		TotalRows:   15,
		Size:        2048,
		TableCounts: map[string]int{
			"empresas": 10,
			"servicos": 5,
		},
	})

	output := buf.String()
	assert.Contains(t, output, "Snapshot snapshot-20250901-123000-abcd1234")
	assert.Contains(t, output, "admin@example.com")
	assert.Contains(t, output, "before migration")
	assert.Contains(t, output, "empresas")
	assert.Contains(t, output, "servicos")

	// tables are listed alphabetically
	assert.Less(t, strings.Index(output, "empresas"), strings.Index(output, "servicos"))
}

func TestPrintRestoreSummary(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintRestoreSummary(&backup.RestoreResult{
		TablesRestored: 2,
		TablesSkipped:  []string{"lixeira", "notificacoes"},
		RowsWritten: map[string]int{
			"empresas": 12,
			"servicos": 3,
		},
		Duration: 1502 * time.Millisecond,
	})

	output := buf.String()
	assert.Contains(t, output, "Restore complete")
	assert.Contains(t, output, "2 tables restored, 15 rows written in 1.5s")
	assert.Contains(t, output, "2 empty tables skipped")
}

func TestPrintRestoreSummary_DryRun(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintRestoreSummary(&backup.RestoreResult{
		DryRun:      true,
		RowsWritten: map[string]int{},
	})

	assert.Contains(t, buf.String(), "Restore dry run")
}

func TestPrintProvisionSummary(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintProvisionSummary(&provision.BatchResult{
		Results: []provision.CreateUserResult{
			{Email: "ana@example.com", Status: "created"},
			{Email: "rui@example.com", Status: "existing"},
			{Email: "eva@example.com", Status: "failed", Error: "request timed out"},
		},
		Summary: provision.Summary{Total: 3, Created: 1, Existing: 1, Failed: 1},
	})

	output := buf.String()
	assert.Contains(t, output, "ana@example.com")
	assert.Contains(t, output, "request timed out")
	assert.Contains(t, output, "3 processed: 1 created, 1 existing, 1 failed")
}

func TestPrintProvisionSummary_AllCreated(t *testing.T) {
	printer, buf := newPlainPrinter(Options{})

	printer.PrintProvisionSummary(&provision.BatchResult{
		Results: []provision.CreateUserResult{
			{Email: "ana@example.com", Status: "created"},
		},
		Summary: provision.Summary{Total: 1, Created: 1},
	})

	assert.Contains(t, buf.String(), "1 processed: 1 created, 0 existing, 0 failed")
}
