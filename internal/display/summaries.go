package display

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/provision"
)

const timeRounding = 10 * time.Millisecond

// PrintSnapshotList renders stored snapshots newest first
func (p *Printer) PrintSnapshotList(snapshots []*backup.SnapshotMetadata) {
	if p.opts.Quiet {
		return
	}
	if len(snapshots) == 0 {
		p.Info("No snapshots found")
		return
	}

	headers := []string{"ID", "CREATED", "ROWS", "SIZE", "COMPRESSION", "ENCRYPTED", "STATUS"}
	rows := make([][]string, 0, len(snapshots))
	for _, meta := range snapshots {
		encrypted := "no"
		if meta.EncryptionEnabled {
			encrypted = "yes"
		}
		size := meta.Size
		if meta.CompressedSize > 0 {
			size = meta.CompressedSize
		}
		rows = append(rows, []string{
			meta.ID,
			meta.CreatedAt.Format("2006-01-02 15:04:05"),
			strconv.Itoa(meta.TotalRows),
			FormatBytes(size),
			string(meta.CompressionType),
			encrypted,
			string(meta.Status),
		})
	}
	p.PrintTable(headers, rows)
}

// PrintSnapshotDetails renders a single snapshot with per-table counts
func (p *Printer) PrintSnapshotDetails(meta *backup.SnapshotMetadata) {
	if p.opts.Quiet {
		return
	}
	p.PrintHeader(fmt.Sprintf("Snapshot %s", meta.ID))
	fmt.Fprintf(p.opts.Writer, "Created:     %s\n", meta.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	if meta.CreatedBy != "" {
		fmt.Fprintf(p.opts.Writer, "Created by:  %s\n", meta.CreatedBy)
	}
	if meta.Description != "" {
		fmt.Fprintf(p.opts.Writer, "Description: %s\n", meta.Description)
	}
	fmt.Fprintf(p.opts.Writer, "Total rows:  %d\n", meta.TotalRows)
	fmt.Fprintf(p.opts.Writer, "Size:        %s", FormatBytes(meta.Size))
	if meta.CompressedSize > 0 && meta.CompressedSize != meta.Size {
		fmt.Fprintf(p.opts.Writer, " (%s compressed)", FormatBytes(meta.CompressedSize))
	}
	fmt.Fprintln(p.opts.Writer)
	fmt.Fprintf(p.opts.Writer, "Location:    %s\n", meta.StorageLocation)

	if len(meta.TableCounts) > 0 {
		tables := make([]string, 0, len(meta.TableCounts))
		for table := range meta.TableCounts {
			tables = append(tables, table)
		}
		sort.Strings(tables)

		rows := make([][]string, 0, len(tables))
		for _, table := range tables {
			rows = append(rows, []string{table, strconv.Itoa(meta.TableCounts[table])})
		}
		fmt.Fprintln(p.opts.Writer)
		p.PrintTable([]string{"TABLE", "ROWS"}, rows)
	}
}

// PrintRestoreSummary renders the outcome of a restore run
func (p *Printer) PrintRestoreSummary(result *backup.RestoreResult) {
	if p.opts.Quiet {
		return
	}
	title := "Restore complete"
	if result.DryRun {
		title = "Restore dry run"
	}
	p.PrintHeader(title)

	totalRows := 0
	tables := make([]string, 0, len(result.RowsWritten))
	for table, count := range result.RowsWritten {
		tables = append(tables, table)
		totalRows += count
	}
	sort.Strings(tables)

	rows := make([][]string, 0, len(tables))
	for _, table := range tables {
		rows = append(rows, []string{table, strconv.Itoa(result.RowsWritten[table])})
	}
	p.PrintTable([]string{"TABLE", "ROWS"}, rows)

	fmt.Fprintln(p.opts.Writer)
	p.Success(fmt.Sprintf("%d tables restored, %d rows written in %s",
		result.TablesRestored, totalRows, result.Duration.Round(timeRounding)))
	for _, table := range result.TablesSkipped {
		p.Verbose("skipped empty table %s", table)
	}
	if len(result.TablesSkipped) > 0 && !p.opts.Verbose {
		p.Info(fmt.Sprintf("%d empty tables skipped", len(result.TablesSkipped)))
	}
}

// PrintProvisionSummary renders per-user outcomes and the final tallies
func (p *Printer) PrintProvisionSummary(result *provision.BatchResult) {
	if p.opts.Quiet {
		return
	}
	p.PrintHeader("User provisioning")

	rows := make([][]string, 0, len(result.Results))
	for _, r := range result.Results {
		detail := ""
		if r.Error != "" {
			detail = r.Error
		}
		rows = append(rows, []string{r.Email, r.Status, detail})
	}
	p.PrintTable([]string{"EMAIL", "STATUS", "DETAIL"}, rows)

	fmt.Fprintln(p.opts.Writer)
	summary := result.Summary
	message := fmt.Sprintf("%d processed: %d created, %d existing, %d failed",
		summary.Total, summary.Created, summary.Existing, summary.Failed)
	if summary.Failed > 0 {
		p.Warning(message)
		return
	}
	p.Success(message)
}
