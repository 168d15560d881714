package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/display"
)

var (
	exportDescription string
	exportCreatedBy   string
	exportCompression string
	exportEncrypt     bool
	exportKeep        int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Create a snapshot of every registry table",
	Long: `Export reads every registry table page by page and stores the result as a
single snapshot. Tables that fail to read are included as empty so a partial
outage never blocks the export.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportDescription, "description", "", "snapshot description")
	exportCmd.Flags().StringVar(&exportCreatedBy, "created-by", "", "user or system creating the snapshot")
	exportCmd.Flags().StringVar(&exportCompression, "compression", "", "compression algorithm (none, gzip, lz4, zstd)")
	exportCmd.Flags().BoolVar(&exportEncrypt, "encrypt", false, "encrypt the snapshot payload")
	exportCmd.Flags().IntVar(&exportKeep, "keep", 0, "prune stored snapshots beyond this count after a successful export")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if exportCompression != "" {
		cfg.Backup.Compression = strings.ToUpper(exportCompression)
	}
	if exportEncrypt {
		cfg.Backup.Encryption.Enabled = true
		if cfg.Backup.Encryption.KeySource == "" {
			cfg.Backup.Encryption.KeySource = "passphrase"
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	printer := newPrinter(cfg)

	ctx := cmd.Context()
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	var bar *display.ProgressBar
	progress := func(table string) {
		if bar != nil {
			bar.Increment(table)
		}
	}
	if !noProgress && !cfg.Quiet {
		bar = printer.NewProgressBar(len(backup.AllTables), "exporting")
	}

	metadata, err := manager.CreateSnapshot(ctx, backup.CreateOptions{
		Description: exportDescription,
		CreatedBy:   exportCreatedBy,
		Compression: cfg.CompressionType(),
		Progress:    progress,
	})
	if bar != nil {
		bar.Finish("")
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	printer.Success(fmt.Sprintf("Snapshot %s created (%d rows)", metadata.ID, metadata.TotalRows))
	printer.PrintSnapshotDetails(metadata)

	if exportKeep > 0 {
		pruned, err := manager.PruneSnapshots(ctx, exportKeep)
		if err != nil {
			printer.Warning(fmt.Sprintf("retention pruning failed: %v", err))
			logger.Warnf("retention pruning failed: %v", err)
			return nil
		}
		for _, id := range pruned {
			printer.Verbose("pruned snapshot %s", id)
		}
		if len(pruned) > 0 {
			printer.Info(fmt.Sprintf("%d old snapshots pruned", len(pruned)))
		}
	}
	return nil
}
