package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/display"
)

var (
	restoreDryRun   bool
	restoreFromFile string
	restoreYes      bool
)

var restoreCmd = &cobra.Command{
	Use:   "restore [snapshot-id]",
	Short: "Restore a snapshot into the registry",
	Long: `Restore clears the registry tables and reloads them from a snapshot.

The critical tables are cleared and reloaded in dependency order and any
failure there aborts the run. Secondary tables are restored best effort and
failures only produce warnings. Use --dry-run to preview what would be
written without touching the store.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "validate and report without writing to the store")
	restoreCmd.Flags().StringVar(&restoreFromFile, "from-file", "", "restore from a local snapshot JSON file instead of stored snapshots")
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")

	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && restoreFromFile == "" {
		return fmt.Errorf("a snapshot ID or --from-file is required")
	}
	if len(args) == 1 && restoreFromFile != "" {
		return fmt.Errorf("snapshot ID and --from-file are mutually exclusive")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
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

	if !restoreDryRun && !restoreYes {
		if !confirmRestore() {
			printer.Info("Restore cancelled")
			return nil
		}
	}

	var bar *display.ProgressBar
	progress := func(table string) {
		if bar != nil {
			bar.Increment(table)
		}
	}
	if !noProgress && !cfg.Quiet && !restoreDryRun {
		total := len(backup.CriticalDeleteOrder) + len(backup.SecondaryDeleteOrder) + len(backup.AllTables)
		bar = printer.NewProgressBar(total, "restoring")
	}

	opts := backup.RestoreOptions{DryRun: restoreDryRun, Progress: progress}

	var result *backup.RestoreResult
	if restoreFromFile != "" {
		data, err := os.ReadFile(restoreFromFile)
		if err != nil {
			return fmt.Errorf("failed to read snapshot file: %w", err)
		}
		result, err = manager.RestoreFromData(ctx, data, opts)
		if bar != nil {
			bar.Finish("")
		}
		if err != nil {
			return err
		}
	} else {
		result, err = manager.RestoreSnapshot(ctx, args[0], opts)
		if bar != nil {
			bar.Finish("")
		}
		if err != nil {
			return err
		}
	}

	printer.PrintRestoreSummary(result)
	return nil
}

// confirmRestore asks the operator to confirm the destructive reload
func confirmRestore() bool {
	fmt.Fprint(os.Stderr, "Restoring will DELETE all current registry data. Type 'yes' to continue: ")
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(strings.ToLower(answer)) == "yes"
}
