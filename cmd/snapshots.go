package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/config"
	"empresa-sync/internal/display"
	"empresa-sync/internal/logging"
)

var (
	listPrefix   string
	listMaxItems int
	pruneKeep    int
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List, inspect and prune stored snapshots",
}

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE:  runSnapshotsList,
}

var snapshotsShowCmd = &cobra.Command{
	Use:   "show <snapshot-id>",
	Short: "Show snapshot details and per-table row counts",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsShow,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <snapshot-id>",
	Short: "Delete a stored snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsDelete,
}

var snapshotsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old snapshots, keeping the most recent ones",
	RunE:  runSnapshotsPrune,
}

func init() {
	snapshotsListCmd.Flags().StringVar(&listPrefix, "prefix", "", "only list snapshot IDs with this prefix")
	snapshotsListCmd.Flags().IntVar(&listMaxItems, "max-items", 0, "limit the number of snapshots listed (0 = no limit)")
	snapshotsPruneCmd.Flags().IntVar(&pruneKeep, "keep", 0, "number of most recent snapshots to keep")
	snapshotsPruneCmd.MarkFlagRequired("keep")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsShowCmd)
	snapshotsCmd.AddCommand(snapshotsDeleteCmd)
	snapshotsCmd.AddCommand(snapshotsPruneCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

func runSnapshotsList(cmd *cobra.Command, args []string) error {
	cfg, logger, printer, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	snapshots, err := manager.ListSnapshots(ctx, backup.StorageFilter{
		Prefix:   listPrefix,
		MaxItems: listMaxItems,
	})
	if err != nil {
		return err
	}

	printer.PrintSnapshotList(snapshots)
	return nil
}

func runSnapshotsShow(cmd *cobra.Command, args []string) error {
	cfg, logger, printer, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	_, metadata, err := manager.LoadSnapshot(ctx, args[0])
	if err != nil {
		return err
	}

	printer.PrintSnapshotDetails(metadata)
	return nil
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) error {
	cfg, logger, printer, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if err := manager.DeleteSnapshot(ctx, args[0]); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("Snapshot %s deleted", args[0]))
	return nil
}

func runSnapshotsPrune(cmd *cobra.Command, args []string) error {
	cfg, logger, printer, err := setup()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	manager, err := newManager(ctx, cfg, logger)
	if err != nil {
		return err
	}

	deleted, err := manager.PruneSnapshots(ctx, pruneKeep)
	if err != nil {
		return err
	}

	if len(deleted) == 0 {
		printer.Info(fmt.Sprintf("Nothing to prune, %d or fewer snapshots stored", pruneKeep))
		return nil
	}
	for _, id := range deleted {
		printer.Verbose("deleted %s", id)
	}
	printer.Success(fmt.Sprintf("Pruned %d snapshots, kept the %d most recent", len(deleted), pruneKeep))
	return nil
}

// setup loads configuration and builds the logger and printer shared by the
// snapshot subcommands.
func setup() (*config.Config, *logging.Logger, *display.Printer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, newPrinter(cfg), nil
}
