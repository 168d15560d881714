package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"empresa-sync/internal/config"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a starter configuration file with all available options.

By default the file is written to $HOME/.empresa-sync.yaml. Credentials
should be supplied through environment variables rather than stored in the
file:

  EMPRESA_SYNC_STORE_API_KEY
  EMPRESA_SYNC_IDENTITY_SERVICE_KEY
  EMPRESA_SYNC_ENCRYPTION_PASSPHRASE`,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the file (default $HOME/.empresa-sync.yaml)")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(home, ".empresa-sync.yaml")
	}

	if err := config.WriteStarterConfig(path); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	return nil
}
