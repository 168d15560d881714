package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"empresa-sync/internal/provision"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Provision user accounts in batch",
}

var usersImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Create accounts and profiles from a JSON file",
	Long: `Import reads a JSON array of user definitions and provisions each one
sequentially against the identity provider, then writes the matching profile
row to the registry. Accounts that already exist are resolved by looking the
user up and count as existing rather than failed.

The input file is a JSON array:

  [
    {"nome": "Maria Silva", "email": "maria@example.com", "senha": "s3cret",
     "role": "user", "departamentoId": "...", "ativo": true}
  ]`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersImport,
}

var usersPromptPassword bool

func init() {
	usersImportCmd.Flags().BoolVar(&usersPromptPassword, "prompt-password", false,
		"prompt once for a password to use for entries that omit senha")
	usersCmd.AddCommand(usersImportCmd)
	rootCmd.AddCommand(usersCmd)
}

func runUsersImport(cmd *cobra.Command, args []string) error {
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

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var requests []provision.CreateUserRequest
	if err := json.Unmarshal(data, &requests); err != nil {
		return fmt.Errorf("invalid input file: %w", err)
	}

	if usersPromptPassword {
		missing := 0
		for i := range requests {
			if requests[i].Senha == "" {
				missing++
			}
		}
		if missing > 0 {
			password, err := promptPassphrase(fmt.Sprintf("Password for %d entries without senha: ", missing))
			if err != nil {
				return err
			}
			for i := range requests {
				if requests[i].Senha == "" {
					requests[i].Senha = password
				}
			}
		}
	}

	tableStore, err := newTableStore(cfg)
	if err != nil {
		return err
	}
	admin, err := newAdminClient(cfg)
	if err != nil {
		return err
	}

	provisioner := provision.NewProvisioner(admin, tableStore, logger)

	progress := func(result provision.CreateUserResult) {
		switch result.Status {
		case provision.StatusCreated:
			printer.Verbose("created %s", result.Email)
		case provision.StatusExisting:
			printer.Verbose("already exists %s", result.Email)
		case provision.StatusFailed:
			printer.Warning(fmt.Sprintf("failed %s: %s", result.Email, result.Error))
		}
	}

	result, err := provisioner.ProvisionUsers(cmd.Context(), requests, progress)
	if err != nil {
		return err
	}

	printer.PrintProvisionSummary(result)
	if result.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d users failed to provision", result.Summary.Failed, result.Summary.Total)
	}
	return nil
}
