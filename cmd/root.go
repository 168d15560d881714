package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"empresa-sync/internal/backup"
	"empresa-sync/internal/config"
	"empresa-sync/internal/display"
	"empresa-sync/internal/errors"
	"empresa-sync/internal/identity"
	"empresa-sync/internal/logging"
	"empresa-sync/internal/store"
)

var cfgFile string

// CLI flag variables
var (
	verbose bool
	quiet   bool
	logFile string

	noColor    bool
	noIcons    bool
	noProgress bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "empresa-sync",
	Short: "Snapshot, restore and user provisioning for the company registry",
	Long: `Empresa Sync manages full-data snapshots of the company registry and
provisions user accounts in batch against the hosted data store.

Snapshots capture every registry table into a single versioned JSON document,
optionally compressed and encrypted, and store it on local disk or in S3,
Azure Blob Storage or Google Cloud Storage. Restores clear the target tables
and reload them in dependency order.

Examples:
  # Create a compressed snapshot
  empresa-sync export --compression gzip --description "before migration"

  # List stored snapshots
  empresa-sync snapshots list

  # Restore a snapshot, previewing first
  empresa-sync restore snapshot-20250901-120000-a1b2c3d4 --dry-run
  empresa-sync restore snapshot-20250901-120000-a1b2c3d4

  # Provision users from a JSON file
  empresa-sync users import usuarios.json

  # Generate a starter configuration file
  empresa-sync config init`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// An interrupt signal cancels the command context so an in-flight export or
// restore stops at the next store call instead of being killed mid-write.
func Execute() {
	ctx, cancel := errors.CreateContextWithCancel()
	defer cancel()

	shutdown := errors.NewGracefulShutdownHandler()
	shutdown.RegisterShutdownFunc(func() error {
		cancel()
		return nil
	})
	shutdown.Start()
	defer shutdown.Stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errors.FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.empresa-sync.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file instead of stdout")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().BoolVar(&noIcons, "no-icons", false, "disable Unicode icons")
	rootCmd.PersistentFlags().BoolVar(&noProgress, "no-progress", false, "disable progress indicators")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".empresa-sync")
	}

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// loadConfig builds the runtime configuration from viper state and flags
func loadConfig() (*config.Config, error) {
	if verbose && quiet {
		return nil, fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if verbose {
		cfg.Verbose = true
	}
	if quiet {
		cfg.Quiet = true
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	return cfg, nil
}

// newLogger creates the application logger from configuration
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	level := logging.LogLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = logging.LogLevelVerbose
	}
	if cfg.Quiet {
		level = logging.LogLevelQuiet
	}

	return logging.NewLogger(logging.Config{
		Level:   level,
		LogFile: cfg.LogFile,
	})
}

// newPrinter creates the terminal printer from configuration
func newPrinter(cfg *config.Config) *display.Printer {
	return display.NewPrinter(display.Options{
		Writer:       os.Stdout,
		ColorEnabled: !noColor,
		UseIcons:     !noIcons,
		Quiet:        cfg.Quiet,
		Verbose:      cfg.Verbose,
		Theme:        display.DefaultColorTheme(),
	})
}

// newTableStore creates the data store client from configuration
func newTableStore(cfg *config.Config) (store.TableStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return store.NewRESTClient(store.RESTClientConfig{
		BaseURL:   cfg.Store.URL,
		APIKey:    cfg.Store.APIKey,
		AuthToken: cfg.Store.Token,
		Timeout:   cfg.Store.Timeout,
	})
}

// newAdminClient creates the identity provider admin client
func newAdminClient(cfg *config.Config) (identity.AdminClient, error) {
	if err := cfg.ValidateIdentity(); err != nil {
		return nil, err
	}
	return identity.NewRESTClient(identity.RESTClientConfig{
		BaseURL:    cfg.Identity.URL,
		ServiceKey: cfg.Identity.ServiceKey,
		Timeout:    cfg.Identity.Timeout,
	})
}

// newManager wires the snapshot manager with its storage provider
func newManager(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*backup.Manager, error) {
	tableStore, err := newTableStore(cfg)
	if err != nil {
		return nil, err
	}

	factory := backup.NewStorageProviderFactory(logger)
	provider, err := factory.CreateStorageProvider(ctx, cfg.Backup.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage provider: %w", err)
	}

	healthCtx, cancelHealth := errors.CreateContextWithTimeout(10 * time.Second)
	defer cancelHealth()
	if err := provider.HealthCheck(healthCtx); err != nil {
		return nil, fmt.Errorf("storage provider is not usable: %w", err)
	}

	encryption := cfg.Backup.Encryption
	if encryption.Enabled && encryption.KeySource == "passphrase" && encryption.Passphrase == "" {
		passphrase, err := promptPassphrase("Encryption passphrase: ")
		if err != nil {
			return nil, fmt.Errorf("encryption passphrase required: set %s_ENCRYPTION_PASSPHRASE or run interactively: %w", config.EnvPrefix, err)
		}
		encryption.Passphrase = passphrase
	}

	return backup.NewManager(backup.ManagerOptions{
		TableStore: tableStore,
		Storage:    provider,
		Encryption: &encryption,
		Logger:     logger,
	}), nil
}

// promptPassphrase reads a passphrase from the terminal without echo
func promptPassphrase(prompt string) (string, error) {
	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("standard input is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	passphrase := strings.TrimSpace(string(raw))
	if passphrase == "" {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return passphrase, nil
}

// Version information (set by main package)
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// SetVersionInfo sets the version information from build flags
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func createVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("empresa-sync version %s\n", version)
			fmt.Printf("Built: %s\n", buildTime)
			fmt.Printf("Commit: %s\n", gitCommit)
		},
	}
}

func init() {
	rootCmd.AddCommand(createVersionCommand())
}
