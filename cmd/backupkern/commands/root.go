// Package commands implements the CLI commands for backupkern.
package commands

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/backupkern/cmd"
	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/logging"
	"github.com/thoreinstein/backupkern/internal/snapshot"
)

// configPath holds the value of the --config flag.
var configPath string

// verbosity holds the count of -v flags.
var verbosity int

// quiet holds the value of the -q/--quiet flag.
var quiet bool

// logFormat holds the value of the --log-format flag.
var logFormat string

// logFile holds the path to the log file.
var logFile string

var (
	dryRun     bool
	outputJSON bool
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default ~/backupkern.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v",
		"increase verbosity level (e.g., -v, -vv, -vvv)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log format: text, json")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "",
		"write logs to file in JSON format")

	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false,
		"print the planned actions without writing anything")
	rootCmd.Flags().BoolVar(&outputJSON, "json", false,
		"print the result as JSON")

	rootCmd.Version = cmd.Version
	rootCmd.SetVersionTemplate("backupkern version {{.Version}}\n")
	snapshot.Version = cmd.Version

	// Silence errors and usage so we can control error output
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return errors.NewUserError(err, "Run 'backupkern --help' for usage")
	})
}

var rootCmd = &cobra.Command{
	Use:   "backupkern",
	Short: "Incremental hard-link backups of a directory tree",
	Long: `backupkern copies a source directory into a new, timestamped snapshot
under a destination directory. Files that did not change since the previous
snapshot are hard-linked to it instead of copied, so every snapshot is a
complete, browsable tree while only changed files take up space.

Running backupkern without a subcommand performs a backup using the
configuration file (default ~/backupkern.yaml).`,
	Example: `  # Create a starter configuration
  backupkern init

  # Run a backup
  backupkern

  # Show what a backup would do
  backupkern --dry-run

  # Use another configuration file
  backupkern -c ~/work-backup.yaml

  See Also: backupkern snapshots, backupkern config`,
	Args: cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setupLogging(cmd)
	},
	RunE: runBackup,
}

// setupLogging configures the default logger based on verbosity flags.
func setupLogging(cmd *cobra.Command) error {
	if quiet && verbosity > 0 {
		return errors.NewUserError(errors.New("conflicting flags"), "cannot use --quiet and --verbose together")
	}

	opts := logging.Options{
		Level:  logging.LevelFromVerbosity(logging.VerbosityFromEnv(verbosity)),
		Format: logging.Format(logFormat),
		Output: cmd.ErrOrStderr(),
	}
	if quiet {
		opts.Level = slog.LevelError
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return errors.NewUserError(err, "failed to open log file")
		}
		opts.File = f
	}

	logger := logging.New(opts)
	slog.SetDefault(logger)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(logging.NewContext(ctx, logger))

	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
