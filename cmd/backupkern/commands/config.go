package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/thoreinstein/backupkern/internal/config"
	"github.com/thoreinstein/backupkern/internal/errors"
)

var showFormat string

func init() {
	configShowCmd.Flags().StringVar(&showFormat, "format", string(config.FormatYAML), "output format: yaml, toml")
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the backupkern configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration backupkern would use, after applying older key
names and BACKUPKERN_* environment overrides.`,
	Example: `  backupkern config show
  backupkern config show --format toml
  backupkern config show -c ~/work-backup.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return errors.NewConfigError(err)
		}
		return runConfigShowWithWriter(cmd.OutOrStdout(), cfg, config.Format(showFormat))
	},
}

func runConfigShowWithWriter(w io.Writer, cfg *config.Config, format config.Format) error {
	data, err := config.Encode(cfg, format)
	if err != nil {
		return errors.NewUserError(err, "Use --format yaml or --format toml")
	}
	fmt.Fprintf(w, "# loaded from %s\n", cfg.File)
	_, err = w.Write(data)
	return errors.Wrap(err, "writing output")
}
