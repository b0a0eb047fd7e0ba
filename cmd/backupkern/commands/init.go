package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/backupkern/internal/config"
	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/paths"
	"github.com/thoreinstein/backupkern/pkg/fileutil"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite existing configuration")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter configuration file",
	Long: `Write a starter configuration to ~/backupkern.yaml, or to the file given
with --config. Edit source, destination and ignore before the first backup.`,
	Example: `  # Create ~/backupkern.yaml
  backupkern init

  # Create a second configuration
  backupkern init -c ~/work-backup.yaml

  # Force overwrite existing configuration
  backupkern init --force

  See Also: backupkern config show`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		target := configPath
		if target == "" {
			target = paths.DefaultConfigFile
		}
		return runInitWithWriter(cmd.OutOrStdout(), afero.NewOsFs(), paths.ExpandHome(target), initForce)
	},
}

func runInitWithWriter(w io.Writer, fs afero.Fs, path string, force bool) error {
	if _, err := fs.Stat(path); err == nil && !force {
		fmt.Fprintf(w, "Configuration already exists at %s\n", path)
		fmt.Fprintln(w, "Use --force to overwrite")
		return nil
	} else if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "checking %s", path)
	}

	if err := paths.EnsureDir(fs, filepath.Dir(path), 0); err != nil {
		return errors.Wrap(err, "creating config directory")
	}
	if err := fileutil.AtomicWriteYAML(fs, path, config.Default().Document(), 0o600); err != nil {
		return errors.Wrap(err, "writing config file")
	}

	fmt.Fprintf(w, "Created %s\n", path)
	fmt.Fprintln(w, "Edit source and destination, then run: backupkern --dry-run")
	return nil
}
