package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/ktr0731/go-fuzzyfinder"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/backupkern/internal/config"
	"github.com/thoreinstein/backupkern/internal/engine"
	"github.com/thoreinstein/backupkern/internal/errors"
	"github.com/thoreinstein/backupkern/internal/snapshot"
)

var (
	snapshotsDest string
	listJSON      bool
	pruneKeep     int
)

func init() {
	snapshotsCmd.PersistentFlags().StringVarP(&snapshotsDest, "destination", "d", "",
		"destination base directory (default: from the config file)")

	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", snapshot.DefaultRetentionCount,
		"Number of snapshots to retain")

	snapshotsCmd.AddCommand(listCmd, latestCmd, pickCmd, pruneCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

var snapshotsCmd = &cobra.Command{
	Use:     "snapshots",
	Aliases: []string{"snap"},
	Short:   "Inspect and manage snapshots",
	Long: `Inspect and manage the snapshots under the destination directory.

The destination and snapshot prefix are taken from the configuration file.
Use --destination to look at another directory.`,
	Example: `  # List snapshots, newest first
  backupkern snapshots list

  # Print the newest snapshot's path
  cd "$(backupkern snapshots latest)"

  # Keep only the 5 newest snapshots
  backupkern snapshots prune --keep 5

  See Also:
    backupkern snapshots list   - List snapshots
    backupkern snapshots latest - Print the newest snapshot
    backupkern snapshots pick   - Choose a snapshot interactively
    backupkern snapshots prune  - Remove old snapshots`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return cmd.Help()
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List snapshots",
	Long: `List all completed snapshots with the most recent first, together with
the statistics recorded for the run that created them.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runListWithWriter(cmd.OutOrStdout(), store)
	},
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Print the path of the newest snapshot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runLatestWithWriter(cmd.OutOrStdout(), store)
	},
}

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Choose a snapshot interactively and print its path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runPickWithWriter(cmd.OutOrStdout(), store, findSnapshot)
	},
}

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove old snapshots",
	Long: `Remove the oldest snapshots beyond the retention count.

Files shared with the remaining snapshots through hard links are not
affected; only storage referenced solely by removed snapshots is freed.`,
	Example: `  # Keep the default number of snapshots
  backupkern snapshots prune

  # Keep only the 3 most recent snapshots
  backupkern snapshots prune --keep 3`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		return runPruneWithWriter(cmd.OutOrStdout(), store, pruneKeep)
	},
}

// openStore resolves the snapshot store from --destination or the config.
func openStore() (*snapshot.Store, error) {
	fs := afero.NewOsFs()

	cfg, cfgErr := config.Load(configPath)
	if snapshotsDest != "" {
		var opts []snapshot.Option
		if cfgErr == nil {
			opts = append(opts, snapshot.WithPrefix(cfg.Prefix))
		}
		return snapshot.NewStore(fs, snapshotsDest, opts...), nil
	}
	if cfgErr != nil {
		return nil, errors.NewConfigError(cfgErr)
	}

	ec := cfg.EngineConfig()
	base, err := engine.New(engine.WithFs(fs)).Destination(ec.Destinations)
	if err != nil {
		return nil, err
	}
	return snapshot.NewStore(fs, base, snapshot.WithPrefix(cfg.Prefix)), nil
}

func runListWithWriter(w io.Writer, store *snapshot.Store) error {
	snaps, err := store.List()
	if err != nil && !errors.Is(err, snapshot.ErrNoSnapshotsFound) {
		return errors.Wrap(err, "listing snapshots")
	}

	if listJSON {
		if snaps == nil {
			snaps = []snapshot.Snapshot{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(snaps), "encoding output")
	}

	if len(snaps) == 0 {
		fmt.Fprintf(w, "No snapshots in %s\n", store.Base())
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Create one by running: backupkern")
		return nil
	}

	headerColor.Fprintf(w, "Snapshots in %s\n", store.Base())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  NAME\tCREATED\tLINKED\tCOPIED\tSIZE\tERRORS")
	for _, s := range snaps {
		if s.Summary == nil {
			fmt.Fprintf(tw, "  %s\t-\t-\t-\t-\t-\n", s.Name)
			continue
		}
		errs := fmt.Sprint(len(s.Summary.Errors))
		if len(s.Summary.Errors) > 0 {
			errs = warnColor.Sprint(errs)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			okColor.Sprint(s.Name),
			s.Summary.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			formatCount(s.Summary.Linked),
			formatCount(s.Summary.Copied),
			formatBytes(s.Summary.BytesCopied),
			errs)
	}
	return errors.Wrap(tw.Flush(), "writing output")
}

func runLatestWithWriter(w io.Writer, store *snapshot.Store) error {
	snap, ok, err := store.Latest()
	if err != nil {
		return errors.Wrap(err, "finding latest snapshot")
	}
	if !ok {
		return errors.NewUserError(
			errors.Wrapf(errors.ErrNotFound, "no snapshots in %s", store.Base()),
			"Run: backupkern")
	}
	fmt.Fprintln(w, snap.Path)
	return nil
}

// finder matches fuzzyfinder.Find so tests can replace the interactive UI.
type finder func(items []snapshot.Snapshot, itemFunc func(int) string, opts ...fuzzyfinder.Option) (int, error)

func findSnapshot(items []snapshot.Snapshot, itemFunc func(int) string, opts ...fuzzyfinder.Option) (int, error) {
	return fuzzyfinder.Find(items, itemFunc, opts...)
}

func runPickWithWriter(w io.Writer, store *snapshot.Store, find finder) error {
	snaps, err := store.List()
	if errors.Is(err, snapshot.ErrNoSnapshotsFound) {
		fmt.Fprintln(w, "No snapshots found.")
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "listing snapshots")
	}

	idx, err := find(
		snaps,
		func(i int) string {
			return snaps[i].Name
		},
		fuzzyfinder.WithPreviewWindow(func(i, _, _ int) string {
			if i == -1 {
				return ""
			}
			return describeSnapshot(snaps[i])
		}),
	)
	if err != nil {
		if errors.Is(err, fuzzyfinder.ErrAbort) {
			return nil
		}
		return errors.Wrap(err, "interactive selection failed")
	}

	fmt.Fprintln(w, snaps[idx].Path)
	return nil
}

func describeSnapshot(s snapshot.Snapshot) string {
	if s.Summary == nil {
		return fmt.Sprintf("Name: %s\nPath: %s\n\n(no run summary)", s.Name, s.Path)
	}
	sum := s.Summary
	return fmt.Sprintf("Name:     %s\nPath:     %s\nSource:   %s\nPrevious: %s\nCreated:  %s\nDuration: %s\n\nLinked:  %d\nCopied:  %d (%s)\nIgnored: %d\nErrors:  %d",
		s.Name, s.Path, sum.Source, sum.Previous,
		sum.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		formatDuration(time.Duration(sum.DurationMS)*time.Millisecond),
		sum.Linked, sum.Copied, formatBytes(sum.BytesCopied), sum.Ignored, len(sum.Errors))
}

func runPruneWithWriter(w io.Writer, store *snapshot.Store, keep int) error {
	if keep < 0 {
		return errors.NewUserError(errors.Newf("invalid --keep value %d", keep), "--keep must be 0 or greater")
	}

	removed, err := store.Prune(keep)
	for _, s := range removed {
		fmt.Fprintf(w, "Removed %s\n", s.Name)
	}
	if err != nil {
		return errors.Wrap(err, "pruning snapshots")
	}

	if len(removed) == 0 {
		fmt.Fprintf(w, "Nothing to prune (keeping %d)\n", keep)
	} else {
		okColor.Fprintf(w, "Pruned %d snapshot(s), kept the %d most recent\n", len(removed), keep)
	}
	return nil
}
