package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/thoreinstein/backupkern/internal/config"
	"github.com/thoreinstein/backupkern/internal/engine"
	"github.com/thoreinstein/backupkern/internal/errors"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	okColor     = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	errColor    = color.New(color.FgRed, color.Bold)
	dimColor    = color.New(color.FgHiBlack)
)

func runBackup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return errors.NewConfigError(err)
	}
	return runBackupWithWriter(cmd.Context(), cmd.OutOrStdout(), engine.New(), cfg)
}

func runBackupWithWriter(ctx context.Context, w io.Writer, eng *engine.Engine, cfg *config.Config) error {
	if dryRun {
		return runPlan(ctx, w, eng, cfg)
	}

	res, err := eng.Run(ctx, cfg.EngineConfig())
	if res != nil {
		if outputJSON {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if encErr := enc.Encode(res); encErr != nil {
				return errors.Wrap(encErr, "encoding output")
			}
		} else if !quiet || len(res.Errors) > 0 {
			printResult(w, res, err == nil)
		}
	}
	return err
}

func runPlan(ctx context.Context, w io.Writer, eng *engine.Engine, cfg *config.Config) error {
	seq, err := eng.Plan(ctx, cfg.EngineConfig())
	if err != nil {
		return err
	}

	if outputJSON {
		actions := slices.Collect(seq)
		if actions == nil {
			actions = []engine.Action{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(actions), "encoding output")
	}

	for a := range seq {
		switch {
		case a.Err != nil:
			errColor.Fprintln(w, a)
		case a.Kind == engine.Skip:
			dimColor.Fprintln(w, a)
		default:
			fmt.Fprintln(w, a)
		}
	}
	return ctx.Err()
}

func printResult(w io.Writer, res *engine.Result, complete bool) {
	if complete {
		headerColor.Fprintf(w, "Snapshot %s\n", res.Name)
	} else {
		warnColor.Fprintf(w, "Interrupted snapshot %s\n", res.Name)
	}
	fmt.Fprintf(w, "  path:      %s\n", res.Path)
	if res.Previous != "" {
		fmt.Fprintf(w, "  previous:  %s\n", res.Previous)
	} else {
		fmt.Fprintf(w, "  previous:  %s\n", dimColor.Sprint("(none, full copy)"))
	}
	fmt.Fprintf(w, "  linked:    %s\n", okColor.Sprint(formatCount(res.Linked)))
	fmt.Fprintf(w, "  copied:    %s (%s)\n", formatCount(res.Copied), formatBytes(res.BytesCopied))
	if res.Failovers > 0 {
		fmt.Fprintf(w, "             %s copied because linking failed\n", formatCount(res.Failovers))
	}
	fmt.Fprintf(w, "  dirs:      %s\n", formatCount(res.Dirs))
	fmt.Fprintf(w, "  ignored:   %s\n", formatCount(res.Ignored))
	fmt.Fprintf(w, "  duration:  %s\n", formatDuration(res.Duration))

	if len(res.Errors) == 0 {
		return
	}
	fmt.Fprintln(w)
	errColor.Fprintf(w, "%d entries failed:\n", len(res.Errors))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}
