package commands

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/cobra/doc"

	"github.com/thoreinstein/backupkern/internal/errors"
)

var (
	genDocDir    string
	genDocFormat string
)

var genDocCmd = &cobra.Command{
	Use:    "gen-doc",
	Short:  "Generate reference documentation for the CLI",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runGenDocWithWriter(cmd.OutOrStdout(), afero.NewOsFs(), genDocDir, genDocFormat)
	},
}

func init() {
	genDocCmd.Flags().StringVarP(&genDocDir, "dir", "d", "", "Output directory for documentation")
	genDocCmd.Flags().StringVar(&genDocFormat, "format", "markdown", "Output format (markdown, man)")
	rootCmd.AddCommand(genDocCmd)
}

func runGenDocWithWriter(w io.Writer, fs afero.Fs, dir, format string) error {
	if dir == "" {
		return errors.NewUserError(errors.New("output directory is required"), "Pass --dir")
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	var err error
	switch format {
	case "markdown":
		err = doc.GenMarkdownTreeCustom(rootCmd, dir, filePrepender, linkHandler)
	case "man":
		err = doc.GenManTree(rootCmd, &doc.GenManHeader{
			Title:   "BACKUPKERN",
			Section: "1",
			Source:  "backupkern " + rootCmd.Version,
		}, dir)
	default:
		return errors.NewUserError(errors.Newf("unknown format %q", format), "Use --format markdown or --format man")
	}
	if err != nil {
		return errors.Wrapf(err, "generating %s", format)
	}

	fmt.Fprintf(w, "Documentation generated in %s\n", dir)
	return nil
}

func filePrepender(filename string) string {
	name := filepath.Base(filename)
	// backupkern_snapshots_list.md -> backupkern snapshots list
	title := strings.ReplaceAll(strings.TrimSuffix(name, filepath.Ext(name)), "_", " ")

	return fmt.Sprintf(`---
title: "%s"
description: "Reference for %s"
---
`, title, title)
}

func linkHandler(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	return "/reference/" + strings.ToLower(base) + "/"
}
