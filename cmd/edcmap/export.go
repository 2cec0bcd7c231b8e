package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the updated ODM document",
		Long: `Download the ODM document the mapping service rebuilt from the saved
mappings. The file is written only when the download completes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				path := output
				if path == "" {
					path = w.config.ExportFilename
				}

				n, err := exportTo(ctx, w, path)
				if err != nil {
					return surfaced(w, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Exported %s (%d bytes)", path, n)))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: export.filename from config)")

	return cmd
}

// exportTo downloads into a temporary file next to path and renames it into
// place once the transfer succeeded.
func exportTo(ctx context.Context, w *workspace, path string) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".edcmap-export-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var n int64
	err = withSpinner(ctx, "Exporting...", func(ctx context.Context) error {
		var exportErr error
		n, exportErr = w.app.Exporter.Export(ctx, tmp, filepath.Base(path))
		return exportErr
	})
	if closeErr := tmp.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to write output file: %w", closeErr)
	}
	if err != nil {
		return n, err
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to move export into place: %w", err)
	}
	return n, nil
}
