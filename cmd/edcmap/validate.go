package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/spf13/cobra"
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [viewmap-file]",
		Short: "Validate a view mapping against the sponsor's model",
		Long: `Upload a view mapping you authored and compare it with what the active
sponsor's model would map. The run's accuracy is folded into the knowledge
statistics. Without a file, the last validation result is shown.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				out := cmd.OutOrStdout()
				validator := w.app.Validator

				if len(args) == 1 {
					doc, err := model.LoadDocument(args[0])
					if err != nil {
						return err
					}
					validator.SetDocument(doc)

					if err := withSpinner(ctx, "Validating mappings...", validator.Submit); err != nil {
						return surfaced(w, err)
					}
				}

				state := validator.State()
				if state.SourceFile == "" {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No validation yet. Run 'edcmap validate <viewmap-file>'."))
					return nil
				}
				fmt.Fprintln(out, cli.SubtitleStyle.Render(fmt.Sprintf("%s (%s)", state.SourceFile, state.Sponsor)))
				fmt.Fprintln(out, cli.RenderValidation(validator.Records(), validator.Summary()))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Discard the last validation result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				w.app.Validator.Clear()
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Validation results cleared"))
				return nil
			})
		},
	})

	return cmd
}
