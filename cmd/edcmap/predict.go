package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/spf13/cobra"
)

func predictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict <odm-file>",
		Short: "Predict mappings for a test ODM document",
		Long: `Upload an ODM document and let the active sponsor's model map its fields.
Rows the model could not map are grouped by study event; resolve them with
'edcmap groups resolve' before saving.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				doc, err := model.LoadDocument(args[0])
				if err != nil {
					return err
				}
				w.app.Predictor.SetDocument(doc)

				if err := withSpinner(ctx, "Predicting mappings...", w.app.Predictor.Submit); err != nil {
					return surfaced(w, err)
				}

				out := cmd.OutOrStdout()
				mappings := w.app.Predictor.Mappings()
				groups := w.app.Predictor.Groups()
				fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Predicted %d mappings for %s", len(mappings), doc.Name)))
				if len(mappings) > 0 {
					fmt.Fprintln(out, cli.RenderMappings(mappings))
				}
				if len(groups) > 0 {
					fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%d study events have unmapped rows", len(groups))))
					fmt.Fprintln(out, cli.RenderGroups(groups))
					fmt.Fprintln(out, cli.SubtleStyle.Render("Run 'edcmap groups resolve' to map them."))
				}
				return nil
			})
		},
	}
}

func mappingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mappings",
		Short: "List the mappings of the last prediction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				out := cmd.OutOrStdout()
				state := w.app.Predictor.State()
				if state.SourceFile == "" {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No prediction yet. Run 'edcmap predict <odm-file>'."))
					return nil
				}

				fmt.Fprintln(out, cli.SubtitleStyle.Render(fmt.Sprintf("%s (%s)", state.SourceFile, state.Sponsor)))
				if len(state.Mappings) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("The model mapped no rows."))
					return nil
				}
				fmt.Fprintln(out, cli.RenderMappings(state.Mappings))
				return nil
			})
		},
	}
}

func mappingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mapping",
		Short: "Edit resolved mappings",
	}
	cmd.AddCommand(mappingEditCmd())
	return cmd
}

func mappingEditCmd() *cobra.Command {
	var (
		field string
		value string
	)

	cmd := &cobra.Command{
		Use:   "edit <key>",
		Short: "Change one field of a resolved mapping",
		Long: `Change a field of a predicted mapping before saving. The key is the number
shown in the first column of 'edcmap mappings'.`,
		Example: `  edcmap mapping edit 3 --field IMPACTVisitID --value V2`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid mapping key %q: %w", args[0], err)
			}

			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				if err := w.app.Predictor.EditMapping(key, model.MappingField(field), value); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Mapping %d: %s = %s", key, field, value)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&field, "field", string(model.FieldImpactVisit), "field to change (StudyEventOID, ItemOID, IMPACTVisitID)")
	cmd.Flags().StringVar(&value, "value", "", "new value")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Save resolved and edited mappings",
		Long: `Send the predicted mappings, plus every unmapped group that has both an item
and an IMPACT visit chosen and is not ignored, back to the mapping service.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				count := len(w.app.Predictor.SavePayload())
				if err := withSpinner(ctx, "Saving mappings...", w.app.Predictor.Save); err != nil {
					return surfaced(w, err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
					fmt.Sprintf("Saved %d mappings for %s", count, w.app.Predictor.State().SourceFile)))
				return nil
			})
		},
	}
}
