package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/spf13/cobra"
)

func trainCmd() *cobra.Command {
	var (
		odmPath     string
		viewMapPath string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the active sponsor's model",
		Long: `Upload a reference ODM document and its view mapping to train the mapping
model for the active sponsor. Both files are required.`,
		Example: `  edcmap sponsor ACME
  edcmap train --odm study_odm.xml --viewmap viewmapping.xlsx`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				if odmPath != "" {
					doc, err := model.LoadDocument(odmPath)
					if err != nil {
						return err
					}
					w.app.Trainer.SetReference(doc)
				}
				if viewMapPath != "" {
					doc, err := model.LoadDocument(viewMapPath)
					if err != nil {
						return err
					}
					w.app.Trainer.SetViewMap(doc)
				}

				err := withSpinner(ctx, "Training model...", w.app.Trainer.Submit)
				if err != nil {
					return surfaced(w, err)
				}

				last := w.app.Trainer.Last()
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
					fmt.Sprintf("Model trained for %s from %s and %s", last.Sponsor, last.Reference, last.ViewMap)))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&odmPath, "odm", "", "reference ODM document")
	cmd.Flags().StringVar(&viewMapPath, "viewmap", "", "view mapping document")

	return cmd
}
