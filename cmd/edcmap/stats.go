package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				if refresh {
					w.app.Bootstrap(ctx)
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderStats(w.app.Store.Snapshot().Stats))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "merge sponsors and activity from the mapping service first")

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Zero the local knowledge statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				w.app.ResetStats()
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Knowledge statistics reset"))
				return nil
			})
		},
	})

	return cmd
}

func activityCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Show recent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				entries := w.app.Store.Snapshot().Activity
				if limit > 0 && len(entries) > limit {
					entries = entries[:limit]
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.RenderActivity(entries))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the activity log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				w.app.Store.ClearActivity()
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Activity cleared"))
				return nil
			})
		},
	})

	return cmd
}
