package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/spf13/cobra"
)

func sponsorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sponsor [id]",
		Short: "Show or select the active sponsor",
		Long: `Without an argument, print the active sponsor. With an argument, switch to
that sponsor and check whether a trained model exists for it.

Switching sponsors invalidates model readiness until the next status check.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				out := cmd.OutOrStdout()
				if len(args) == 0 {
					sponsor := w.app.Store.Sponsor()
					if sponsor == "" {
						fmt.Fprintln(out, cli.SubtleStyle.Render("No sponsor selected. Run 'edcmap sponsors' to list them."))
						return nil
					}
					fmt.Fprintln(out, sponsor)
					return nil
				}

				sponsor := args[0]
				known := w.app.Store.Snapshot().Sponsors
				if len(known) > 0 && !slices.Contains(known, sponsor) {
					fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s is not among the sponsors with a trained model", sponsor)))
				}

				if !w.app.SelectSponsor(sponsor) {
					fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s is already selected", sponsor)))
				} else {
					fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Selected sponsor %s", sponsor)))
				}

				w.app.Poller.PollOnce(ctx)
				snap := w.app.Store.Snapshot()
				fmt.Fprintln(out, cli.RenderStatus(snap.Sponsor, snap.Ready, snap.Status, snap.Error))
				return nil
			})
		},
	}
}

func sponsorsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sponsors",
		Short: "List sponsors with a trained model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				out := cmd.OutOrStdout()
				w.app.Poller.PollOnce(ctx)

				snap := w.app.Store.Snapshot()
				if len(snap.Sponsors) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No sponsors reported by the mapping service."))
					return nil
				}
				for _, sponsor := range snap.Sponsors {
					marker := "  "
					if sponsor == snap.Sponsor {
						marker = cli.SuccessStyle.Render("▸ ")
					}
					fmt.Fprintln(out, marker+sponsor)
				}
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check model availability for the active sponsor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				state := w.app.Poller.PollOnce(ctx)
				snap := w.app.Store.Snapshot()

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, cli.RenderStatus(snap.Sponsor, snap.Ready, snap.Status, snap.Error))
				fmt.Fprintln(out, cli.SubtleStyle.Render("poller: "+state.String()))
				return nil
			})
		},
	}
}
