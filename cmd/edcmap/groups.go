package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/cli"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/spf13/cobra"
)

func groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List and resolve unmapped study events",
		Long: `Rows the model could not map are grouped by study event. Each group lists
the items observed for it; pick one, give it an IMPACT visit, and it will be
saved along with the predicted mappings. Ignored groups are never saved.`,
		Example: `  edcmap groups
  edcmap groups edit SE_BASELINE --item IT_WEIGHT --impact V1
  edcmap groups ignore SE_UNSCHEDULED
  edcmap groups resolve`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				out := cmd.OutOrStdout()
				groups := w.app.Predictor.Groups()
				if len(groups) == 0 {
					fmt.Fprintln(out, cli.SubtleStyle.Render("No unmapped groups."))
					return nil
				}
				fmt.Fprintln(out, cli.RenderGroups(groups))
				fmt.Fprintln(out, cli.SubtleStyle.Render(
					fmt.Sprintf("%d mappings will be saved.", len(w.app.Predictor.SavePayload()))))
				return nil
			})
		},
	}

	cmd.AddCommand(groupEditCmd())
	cmd.AddCommand(groupActionCmd("ignore", "Exclude a group from saving", model.ActionIgnore))
	cmd.AddCommand(groupActionCmd("include", "Bring an ignored group back for editing", model.ActionEdit))
	cmd.AddCommand(groupResolveCmd())

	return cmd
}

func groupEditCmd() *cobra.Command {
	var (
		item   string
		impact string
	)

	cmd := &cobra.Command{
		Use:   "edit <study-event>",
		Short: "Choose the item and IMPACT visit of a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				predictor := w.app.Predictor
				if err := predictor.SetAction(key, model.ActionEdit); err != nil {
					return err
				}
				if cmd.Flags().Changed("item") {
					if err := predictor.EditField(key, model.GroupFieldItem, item); err != nil {
						return err
					}
				}
				if cmd.Flags().Changed("impact") {
					if err := predictor.EditField(key, model.GroupFieldImpact, impact); err != nil {
						return err
					}
				}

				group, err := predictor.Group(key)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if group.Eligible() {
					fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("%s → %s (%s)", key, group.ItemEdit, group.ImpactEdit)))
				} else {
					fmt.Fprintln(out, cli.FormatInfo(fmt.Sprintf("%s is being edited; choose both an item and an IMPACT visit to save it", key)))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&item, "item", "", "item OID, one of the group's candidates")
	cmd.Flags().StringVar(&impact, "impact", "", "IMPACT visit identifier")

	return cmd
}

func groupActionCmd(use, short string, action model.GroupAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <study-event>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(_ context.Context, w *workspace) error {
				if err := w.app.Predictor.SetAction(args[0], action); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("%s: %s", args[0], action)))
				return nil
			})
		},
	}
}

func groupResolveCmd() *cobra.Command {
	var includeIgnored bool

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Resolve unmapped groups interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				groups := w.app.Predictor.Groups()
				if len(groups) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), cli.SubtleStyle.Render("No unmapped groups."))
					return nil
				}

				prompter := cli.NewCLIPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
				_, err := prompter.ResolveGroups(ctx, groups, w.app.Predictor, includeIgnored)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&includeIgnored, "all", false, "also revisit ignored groups")

	return cmd
}
