package main

import (
	"context"

	"github.com/Veraticus/edc-mapper/internal/tui"
	"github.com/Veraticus/edc-mapper/internal/tui/themes"
	"github.com/spf13/cobra"
)

func watchCmd() *cobra.Command {
	var theme string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the live dashboard",
		Long: `Show the active sponsor, model availability, knowledge statistics and recent
activity, refreshed as the model status is polled. Tab switches sponsors.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, w *workspace) error {
				w.app.Bootstrap(ctx)
				w.app.Start(ctx)
				return tui.Run(ctx, w.app, tui.WithTheme(themes.ByName(theme)))
			})
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "default", "color theme (default, mocha)")

	return cmd
}
