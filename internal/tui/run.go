package tui

import (
	"context"
	"fmt"

	"github.com/Veraticus/edc-mapper/internal/app"
	"github.com/Veraticus/edc-mapper/internal/session"
	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is canceled.
func Run(ctx context.Context, a *app.App, opts ...Option) error {
	updates := make(chan session.Snapshot, 1)
	unsubscribe := a.Store.Subscribe(func(snap session.Snapshot) {
		publish(updates, snap)
	})
	defer unsubscribe()

	program := tea.NewProgram(
		NewModel(a, updates, opts...),
		tea.WithContext(ctx),
		tea.WithAltScreen(),
	)

	if _, err := program.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("dashboard failed: %w", err)
	}
	return nil
}

// publish hands snap to the program, replacing a snapshot that has not
// been consumed yet. It never blocks.
func publish(updates chan session.Snapshot, snap session.Snapshot) {
	for {
		select {
		case updates <- snap:
			return
		default:
		}
		select {
		case <-updates:
		default:
		}
	}
}
