package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines all keyboard shortcuts.
type KeyMap struct {
	Up            key.Binding
	Down          key.Binding
	NextSponsor   key.Binding
	PrevSponsor   key.Binding
	ClearActivity key.Binding
	Refresh       key.Binding
	Help          key.Binding
	Quit          key.Binding
	ForceQuit     key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("↓/j", "down"),
		),
		NextSponsor: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next sponsor"),
		),
		PrevSponsor: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("Shift+Tab", "previous sponsor"),
		),
		ClearActivity: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear activity"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r", "ctrl+r"),
			key.WithHelp("r", "refresh"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc"),
			key.WithHelp("q/Esc", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("Ctrl+C", "force quit"),
		),
	}
}

// ShortHelp returns key bindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextSponsor, k.ClearActivity, k.Refresh, k.Help, k.Quit}
}

// FullHelp returns all key bindings for the full help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.NextSponsor, k.PrevSponsor},
		{k.ClearActivity, k.Refresh},
		{k.Help, k.Quit, k.ForceQuit},
	}
}
