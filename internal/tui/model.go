// Package tui implements the live dashboard: sponsor, model readiness,
// knowledge statistics and the activity log, updated as the session store
// changes.
package tui

import (
	"context"

	"github.com/Veraticus/edc-mapper/internal/app"
	"github.com/Veraticus/edc-mapper/internal/poller"
	"github.com/Veraticus/edc-mapper/internal/session"
	"github.com/Veraticus/edc-mapper/internal/tui/themes"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model holds the dashboard state.
type Model struct {
	app       *app.App
	updates   <-chan session.Snapshot
	theme     themes.Theme
	snap      session.Snapshot
	keymap    KeyMap
	help      help.Model
	spinner   spinner.Model
	activity  table.Model
	config    Config
	pollState poller.State
	width     int
	height    int
	quitting  bool
}

// NewModel creates a dashboard for a. updates delivers store snapshots;
// it may be nil when the caller feeds snapshotMsg values itself.
func NewModel(a *app.App, updates <-chan session.Snapshot, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	sp.Style = lipgloss.NewStyle().Foreground(cfg.Theme.Primary)

	m := Model{
		app:       a,
		updates:   updates,
		theme:     cfg.Theme,
		config:    cfg,
		keymap:    DefaultKeyMap(),
		help:      help.New(),
		spinner:   sp,
		snap:      a.Store.Snapshot(),
		pollState: a.Poller.State(),
		width:     cfg.Width,
		height:    cfg.Height,
	}
	m.activity = newActivityTable(cfg)
	m.syncActivity()
	return m
}

// Init starts the spinner and the store subscription.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForSnapshot(m.updates))
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.resizeActivity()
		return m, nil

	case snapshotMsg:
		m.snap = msg.snap
		m.pollState = m.app.Poller.State()
		m.syncActivity()
		return m, waitForSnapshot(m.updates)

	case sponsorSelectedMsg:
		m.snap = m.app.Store.Snapshot()
		m.pollState = m.app.Poller.State()
		m.syncActivity()
		return m, nil

	case refreshedMsg:
		m.pollState = msg.state
		m.snap = m.app.Store.Snapshot()
		m.syncActivity()
		return m, nil

	case subscriptionClosedMsg:
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.ForceQuit), key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.NextSponsor):
		return m, m.cycleSponsor(1)

	case key.Matches(msg, m.keymap.PrevSponsor):
		return m, m.cycleSponsor(-1)

	case key.Matches(msg, m.keymap.ClearActivity):
		m.app.Store.ClearActivity()
		m.snap = m.app.Store.Snapshot()
		m.syncActivity()
		return m, nil

	case key.Matches(msg, m.keymap.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Up), key.Matches(msg, m.keymap.Down):
		var cmd tea.Cmd
		m.activity, cmd = m.activity.Update(msg)
		return m, cmd
	}
	return m, nil
}

// cycleSponsor selects the sponsor step places away from the current one.
func (m Model) cycleSponsor(step int) tea.Cmd {
	sponsors := m.snap.Sponsors
	if len(sponsors) == 0 {
		return nil
	}

	current := -1
	for i, s := range sponsors {
		if s == m.snap.Sponsor {
			current = i
			break
		}
	}

	var next int
	switch {
	case current < 0 && step < 0:
		next = len(sponsors) - 1
	case current < 0:
		next = 0
	default:
		next = ((current+step)%len(sponsors) + len(sponsors)) % len(sponsors)
	}
	sponsor := sponsors[next]

	a := m.app
	return func() tea.Msg {
		return sponsorSelectedMsg{sponsor: sponsor, changed: a.SelectSponsor(sponsor)}
	}
}

func (m Model) refresh() tea.Cmd {
	a := m.app
	timeout := m.config.RefreshTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		a.Bootstrap(ctx)
		return refreshedMsg{state: a.Poller.Refresh(ctx)}
	}
}

func (m Model) busy() bool {
	return m.snap.Loading || m.pollState == poller.StateChecking
}

func waitForSnapshot(updates <-chan session.Snapshot) tea.Cmd {
	if updates == nil {
		return nil
	}
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return subscriptionClosedMsg{}
		}
		return snapshotMsg{snap: snap}
	}
}
