package tui

import (
	"context"
	"testing"
	"time"

	"github.com/Veraticus/edc-mapper/internal/app"
	"github.com/Veraticus/edc-mapper/internal/mapper"
	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/Veraticus/edc-mapper/internal/poller"
	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/Veraticus/edc-mapper/internal/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T, client *mapper.MockClient) *app.App {
	t.Helper()
	a := app.NewWithConfig(client, nil, app.Config{
		Clock:        func() time.Time { return time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC) },
		PollInterval: time.Hour,
	})
	t.Cleanup(a.Stop)
	return a
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func TestModel_CyclesSponsors(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	a.Store.SetSponsors([]string{"acme", "globex", "initech"})

	m := NewModel(a, nil)

	_, cmd := m.Update(keyPress("tab"))
	require.NotNil(t, cmd)
	msg := cmd()
	selected, ok := msg.(sponsorSelectedMsg)
	require.True(t, ok)
	assert.Equal(t, "acme", selected.sponsor)
	assert.True(t, selected.changed)
	assert.Equal(t, "acme", a.Store.Sponsor())

	updated, _ := m.Update(msg)
	m = updated.(Model)
	assert.Equal(t, "acme", m.snap.Sponsor)

	_, cmd = m.Update(keyPress("shift+tab"))
	require.NotNil(t, cmd)
	selected = cmd().(sponsorSelectedMsg)
	assert.Equal(t, "initech", selected.sponsor)
	assert.Equal(t, "initech", a.Store.Sponsor())
}

func TestModel_CycleWithoutSponsorsIsNoop(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	m := NewModel(a, nil)

	_, cmd := m.Update(keyPress("tab"))
	assert.Nil(t, cmd)
}

func TestModel_ClearActivity(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	a.Store.AppendActivity(model.ActivityTrain, "Trained model for acme")

	m := NewModel(a, nil)
	require.Len(t, m.snap.Activity, 1)

	updated, _ := m.Update(keyPress("c"))
	m = updated.(Model)
	assert.Empty(t, m.snap.Activity)
	assert.Empty(t, a.Store.Snapshot().Activity)
	assert.Contains(t, m.View(), "No recent activity")
}

func TestModel_Refresh(t *testing.T) {
	client := mapper.NewMockClient()
	client.ModelStatusFn = func(_ context.Context, _ string) (service.ModelStatus, error) {
		return service.ModelStatus{Sponsors: []string{"acme"}}, nil
	}
	client.KnowledgeStatsFn = func(_ context.Context) (service.RemoteStats, error) {
		return service.RemoteStats{Models: 2, Mappings: 40}, nil
	}

	a := newTestApp(t, client)
	a.SelectSponsor("acme")

	m := NewModel(a, nil)
	_, cmd := m.Update(keyPress("r"))
	require.NotNil(t, cmd)

	msg := cmd()
	refreshed, ok := msg.(refreshedMsg)
	require.True(t, ok)
	assert.Equal(t, poller.StateReady, refreshed.state)

	updated, _ := m.Update(msg)
	m = updated.(Model)
	assert.True(t, m.snap.Ready)
	assert.Equal(t, 2, m.snap.Stats.Models)
	assert.Equal(t, 40, m.snap.Stats.Mappings)

	view := m.View()
	assert.Contains(t, view, "ready")
	assert.Contains(t, view, "Mappings 40")
}

func TestModel_SnapshotResubscribes(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	updates := make(chan session.Snapshot, 1)
	m := NewModel(a, updates)

	snap := a.Store.Snapshot()
	snap.Status = "Predicting…"
	snap.Loading = true
	snap.Error = "Prediction error"

	updated, cmd := m.Update(snapshotMsg{snap: snap})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.busy())

	view := m.View()
	assert.Contains(t, view, "Predicting…")
	assert.Contains(t, view, "Prediction error")

	close(updates)
	assert.IsType(t, subscriptionClosedMsg{}, cmd())
}

func TestModel_Quit(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	m := NewModel(a, nil)

	updated, cmd := m.Update(keyPress("q"))
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())

	_, cmd = NewModel(a, nil).Update(keyPress("ctrl+c"))
	require.NotNil(t, cmd)
}

func TestModel_WindowResize(t *testing.T) {
	a := newTestApp(t, mapper.NewMockClient())
	m := NewModel(a, nil, WithActivityRows(5))

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 140, Height: 40})
	m = updated.(Model)
	assert.Equal(t, 140, m.width)
	assert.Equal(t, 140, m.help.Width)
}

func TestPublishKeepsNewest(t *testing.T) {
	updates := make(chan session.Snapshot, 1)

	publish(updates, session.Snapshot{Status: "first"})
	publish(updates, session.Snapshot{Status: "second"})

	select {
	case snap := <-updates:
		assert.Equal(t, "second", snap.Status)
	default:
		t.Fatal("expected a pending snapshot")
	}
}

func TestModel_RefreshRestartsRunningPoller(t *testing.T) {
	client := mapper.NewMockClient()
	client.ModelStatusFn = func(_ context.Context, _ string) (service.ModelStatus, error) {
		return service.ModelStatus{Sponsors: []string{"acme"}}, nil
	}

	a := newTestApp(t, client)
	a.SelectSponsor("acme")
	a.Start(context.Background())
	require.Eventually(t, a.Store.Ready, time.Second, 5*time.Millisecond)

	m := NewModel(a, nil)
	_, cmd := m.Update(keyPress("r"))
	require.NotNil(t, cmd)

	refreshed, ok := cmd().(refreshedMsg)
	require.True(t, ok)
	assert.Equal(t, poller.StateChecking, refreshed.state)
	require.Eventually(t, func() bool { return a.Poller.State() == poller.StateReady }, time.Second, 5*time.Millisecond)
}
