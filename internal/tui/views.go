package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

const (
	timeColumnWidth = 19
	typeColumnWidth = 14
)

func newActivityTable(cfg Config) table.Model {
	t := table.New(
		table.WithColumns(activityColumns(cfg.Width)),
		table.WithHeight(cfg.ActivityRows),
		table.WithFocused(true),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(cfg.Theme.Border).
		BorderBottom(true).
		Bold(true)
	styles.Selected = cfg.Theme.Selected
	t.SetStyles(styles)
	return t
}

func activityColumns(width int) []table.Column {
	message := width - timeColumnWidth - typeColumnWidth - 8
	if message < 20 {
		message = 20
	}
	return []table.Column{
		{Title: "Time", Width: timeColumnWidth},
		{Title: "Type", Width: typeColumnWidth},
		{Title: "Message", Width: message},
	}
}

func (m *Model) resizeActivity() {
	m.activity.SetColumns(activityColumns(m.width))
	rows := m.height - 16
	if rows < 3 {
		rows = 3
	}
	if rows > m.config.ActivityRows {
		rows = m.config.ActivityRows
	}
	m.activity.SetHeight(rows)
}

func (m *Model) syncActivity() {
	rows := make([]table.Row, 0, len(m.snap.Activity))
	for _, e := range m.snap.Activity {
		rows = append(rows, table.Row{
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			string(e.Type),
			e.Message,
		})
	}
	m.activity.SetRows(rows)
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatus(),
		m.renderStats(),
		m.renderActivity(),
	}
	if m.config.ShowHelp {
		sections = append(sections, m.help.View(m.keymap))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	sponsor := m.snap.Sponsor
	if sponsor == "" {
		sponsor = lipgloss.NewStyle().Foreground(m.theme.Muted).Render("no sponsor")
	} else {
		sponsor = m.theme.Bold.Render(sponsor)
	}

	badge := m.theme.StatusWarning.Render("○ no model")
	if m.snap.Ready {
		badge = m.theme.StatusSuccess.Render("● ready")
	}

	title := m.theme.Title.Render("EDC Mapper")
	return fmt.Sprintf("%s  %s  %s", title, sponsor, badge)
}

func (m Model) renderStatus() string {
	indicator := " "
	if m.busy() {
		indicator = m.spinner.View()
	}

	lines := []string{
		fmt.Sprintf("%s %s %s", indicator, m.theme.Normal.Render(m.snap.Status),
			m.theme.StatusPending.Render("("+m.pollState.String()+")")),
	}
	if m.snap.Error != "" {
		lines = append(lines, m.theme.StatusError.Render("✗ "+m.snap.Error))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStats() string {
	stats := m.snap.Stats
	sponsors := strings.Join(m.snap.Sponsors, ", ")
	if sponsors == "" {
		sponsors = "—"
	}

	content := fmt.Sprintf("Models %d   Mappings %d   Accuracy %.2f%%\n", stats.Models, stats.Mappings, stats.Accuracy) +
		fmt.Sprintf("Sponsors %s\n", sponsors) +
		fmt.Sprintf("Last updated %s", stats.LastUpdatedLabel())
	return m.theme.RoundedBox.Render(content)
}

func (m Model) renderActivity() string {
	heading := m.theme.Subtitle.Render("Recent activity")
	if len(m.snap.Activity) == 0 {
		return heading + "\n" + m.theme.StatusPending.Render("No recent activity")
	}
	return heading + "\n" + m.activity.View()
}
