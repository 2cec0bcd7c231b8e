// Package cli provides styled terminal output and the interactive group
// resolver.
package cli

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	PrimaryColor = lipgloss.Color("#5B8DEF")
	SuccessColor = lipgloss.Color("#3FB68B")
	WarningColor = lipgloss.Color("#F2C14E")
	ErrorColor   = lipgloss.Color("#E5484D")
	InfoColor    = lipgloss.Color("#7CC4FA")
	SubtleColor  = lipgloss.Color("#6B7280")
	BorderColor  = lipgloss.Color("#3F3F46")
)

// Text styles.
var (
	// TitleStyle is used for box titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)
	// SubtitleStyle labels the document a listing belongs to.
	SubtitleStyle = lipgloss.NewStyle().Foreground(SubtleColor).Italic(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(SuccessColor)
	WarningStyle = lipgloss.NewStyle().Foreground(WarningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(ErrorColor)
	InfoStyle    = lipgloss.NewStyle().Foreground(InfoColor)
	SubtleStyle  = lipgloss.NewStyle().Foreground(SubtleColor)
	BoldStyle    = lipgloss.NewStyle().Bold(true)
	PromptStyle  = lipgloss.NewStyle().Bold(true).Foreground(PrimaryColor)

	// TableCellStyle pads table cells.
	TableCellStyle = lipgloss.NewStyle().PaddingRight(2)

	// BoxStyle frames status and statistics panels.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)
)

// Readiness badges.
var (
	badgeStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#111827")).
			Padding(0, 1)
	ReadyStyle    = badgeStyle.Background(SuccessColor)
	NotReadyStyle = badgeStyle.Background(WarningColor)
)

// Icons.
const (
	SuccessIcon = "✓"
	ErrorIcon   = "✗"
	WarningIcon = "⚠️"
	InfoIcon    = "ℹ️"
	ChartIcon   = "📊"
	IgnoreIcon  = "⊘"
)

// FormatSuccess prefixes message with the success icon.
func FormatSuccess(message string) string {
	return SuccessStyle.Render(SuccessIcon + " " + message)
}

// FormatError prefixes message with the error icon.
func FormatError(message string) string {
	return ErrorStyle.Render(ErrorIcon + " " + message)
}

// FormatWarning prefixes message with the warning icon.
func FormatWarning(message string) string {
	return WarningStyle.Render(WarningIcon + " " + message)
}

// FormatInfo prefixes message with the info icon.
func FormatInfo(message string) string {
	return InfoStyle.Render(InfoIcon + " " + message)
}

// Badge renders the readiness badge.
func Badge(ready bool) string {
	if ready {
		return ReadyStyle.Render("READY")
	}
	return NotReadyStyle.Render("NO MODEL")
}

// FormatPrompt renders a prompt followed by an input arrow.
func FormatPrompt(prompt string) string {
	return PromptStyle.Render(prompt + " → ")
}

// RenderBox frames content under a title.
func RenderBox(title, content string) string {
	return BoxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, TitleStyle.Render(title), content))
}
