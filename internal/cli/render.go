package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SubtleStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return BoldStyle.Foreground(PrimaryColor)
			}
			return TableCellStyle
		})
}

// RenderMappings renders resolved mappings with their edit keys.
func RenderMappings(mappings []model.Mapping) string {
	if len(mappings) == 0 {
		return SubtleStyle.Render("No mappings.")
	}
	t := newTable("Key", "StudyEventOID", "ItemOID", "IMPACTVisitID", "Flag")
	for _, m := range mappings {
		flag := ""
		if m.WronglyMapped != nil && *m.WronglyMapped {
			flag = ErrorIcon
		}
		t.Row(strconv.Itoa(m.Key), m.StudyEventOID, m.ItemOID, m.IMPACTVisitID, flag)
	}
	return t.Render()
}

// RenderGroups renders unmapped groups and their current edits.
func RenderGroups(groups []model.UnmappedGroup) string {
	if len(groups) == 0 {
		return SubtleStyle.Render("No unmapped groups.")
	}
	t := newTable("StudyEventOID", "Candidates", "Item", "IMPACT Visit", "State")
	for i := range groups {
		g := &groups[i]
		t.Row(g.StudyEventOID, strings.Join(g.Candidates, ", "), g.ItemEdit, g.ImpactEdit, groupState(g))
	}
	return t.Render()
}

func groupState(g *model.UnmappedGroup) string {
	switch {
	case g.IsIgnored:
		return IgnoreIcon + " ignored"
	case g.Eligible():
		return SuccessIcon + " ready"
	case g.EditMode:
		return "editing"
	}
	return "unresolved"
}

// RenderValidation renders validation verdicts and their summary.
func RenderValidation(records []model.ValidationRecord, summary model.ValidationSummary) string {
	if len(records) == 0 {
		return SubtleStyle.Render("No validation results.")
	}
	t := newTable("IMPACT Visit", "EDC Visit", "IMPACT Attribute", "EDC Attribute", "Verdict", "Correct Options")
	for _, r := range records {
		verdict := SuccessStyle.Render(SuccessIcon)
		if r.WronglyMapped {
			verdict = ErrorStyle.Render(ErrorIcon)
		}
		options := make([]string, 0, len(r.TrueMappings))
		for _, tm := range r.TrueMappings {
			options = append(options, fmt.Sprintf("%s: %s", tm.Field, strings.Join(tm.CorrectOptions, " | ")))
		}
		t.Row(r.IMPACTVisitID, r.EDCVisitID, r.IMPACTAttributeID, r.EDCAttributeID, verdict, strings.Join(options, "; "))
	}
	footer := fmt.Sprintf("%d records, %d wrong, accuracy %.2f%%", summary.Total, summary.Wrong, summary.Accuracy)
	return t.Render() + "\n" + InfoStyle.Render(footer)
}

// RenderActivity renders the activity log, newest first.
func RenderActivity(entries []model.ActivityEntry) string {
	if len(entries) == 0 {
		return SubtleStyle.Render("No recent activity.")
	}
	t := newTable("Time", "Type", "Message")
	for _, e := range entries {
		t.Row(e.Timestamp.Local().Format("2006-01-02 15:04:05"), string(e.Type), e.Message)
	}
	return t.Render()
}

// RenderStats renders the knowledge statistics.
func RenderStats(stats model.KnowledgeStats) string {
	sponsors := strings.Join(stats.AvailableSponsors, ", ")
	if sponsors == "" {
		sponsors = "—"
	}
	content := fmt.Sprintf("  Models trained:     %d\n", stats.Models) +
		fmt.Sprintf("  Mappings predicted: %d\n", stats.Mappings) +
		fmt.Sprintf("  Accuracy:           %.2f%%\n", stats.Accuracy) +
		fmt.Sprintf("  Sponsors:           %s\n", sponsors) +
		fmt.Sprintf("  Last updated:       %s", stats.LastUpdatedLabel())
	return RenderBox(ChartIcon+" Knowledge Base", content)
}

// RenderStatus renders sponsor, readiness, status and the last error.
func RenderStatus(sponsor string, ready bool, status, lastErr string) string {
	if sponsor == "" {
		sponsor = SubtleStyle.Render("none")
	}
	lines := []string{
		fmt.Sprintf("  Sponsor: %s %s", BoldStyle.Render(sponsor), Badge(ready)),
		fmt.Sprintf("  Status:  %s", status),
	}
	if lastErr != "" {
		lines = append(lines, "  "+FormatError(lastErr))
	}
	return RenderBox("Model Status", strings.Join(lines, "\n"))
}
