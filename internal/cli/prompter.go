package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Veraticus/edc-mapper/internal/model"
	"github.com/schollz/progressbar/v3"
)

// GroupEditor applies resolution choices to unmapped groups.
type GroupEditor interface {
	SetAction(groupKey string, action model.GroupAction) error
	EditField(groupKey string, field model.GroupField, value string) error
}

// ResolveStats summarises one interactive resolution session.
type ResolveStats struct {
	Resolved int
	Ignored  int
	Skipped  int
}

// Prompter walks the user through unresolved groups one at a time.
type Prompter struct {
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	stats       ResolveStats
}

// NewCLIPrompter creates a new CLI prompter with the given reader and writer.
func NewCLIPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Prompter{
		reader: NewNonBlockingReader(reader),
		writer: writer,
	}
}

// Stats returns the counts of the last ResolveGroups call.
func (p *Prompter) Stats() ResolveStats {
	return p.stats
}

// ResolveGroups asks, for each group, which candidate item to keep and
// which IMPACT visit it maps to. Ignored groups are skipped unless
// includeIgnored is set. Choices are applied to editor as they are made, so
// an interrupted session keeps what was already answered.
func (p *Prompter) ResolveGroups(ctx context.Context, groups []model.UnmappedGroup, editor GroupEditor, includeIgnored bool) (ResolveStats, error) {
	p.stats = ResolveStats{}

	pending := make([]model.UnmappedGroup, 0, len(groups))
	for _, g := range groups {
		if g.IsIgnored && !includeIgnored {
			continue
		}
		pending = append(pending, g)
	}
	if len(pending) == 0 {
		if _, err := fmt.Fprintln(p.writer, FormatInfo("No unmapped groups to resolve.")); err != nil {
			return p.stats, fmt.Errorf("failed to write message: %w", err)
		}
		return p.stats, nil
	}

	p.initProgressBar(len(pending))
	for i := range pending {
		if err := p.resolveGroup(ctx, &pending[i], editor); err != nil {
			return p.stats, err
		}
		p.updateProgress()
	}

	p.showCompletion()
	return p.stats, nil
}

func (p *Prompter) resolveGroup(ctx context.Context, group *model.UnmappedGroup, editor GroupEditor) error {
	if _, err := fmt.Fprintln(p.writer); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	if _, err := fmt.Fprintln(p.writer, RenderBox("Unmapped Study Event: "+group.StudyEventOID, formatGroup(group))); err != nil {
		return fmt.Errorf("failed to write group box: %w", err)
	}

	valid := []string{"i", "s"}
	for i := range group.Candidates {
		valid = append(valid, strconv.Itoa(i+1))
	}

	choice, err := p.promptChoice(ctx, "Item number, [i]gnore or [s]kip", valid)
	if err != nil {
		return err
	}

	switch choice {
	case "s":
		p.stats.Skipped++
		return nil
	case "i":
		if err := editor.SetAction(group.Key(), model.ActionIgnore); err != nil {
			return fmt.Errorf("failed to ignore %s: %w", group.Key(), err)
		}
		p.stats.Ignored++
		if _, err := fmt.Fprintln(p.writer, FormatWarning("Ignored "+group.Key())); err != nil {
			slog.Warn("Failed to write ignore confirmation", "error", err)
		}
		return nil
	}

	idx, _ := strconv.Atoi(choice)
	item := group.Candidates[idx-1]

	visit, err := p.promptText(ctx, "IMPACT visit ID", group.ImpactEdit)
	if err != nil {
		return err
	}

	if err := editor.SetAction(group.Key(), model.ActionEdit); err != nil {
		return fmt.Errorf("failed to edit %s: %w", group.Key(), err)
	}
	if err := editor.EditField(group.Key(), model.GroupFieldItem, item); err != nil {
		return fmt.Errorf("failed to set item for %s: %w", group.Key(), err)
	}
	if err := editor.EditField(group.Key(), model.GroupFieldImpact, visit); err != nil {
		return fmt.Errorf("failed to set visit for %s: %w", group.Key(), err)
	}
	p.stats.Resolved++

	if _, err := fmt.Fprintln(p.writer, FormatSuccess(fmt.Sprintf("%s / %s → %s", group.Key(), item, visit))); err != nil {
		slog.Warn("Failed to write resolution confirmation", "error", err)
	}
	return nil
}

func formatGroup(group *model.UnmappedGroup) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Observed items:\n", InfoIcon))
	for i, item := range group.Candidates {
		marker := " "
		if item == group.ItemEdit {
			marker = SuccessIcon
		}
		b.WriteString(fmt.Sprintf("  %s [%d] %s\n", marker, i+1, item))
	}
	if group.ImpactEdit != "" {
		b.WriteString(fmt.Sprintf("\n  Current IMPACT visit: %s\n", group.ImpactEdit))
	}
	if group.IsIgnored {
		b.WriteString(SubtleStyle.Render("\n  Currently ignored") + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprintf(p.writer, "%s", FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", inputError(err)
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

// promptText reads a non-empty value. An empty answer keeps current when
// current is set.
func (p *Prompter) promptText(ctx context.Context, prompt, current string) (string, error) {
	label := prompt
	if current != "" {
		label = fmt.Sprintf("%s [%s]", prompt, current)
	}

	for {
		if _, err := fmt.Fprintf(p.writer, "%s", FormatPrompt(label)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.reader.ReadLine(ctx)
		if err != nil {
			return "", inputError(err)
		}
		if input != "" {
			return input, nil
		}
		if current != "" {
			return current, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("A value is required.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func inputError(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("input terminated")
	}
	return err
}

func (p *Prompter) initProgressBar(total int) {
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("[cyan][bold]Resolving groups...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *Prompter) updateProgress() {
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) showCompletion() {
	summary := fmt.Sprintf("%s Results:\n", ChartIcon) +
		fmt.Sprintf("  • Resolved: %d\n", p.stats.Resolved) +
		fmt.Sprintf("  • Ignored: %d\n", p.stats.Ignored) +
		fmt.Sprintf("  • Skipped: %d\n\n", p.stats.Skipped) +
		SubtleStyle.Render("Run 'edcmap save' to send the resolved mappings.")

	if _, err := fmt.Fprintln(p.writer, "\n"+RenderBox("Resolution Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}
