package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/linuxmatters/voiceprep/internal/logging"
	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// Color palette
var (
	accentColor  = lipgloss.Color("#A40000")
	successColor = lipgloss.Color("#00AA00")
	activeColor  = lipgloss.Color("#FFA500")
	mutedColor   = lipgloss.Color("#888888")
)

const panelWidth = 64

// renderProcessingView renders the main processing view
func renderProcessingView(m Model) string {
	var b strings.Builder

	b.WriteString(renderHeader(m))
	b.WriteString("\n\n")

	b.WriteString(renderStageQueue(m))
	b.WriteString("\n")

	b.WriteString(renderOverallProgress(m))

	return b.String()
}

// renderHeader renders the application header
func renderHeader(m Model) string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(accentColor).
		Render("Voiceprep 🎙 - Voice Dataset Preparation")

	detail := fmt.Sprintf("Speaker %s", m.Speaker)
	if m.Intake != nil {
		detail += fmt.Sprintf(" · %d file(s)", m.Intake.Files)
		if m.Intake.Moved > 0 {
			detail += fmt.Sprintf(" · %d gathered", m.Intake.Moved)
		}
	}
	subtitle := lipgloss.NewStyle().
		Foreground(mutedColor).
		Italic(true).
		Render(detail)

	return title + "\n" + subtitle
}

// renderStageQueue renders every selected stage with its status
func renderStageQueue(m Model) string {
	var b strings.Builder
	for _, sp := range m.Stages {
		b.WriteString(renderStageEntry(sp, m.spinnerIndex))
		b.WriteString("\n")
	}
	return b.String()
}

// renderStageEntry renders a single stage in the queue
func renderStageEntry(sp StageProgress, spinnerIndex int) string {
	title := sp.Stage.Title()

	switch sp.Status {
	case StatusComplete:
		icon := lipgloss.NewStyle().Foreground(successColor).Render("✓")
		return fmt.Sprintf(" %s %s\n   %s", icon, title, stageCounts(sp))

	case StatusRunning:
		icon := lipgloss.NewStyle().Foreground(activeColor).Render(spinnerFrames[spinnerIndex%len(spinnerFrames)])
		return fmt.Sprintf(" %s %s\n%s", icon, title, renderStageDetails(sp))

	case StatusError:
		icon := lipgloss.NewStyle().Foreground(accentColor).Render("✗")
		return fmt.Sprintf(" %s %s\n   %s", icon, title, stageCounts(sp))

	case StatusInterrupted:
		icon := lipgloss.NewStyle().Foreground(activeColor).Render("■")
		return fmt.Sprintf(" %s %s\n   Interrupted after %d of %d file(s)", icon, title, sp.Finished, sp.Total)

	default:
		icon := lipgloss.NewStyle().Foreground(mutedColor).Render("○")
		return fmt.Sprintf(" %s %s\n   Queued...", icon, title)
	}
}

// stageCounts summarises a finished stage on one line
func stageCounts(sp StageProgress) string {
	parts := []string{fmt.Sprintf("%d file(s)", sp.Total), fmt.Sprintf("%d written", sp.Outputs)}
	if sp.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", sp.Skipped))
	}
	if sp.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", sp.Failed))
	}
	parts = append(parts, fmt.Sprintf("%.1fs", sp.ElapsedTime.Seconds()))
	return strings.Join(parts, " | ")
}

// renderStageDetails renders detailed progress for the running stage
func renderStageDetails(sp StageProgress) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accentColor).
		Padding(0, 1).
		Width(panelWidth)

	var content strings.Builder

	content.WriteString(fmt.Sprintf("%d of %d file(s)\n", sp.Finished, sp.Total))
	content.WriteString(renderProgressBar(sp.Progress(), 40))
	content.WriteString("\n\n")

	elapsed := sp.ElapsedTime.Seconds()
	var remaining float64
	if p := sp.Progress(); p > 0 {
		remaining = elapsed/p - elapsed
	}
	content.WriteString(fmt.Sprintf("⏱  Elapsed: %.1fs | Remaining: ~%.1fs", elapsed, remaining))

	if sp.LastFile != "" {
		content.WriteString(fmt.Sprintf("\n📄 Last: %s", sp.LastFile))
	}
	if sp.Failed > 0 {
		content.WriteString(fmt.Sprintf(" | %d failed", sp.Failed))
	}

	return box.Render(content.String())
}

// renderProgressBar renders a progress bar
func renderProgressBar(progress float64, width int) string {
	progress = min(max(progress, 0), 1)
	filled := int(progress * float64(width))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %d%%", bar, int(progress*100))
}

// renderOverallProgress renders the footer
func renderOverallProgress(m Model) string {
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(mutedColor).
		Padding(0, 1).
		Width(panelWidth)

	var content string
	switch {
	case m.Cancelling:
		content = "Stopping after the files in progress... (press q again to quit now)"
	case m.CurrentIndex >= 0 && m.CurrentIndex < len(m.Stages):
		content = fmt.Sprintf("Stage %d of %d · q to stop", m.CurrentIndex+1, len(m.Stages))
	default:
		content = "Gathering audio files..."
	}

	return box.Render(content)
}

// renderCompletionSummary renders the final summary
func renderCompletionSummary(m Model) string {
	var b strings.Builder

	var header string
	switch {
	case m.Err == nil:
		header = lipgloss.NewStyle().Bold(true).Foreground(successColor).Render("✨ Preparation Complete!")
	case pipeline.ExitCode(m.Err) == pipeline.ExitInterrupted:
		header = lipgloss.NewStyle().Bold(true).Foreground(activeColor).Render("■ Interrupted")
	default:
		header = lipgloss.NewStyle().Bold(true).Foreground(accentColor).Render("✗ Finished with failures")
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	for _, sp := range m.Stages {
		b.WriteString(renderStageEntry(sp, 0))
		b.WriteString("\n")
	}

	if table := logging.SummaryTable(m.Report).String(); table != "" {
		b.WriteString("\n")
		b.WriteString(table)
	}

	if m.Err != nil && pipeline.ExitCode(m.Err) != pipeline.ExitInterrupted {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(accentColor).Render("Error: "))
		b.WriteString(m.Err.Error())
		b.WriteString("\n")
	}

	if len(m.Tips) > 0 {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Bold(true).Render("Tips"))
		b.WriteString("\n")
		b.WriteString(logging.FormatTips(m.Tips, panelWidth))
	}

	b.WriteString("\n")
	b.WriteString(strings.Repeat("─", panelWidth))
	b.WriteString("\n")
	if m.Err == nil && m.Report != nil && len(m.Report.Stages) > 0 {
		b.WriteString(fmt.Sprintf("%s is ready in %s\n", m.Speaker, lastStageDir(m)))
	}

	return b.String()
}

// lastStageDir names the directory holding the prepared files
func lastStageDir(m Model) string {
	for _, s := range m.Report.Stages {
		for _, r := range s.Results {
			if len(r.Outputs) > 0 {
				return filepath.Dir(r.Outputs[0])
			}
		}
	}
	return "the workspace"
}
