package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// sender is satisfied by *tea.Program
type sender interface {
	Send(msg tea.Msg)
}

// Reporter forwards pipeline progress events to a running Bubbletea program.
// tea.Program.Send is safe for concurrent use, so worker goroutines may call it.
type Reporter struct {
	p sender
}

// NewReporter creates a Reporter that sends to p
func NewReporter(p sender) *Reporter {
	return &Reporter{p: p}
}

func (r *Reporter) IntakeFinished(report pipeline.IntakeReport) {
	r.p.Send(IntakeMsg{Report: report})
}

func (r *Reporter) StageStarted(stage pipeline.Stage, files int) {
	r.p.Send(StageStartMsg{Stage: stage, Files: files})
}

func (r *Reporter) FileFinished(stage pipeline.Stage, result pipeline.FileResult) {
	r.p.Send(FileDoneMsg{Stage: stage, Result: result})
}

func (r *Reporter) StageFinished(report pipeline.StageReport) {
	r.p.Send(StageDoneMsg{Report: report})
}
