// Package ui provides the Bubbletea terminal user interface for voiceprep
package ui

import (
	"context"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/linuxmatters/voiceprep/internal/logging"
	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// StageStatus represents the state of a single stage
type StageStatus int

const (
	StatusQueued StageStatus = iota
	StatusRunning
	StatusComplete
	StatusError
	StatusInterrupted
)

// Spinner frames for the running stage
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StageProgress tracks progress for a single stage
type StageProgress struct {
	Stage  pipeline.Stage
	Status StageStatus

	// File counts
	Total    int
	Finished int
	Failed   int
	Skipped  int
	Outputs  int
	LastFile string

	StartTime   time.Time
	ElapsedTime time.Duration
}

// Progress returns the finished fraction, 0.0 to 1.0
func (s StageProgress) Progress() float64 {
	if s.Total == 0 {
		if s.Status == StatusComplete {
			return 1
		}
		return 0
	}
	return float64(s.Finished) / float64(s.Total)
}

// Model is the Bubbletea model for the pipeline UI
type Model struct {
	Speaker string
	Intake  *pipeline.IntakeReport

	// Stage queue
	Stages       []StageProgress
	CurrentIndex int

	// Global state
	StartTime  time.Time
	Done       bool
	Cancelling bool
	Report     *pipeline.RunReport
	Err        error
	Tips       []logging.Tip

	spinnerIndex int
	cancel       context.CancelFunc

	// Terminal dimensions
	Width  int
	Height int
}

// NewModel creates a UI model for the given stages. cancel is called when the
// user asks to stop; the run then finishes its in-flight files.
func NewModel(speaker string, stages []pipeline.Stage, cancel context.CancelFunc) Model {
	progress := make([]StageProgress, len(stages))
	for i, s := range stages {
		progress[i] = StageProgress{Stage: s, Status: StatusQueued}
	}
	return Model{
		Speaker:      speaker,
		Stages:       progress,
		CurrentIndex: -1,
		StartTime:    time.Now(),
		cancel:       cancel,
	}
}

// Init starts the spinner
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick message every 100ms
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// First press stops dispatching, second press leaves immediately
			if m.Cancelling || m.Done {
				return m, tea.Quit
			}
			m.Cancelling = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case tickMsg:
		if m.Done {
			return m, nil
		}
		m.spinnerIndex = (m.spinnerIndex + 1) % len(spinnerFrames)
		if i := m.CurrentIndex; i >= 0 && i < len(m.Stages) && m.Stages[i].Status == StatusRunning {
			m.Stages[i].ElapsedTime = time.Since(m.Stages[i].StartTime)
		}
		return m, tickCmd()

	case IntakeMsg:
		report := msg.Report
		m.Intake = &report

	case StageStartMsg:
		if i := m.stageIndex(msg.Stage); i >= 0 {
			m.CurrentIndex = i
			m.Stages[i].Status = StatusRunning
			m.Stages[i].Total = msg.Files
			m.Stages[i].StartTime = time.Now()
		}

	case FileDoneMsg:
		if i := m.stageIndex(msg.Stage); i >= 0 {
			m.Stages[i] = updateStageProgress(m.Stages[i], msg.Result)
		}

	case StageDoneMsg:
		if i := m.stageIndex(msg.Report.Stage); i >= 0 {
			m.Stages[i] = completeStage(m.Stages[i], msg.Report)
		}

	case AllCompleteMsg:
		m.Done = true
		m.Report = msg.Report
		m.Err = msg.Err
		m.Tips = msg.Tips
		return m, tea.Quit
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.Width == 0 && !m.Done {
		return "Initializing...\n"
	}
	if m.Done {
		return renderCompletionSummary(m)
	}
	return renderProcessingView(m)
}

func (m Model) stageIndex(stage pipeline.Stage) int {
	for i, s := range m.Stages {
		if s.Stage == stage {
			return i
		}
	}
	return -1
}

// updateStageProgress counts one finished file
func updateStageProgress(sp StageProgress, r pipeline.FileResult) StageProgress {
	sp.Finished++
	sp.Outputs += len(r.Outputs)
	sp.LastFile = filepath.Base(r.Input)
	switch r.Outcome {
	case pipeline.OutcomeFailed:
		sp.Failed++
	case pipeline.OutcomeSkipped:
		sp.Skipped++
	}
	if !sp.StartTime.IsZero() {
		sp.ElapsedTime = time.Since(sp.StartTime)
	}
	return sp
}

// completeStage settles the stage from its final report, which also covers
// files that were never dispatched
func completeStage(sp StageProgress, report pipeline.StageReport) StageProgress {
	sp.Total = len(report.Results)
	sp.Finished = len(report.Results) - report.Count(pipeline.OutcomeCancelled)
	sp.Failed = report.Count(pipeline.OutcomeFailed)
	sp.Skipped = report.Count(pipeline.OutcomeSkipped)
	sp.Outputs = report.Outputs()
	sp.ElapsedTime = report.Elapsed

	switch {
	case report.Interrupted:
		sp.Status = StatusInterrupted
	case sp.Failed > 0:
		sp.Status = StatusError
	default:
		sp.Status = StatusComplete
	}
	return sp
}
