package ui

import (
	"time"

	"github.com/linuxmatters/voiceprep/internal/logging"
	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// IntakeMsg reports the workspace after intake
type IntakeMsg struct {
	Report pipeline.IntakeReport
}

// StageStartMsg indicates a stage has scanned its files and started
type StageStartMsg struct {
	Stage pipeline.Stage
	Files int
}

// FileDoneMsg indicates one file has finished within a stage
type FileDoneMsg struct {
	Stage  pipeline.Stage
	Result pipeline.FileResult
}

// StageDoneMsg indicates a stage has finished, including cleanup
type StageDoneMsg struct {
	Report pipeline.StageReport
}

// AllCompleteMsg indicates the run has ended
type AllCompleteMsg struct {
	Report *pipeline.RunReport
	Err    error
	Tips   []logging.Tip
}

// tickMsg is sent for spinner and timer animation
type tickMsg time.Time
