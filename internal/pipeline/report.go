package pipeline

import (
	"time"
)

// Outcome is the result of processing one file in a stage
type Outcome int

const (
	// OutcomeDone means the file was processed and its input superseded
	OutcomeDone Outcome = iota
	// OutcomeSkipped means the file produced no output but was usable (too short to segment)
	OutcomeSkipped
	// OutcomeFailed means processing failed and the input was kept
	OutcomeFailed
	// OutcomeCancelled means the run was interrupted before the file finished
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDone:
		return "done"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// WorkItem is one file handed to a worker. Stage parameters come from the
// driver's Config, which is not modified during a run.
type WorkItem struct {
	Index int
	Path  string
	Stage Stage
}

// FileResult records what happened to one input during a stage
type FileResult struct {
	Input   string
	Outputs []string
	Outcome Outcome
	Err     error
	Detail  string        // short human-readable note, e.g. the gain applied
	Audio   time.Duration // total length of audio written
	Clipped int           // samples clamped at full scale by normalization
	Elapsed time.Duration
}

// StageReport summarises a completed (or interrupted) stage
type StageReport struct {
	Stage       Stage
	Results     []FileResult
	Elapsed     time.Duration
	Interrupted bool
}

// Count returns the number of results with the given outcome
func (r StageReport) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Outputs returns the number of files written by the stage
func (r StageReport) Outputs() int {
	n := 0
	for _, res := range r.Results {
		n += len(res.Outputs)
	}
	return n
}

// Audio returns the total length of audio written by the stage
func (r StageReport) Audio() time.Duration {
	var d time.Duration
	for _, res := range r.Results {
		d += res.Audio
	}
	return d
}

// Failed returns the failed results in file order
func (r StageReport) Failed() []FileResult {
	var out []FileResult
	for _, res := range r.Results {
		if res.Outcome == OutcomeFailed {
			out = append(out, res)
		}
	}
	return out
}

// RunReport summarises a whole pipeline run
type RunReport struct {
	Intake  *IntakeReport
	Stages  []StageReport
	Elapsed time.Duration
}

// Reporter receives progress events. FileFinished is called from worker
// goroutines, so implementations must be safe for concurrent use.
type Reporter interface {
	IntakeFinished(report IntakeReport)
	StageStarted(stage Stage, files int)
	FileFinished(stage Stage, result FileResult)
	StageFinished(report StageReport)
}

// NopReporter discards all events
type NopReporter struct{}

func (NopReporter) IntakeFinished(IntakeReport)    {}
func (NopReporter) StageStarted(Stage, int)        {}
func (NopReporter) FileFinished(Stage, FileResult) {}
func (NopReporter) StageFinished(StageReport)      {}
