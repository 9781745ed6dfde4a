package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// Interactive reports whether f is a terminal that can host the TUI
func Interactive(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// PlainReporter prints one line per event. It is used when stdout is not a
// terminal or --plain is given.
type PlainReporter struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlainReporter creates a PlainReporter writing to w
func NewPlainReporter(w io.Writer) *PlainReporter {
	return &PlainReporter{w: w}
}

func (r *PlainReporter) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, format, args...)
}

func (r *PlainReporter) IntakeFinished(report pipeline.IntakeReport) {
	r.printf("%s %d audio file(s), %d gathered, %d renamed, %d deleted\n",
		KeyStyle.Render("Workspace:"), report.Files, report.Moved, report.Renamed, report.Deleted)
}

func (r *PlainReporter) StageStarted(stage pipeline.Stage, files int) {
	r.printf("%s %s\n", SuccessStyle.Render("==> "+stage.Title()), KeyStyle.Render(fmt.Sprintf("(%d file(s))", files)))
}

func (r *PlainReporter) FileFinished(stage pipeline.Stage, result pipeline.FileResult) {
	name := filepath.Base(result.Input)
	switch result.Outcome {
	case pipeline.OutcomeDone:
		r.printf("  %s %s  %s\n", SuccessStyle.Render("✓"), name, result.Detail)
	case pipeline.OutcomeSkipped:
		r.printf("  %s %s  skipped: %s\n", WarnStyle.Render("-"), name, result.Detail)
	case pipeline.OutcomeFailed:
		r.printf("  %s %s  %v\n", ErrorStyle.Render("✗"), name, result.Err)
	case pipeline.OutcomeCancelled:
		r.printf("  %s %s  not processed\n", WarnStyle.Render("■"), name)
	}
}

func (r *PlainReporter) StageFinished(report pipeline.StageReport) {
	status := "done"
	if report.Interrupted {
		status = "interrupted"
	}
	r.printf("    %s %d written, %d skipped, %d failed in %.1fs\n",
		KeyStyle.Render(status+":"),
		report.Outputs(), report.Count(pipeline.OutcomeSkipped), report.Count(pipeline.OutcomeFailed),
		report.Elapsed.Seconds())
}
