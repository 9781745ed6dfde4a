package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// ReportData contains everything needed to write a run report
type ReportData struct {
	Config    pipeline.Config
	Report    *pipeline.RunReport
	StartTime time.Time
	EndTime   time.Time
	Err       error // run error, nil on success
}

// ReportPath returns the default report location: {speaker}-voiceprep.log in
// the working directory, outside the workspace so intake never removes it
func ReportPath(speaker string) string {
	return speaker + "-voiceprep.log"
}

// GenerateReport writes a run report to path.
//
// Report structure:
// 1. Header - workspace, speaker and timestamp
// 2. Settings - parameters of the selected stages
// 3. Intake - how the workspace was tidied
// 4. Stage Summary - one column per stage
// 5. Per-stage file details
// 6. Failures - every failure with its kind
func GenerateReport(path string, data ReportData) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := WriteReport(f, data); err != nil {
		return err
	}
	return f.Close()
}

// WriteReport writes the report text to w
func WriteReport(w io.Writer, data ReportData) error {
	ew := &errWriter{w: w}

	writeReportHeader(ew, data)
	writeSettings(ew, data.Config)
	if data.Report != nil {
		writeIntake(ew, data.Report.Intake)
		writeStageSummary(ew, data.Report)
		for _, stage := range data.Report.Stages {
			writeStageDetails(ew, stage)
		}
		writeFailures(ew, data.Report)
	}

	if ew.err != nil {
		return fmt.Errorf("failed to write report: %w", ew.err)
	}
	return nil
}

// errWriter remembers the first write error so the section writers stay linear
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}

func (e *errWriter) println(s string) {
	e.printf("%s\n", s)
}

// writeSection writes a section title underlined with dashes
func writeSection(w *errWriter, title string) {
	w.println(title)
	w.println(strings.Repeat("-", len(title)))
}

func writeReportHeader(w *errWriter, data ReportData) {
	w.println("Voiceprep Run Report")
	w.println("====================")
	w.printf("Workspace: %s\n", data.Config.Root)
	w.printf("Speaker:   %s\n", data.Config.Speaker)
	w.printf("Finished:  %s\n", data.EndTime.Format("2006-01-02 15:04:05 MST"))
	w.printf("Elapsed:   %s\n", formatDuration(data.EndTime.Sub(data.StartTime)))
	if data.Err != nil {
		w.printf("Result:    failed (exit %d): %v\n", pipeline.ExitCode(data.Err), data.Err)
	} else {
		w.println("Result:    success")
	}
	w.println("")
}

func writeSettings(w *errWriter, cfg pipeline.Config) {
	writeSection(w, "Settings")

	names := make([]string, 0, len(cfg.Selected()))
	for _, s := range cfg.Selected() {
		names = append(names, s.String())
	}
	w.printf("Stages:  %s\n", strings.Join(names, ", "))
	w.printf("Formats: %s\n", strings.Join(cfg.Formats, ", "))
	w.printf("Workers: %d\n", cfg.WorkerCount())
	if cfg.Has(pipeline.StageTrim) {
		w.printf("Trim:    threshold %s dBFS, minimum silence %s, padding %s\n",
			formatMetric(cfg.Trim.ThresholdDBFS, 1), cfg.Trim.MinSilence, cfg.Trim.Padding)
	}
	if cfg.Has(pipeline.StageSegment) {
		w.printf("Segment: %s s\n", formatSeconds(cfg.SegmentLength))
	}
	if cfg.Has(pipeline.StageNormalize) {
		w.printf("Target:  %s dBFS\n", formatMetricDB(cfg.TargetDBFS, 1))
	}
	w.println("")
}

func writeIntake(w *errWriter, intake *pipeline.IntakeReport) {
	if intake == nil {
		return
	}
	writeSection(w, "Intake")
	w.printf("Moved into speaker directory: %d", intake.Moved)
	if intake.Renamed > 0 {
		w.printf(" (%d renamed to avoid a clash)", intake.Renamed)
	}
	w.println("")
	w.printf("Non-audio files deleted:      %d\n", intake.Deleted)
	w.printf("Directories removed:          %d\n", intake.Removed)
	w.printf("Audio files to process:       %d\n", intake.Files)
	w.println("")
}

func writeStageSummary(w *errWriter, report *pipeline.RunReport) {
	if len(report.Stages) == 0 {
		return
	}
	writeSection(w, "Stage Summary")
	w.printf("%s\n", SummaryTable(report).String())
}

func writeStageDetails(w *errWriter, stage pipeline.StageReport) {
	title := stage.Stage.Title()
	if stage.Interrupted {
		title += " (interrupted)"
	}
	writeSection(w, title)

	if len(stage.Results) == 0 {
		w.println("No files")
		w.println("")
		return
	}

	t := &Table{Headers: []string{"Outcome", "Written", "Time"}}
	for _, r := range stage.Results {
		note := r.Detail
		if r.Err != nil {
			note = r.Err.Error()
		}
		t.AddRow(filepath.Base(r.Input), []string{
			r.Outcome.String(),
			fmt.Sprint(len(r.Outputs)),
			formatDuration(r.Elapsed),
		}, "", note)
	}
	w.printf("%s\n", t.String())
}

func writeFailures(w *errWriter, report *pipeline.RunReport) {
	var failed []pipeline.FileResult
	for _, s := range report.Stages {
		failed = append(failed, s.Failed()...)
	}
	if len(failed) == 0 {
		return
	}

	writeSection(w, "Failures")
	for _, r := range failed {
		w.printf("%s [exit %d]\n  %v\n", filepath.Base(r.Input), pipeline.ExitCode(r.Err), r.Err)
	}
	w.println("")
}
