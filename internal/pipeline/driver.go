package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/voiceprep/internal/audio"
	"github.com/linuxmatters/voiceprep/internal/processor"
)

// Metrics receives run measurements. The metrics package provides the
// Prometheus implementation.
type Metrics interface {
	FileProcessed(stage, outcome string, audio time.Duration)
	StageCompleted(stage string, files int, elapsed time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) FileProcessed(string, string, time.Duration) {}
func (nopMetrics) StageCompleted(string, int, time.Duration)   {}

// Driver runs the selected stages over a speaker's workspace
type Driver struct {
	cfg        Config
	src        audio.Source
	reporter   Reporter
	log        logrus.FieldLogger
	metrics    Metrics
	skipIntake bool
}

// Option configures a Driver
type Option func(*Driver)

// WithReporter sets the progress reporter
func WithReporter(r Reporter) Option {
	return func(d *Driver) { d.reporter = r }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(d *Driver) { d.log = log }
}

// WithMetrics sets the metrics recorder
func WithMetrics(m Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// WithSource sets the audio source used to decode files
func WithSource(src audio.Source) Option {
	return func(d *Driver) { d.src = src }
}

// WithoutIntake skips workspace intake; the speaker directory is used as found
func WithoutIntake() Option {
	return func(d *Driver) { d.skipIntake = true }
}

// New validates cfg and creates a Driver
func New(cfg Config, opts ...Option) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Formats = NormalizeFormats(cfg.Formats)

	discard := logrus.New()
	discard.SetOutput(io.Discard)

	d := &Driver{
		cfg:      cfg,
		src:      audio.NewFileSource(),
		reporter: NopReporter{},
		log:      discard,
		metrics:  nopMetrics{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Config returns the validated configuration
func (d *Driver) Config() Config {
	return d.cfg
}

// Run performs intake and then each selected stage in order.
//
// A stage with failures stops the run unless ContinueOnError is set, in which
// case every stage runs and all failures are returned together. Cancelling ctx
// stops new work from being dispatched; the interrupted stage does no cleanup.
func (d *Driver) Run(ctx context.Context) (*RunReport, error) {
	start := time.Now()
	report := &RunReport{}

	d.log.WithFields(logrus.Fields{
		"root":    d.cfg.Root,
		"speaker": d.cfg.Speaker,
		"stages":  fmt.Sprint(d.cfg.Selected()),
		"workers": d.cfg.WorkerCount(),
	}).Info("Starting pipeline")

	if d.skipIntake {
		if err := os.MkdirAll(d.cfg.SpeakerDir(), 0o755); err != nil {
			return report, &processor.Error{Kind: processor.KindIO, Op: "intake", Path: d.cfg.SpeakerDir(), Err: err}
		}
	} else {
		intake, err := Intake(d.cfg.Root, d.cfg.Speaker, d.cfg.Formats, d.log)
		if err != nil {
			return report, &processor.Error{Kind: processor.KindIO, Op: "intake", Path: d.cfg.Root, Err: err}
		}
		report.Intake = intake
		d.reporter.IntakeFinished(*intake)
	}

	var failures *multierror.Error
	for _, stage := range d.cfg.Selected() {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}

		stageReport, err := d.runStage(ctx, stage)
		report.Stages = append(report.Stages, stageReport)
		if err == nil {
			continue
		}

		if ctx.Err() != nil || !isStageError(err) {
			report.Elapsed = time.Since(start)
			return report, multierror.Append(failures, err).ErrorOrNil()
		}
		failures = multierror.Append(failures, err)
		if !d.cfg.ContinueOnError {
			break
		}
		d.log.WithField("stage", stage.String()).Warn("Continuing after failures")
	}

	report.Elapsed = time.Since(start)
	d.log.WithField("elapsed", report.Elapsed.String()).Info("Pipeline finished")

	if failures == nil {
		return report, nil
	}
	if len(failures.Errors) == 1 {
		return report, failures.Errors[0]
	}
	return report, failures
}

func isStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// runStage rescans the speaker directory and runs one stage over it
func (d *Driver) runStage(ctx context.Context, stage Stage) (StageReport, error) {
	log := d.log.WithField("stage", stage.String())
	start := time.Now()

	files, err := Scan(d.cfg.SpeakerDir(), d.cfg.Formats)
	if err != nil {
		return StageReport{Stage: stage}, &processor.Error{Kind: processor.KindIO, Op: stage.String(), Path: d.cfg.SpeakerDir(), Err: err}
	}

	log.WithField("files", len(files)).Info("Stage started")
	d.reporter.StageStarted(stage, len(files))

	var results []FileResult
	var failures *multierror.Error
	switch stage {
	case StageTrim, StageSegment:
		results = d.runPool(ctx, stage, files)
	case StageNormalize:
		results = d.runSequential(ctx, stage, files)
	case StageRename:
		var err error
		results, err = d.rename(files)
		if err != nil {
			failures = multierror.Append(failures, err)
		}
	}

	interrupted := ctx.Err() != nil
	if stage != StageRename {
		for _, r := range results {
			if r.Outcome == OutcomeFailed {
				failures = multierror.Append(failures, r.Err)
			}
		}
	}

	// Superseded inputs are deleted only once every task has finished
	if !interrupted && (stage == StageTrim || stage == StageSegment) {
		for _, err := range d.cleanup(results) {
			failures = multierror.Append(failures, err)
		}
	}

	report := StageReport{
		Stage:       stage,
		Results:     results,
		Elapsed:     time.Since(start),
		Interrupted: interrupted,
	}
	d.metrics.StageCompleted(stage.String(), len(files), report.Elapsed)
	d.reporter.StageFinished(report)

	log.WithFields(logrus.Fields{
		"done":    report.Count(OutcomeDone),
		"skipped": report.Count(OutcomeSkipped),
		"failed":  report.Count(OutcomeFailed),
		"outputs": report.Outputs(),
		"elapsed": report.Elapsed.String(),
	}).Info("Stage finished")

	if interrupted {
		return report, ctx.Err()
	}
	if failures != nil {
		return report, &StageError{Stage: stage, Files: len(files), Failures: failures}
	}
	return report, nil
}

// runPool processes files on a bounded worker pool. Each task records its own
// result and never returns an error, so one failure does not cancel the others.
func (d *Driver) runPool(ctx context.Context, stage Stage, files []string) []FileResult {
	results := make([]FileResult, len(files))

	var g errgroup.Group
	g.SetLimit(d.cfg.WorkerCount())
	for i, path := range files {
		item := WorkItem{Index: i, Path: path, Stage: stage}
		if ctx.Err() != nil {
			results[i] = FileResult{Input: path, Outcome: OutcomeCancelled, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			results[item.Index] = d.process(ctx, item)
			d.finish(stage, results[item.Index])
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// runSequential processes files one at a time in file order
func (d *Driver) runSequential(ctx context.Context, stage Stage, files []string) []FileResult {
	results := make([]FileResult, len(files))
	for i, path := range files {
		if ctx.Err() != nil {
			results[i] = FileResult{Input: path, Outcome: OutcomeCancelled, Err: ctx.Err()}
			continue
		}
		results[i] = d.process(ctx, WorkItem{Index: i, Path: path, Stage: stage})
		d.finish(stage, results[i])
	}
	return results
}

func (d *Driver) finish(stage Stage, r FileResult) {
	entry := d.log.WithFields(logrus.Fields{
		"stage":   stage.String(),
		"file":    filepath.Base(r.Input),
		"outcome": r.Outcome.String(),
		"outputs": len(r.Outputs),
	})
	if r.Err != nil {
		entry.WithError(r.Err).Warn("File failed")
	} else {
		entry.Debug("File finished")
	}
	d.metrics.FileProcessed(stage.String(), r.Outcome.String(), r.Audio)
	d.reporter.FileFinished(stage, r)
}

// process runs one stage operation on one file
func (d *Driver) process(ctx context.Context, item WorkItem) FileResult {
	start := time.Now()
	result := FileResult{Input: item.Path}

	switch item.Stage {
	case StageTrim:
		res, err := processor.TrimFile(ctx, d.src, item.Path, processor.CutName(item.Path), d.cfg.Trim)
		if err != nil {
			result.Err = err
			break
		}
		result.Outputs = []string{res.Output}
		result.Audio = res.OutputDuration
		result.Detail = fmt.Sprintf("%.1fs → %.1fs", res.InputDuration.Seconds(), res.OutputDuration.Seconds())

	case StageSegment:
		res, err := processor.SegmentFile(ctx, d.src, item.Path, d.cfg.SegmentLength)
		if err != nil {
			result.Err = err
			break
		}
		result.Outputs = res.Outputs
		result.Audio = res.Total
		if len(res.Outputs) == 0 {
			result.Outcome = OutcomeSkipped
			result.Detail = fmt.Sprintf("shorter than %.0fs", processor.MinimumSegmentSeconds)
		} else {
			result.Detail = fmt.Sprintf("%d segments", len(res.Outputs))
		}

	case StageNormalize:
		res, err := processor.NormalizeFile(ctx, d.src, item.Path, d.cfg.TargetDBFS)
		if err != nil {
			result.Err = err
			break
		}
		result.Outputs = []string{res.Output}
		result.Clipped = res.Clipped
		result.Detail = fmt.Sprintf("%.1f dBFS %+.1f dB", res.InputDBFS, res.GainDB)
		if res.Clipped > 0 {
			result.Detail += fmt.Sprintf(", %d clipped", res.Clipped)
		}
		if meta, err := d.src.Probe(ctx, res.Output); err == nil {
			result.Audio = audio.FramesToDuration(meta.Frames, meta.SampleRate)
		}

	default:
		result.Err = fmt.Errorf("stage %s does not process single files", item.Stage)
	}

	result.Elapsed = time.Since(start)
	if result.Err != nil {
		if errors.Is(result.Err, context.Canceled) || errors.Is(result.Err, context.DeadlineExceeded) {
			result.Outcome = OutcomeCancelled
		} else {
			result.Outcome = OutcomeFailed
		}
	}
	return result
}

// rename renames the whole file set as one batch
func (d *Driver) rename(files []string) ([]FileResult, error) {
	start := time.Now()
	targets, err := processor.RenameBatch(files, d.cfg.Speaker)

	results := make([]FileResult, len(files))
	for i, path := range files {
		results[i] = FileResult{Input: path, Elapsed: time.Since(start)}
		if err != nil {
			results[i].Outcome = OutcomeFailed
			results[i].Err = err
		} else {
			results[i].Outputs = []string{targets[i]}
			results[i].Detail = filepath.Base(targets[i])
		}
		d.finish(StageRename, results[i])
	}
	return results, err
}

// cleanup deletes the inputs of tasks that finished or were skipped.
// Failed and cancelled inputs stay in place.
func (d *Driver) cleanup(results []FileResult) []error {
	var errs []error
	for _, r := range results {
		if r.Outcome != OutcomeDone && r.Outcome != OutcomeSkipped {
			continue
		}
		if err := os.Remove(r.Input); err != nil && !os.IsNotExist(err) {
			errs = append(errs, &processor.Error{Kind: processor.KindIO, Op: "cleanup", Path: r.Input, Err: err})
			continue
		}
		d.log.WithField("file", filepath.Base(r.Input)).Debug("Removed superseded input")
	}
	return errs
}
