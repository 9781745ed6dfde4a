// Package metrics records pipeline run measurements in Prometheus format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics for a pipeline run
type Metrics struct {
	registry *prometheus.Registry

	// File metrics
	FilesProcessed *prometheus.CounterVec
	AudioWritten   *prometheus.CounterVec

	// Stage metrics
	StageFiles    *prometheus.GaugeVec
	StageDuration *prometheus.GaugeVec
	StageRuns     *prometheus.CounterVec

	LastRun prometheus.Gauge
}

// NewMetrics creates the metrics on their own registry so a run can be
// written out without the process-wide collectors
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceprep_files_processed_total",
			Help: "Total number of files processed, by stage and outcome",
		}, []string{"stage", "outcome"}),
		AudioWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceprep_audio_written_seconds_total",
			Help: "Total length of audio written, by stage",
		}, []string{"stage"}),

		StageFiles: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voiceprep_stage_files",
			Help: "Number of files found at the start of the stage",
		}, []string{"stage"}),
		StageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "voiceprep_stage_duration_seconds",
			Help: "Wall-clock duration of the stage",
		}, []string{"stage"}),
		StageRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voiceprep_stage_runs_total",
			Help: "Total number of completed or interrupted stage runs",
		}, []string{"stage"}),

		LastRun: factory.NewGauge(prometheus.GaugeOpts{
			Name: "voiceprep_last_run_timestamp_seconds",
			Help: "Unix time the last run finished",
		}),
	}
}

// Registry returns the registry holding the metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// FileProcessed records one file's outcome and the audio it produced
func (m *Metrics) FileProcessed(stage, outcome string, audio time.Duration) {
	m.FilesProcessed.WithLabelValues(stage, outcome).Inc()
	if audio > 0 {
		m.AudioWritten.WithLabelValues(stage).Add(audio.Seconds())
	}
}

// StageCompleted records the size and duration of a finished stage
func (m *Metrics) StageCompleted(stage string, files int, elapsed time.Duration) {
	m.StageFiles.WithLabelValues(stage).Set(float64(files))
	m.StageDuration.WithLabelValues(stage).Set(elapsed.Seconds())
	m.StageRuns.WithLabelValues(stage).Inc()
}

// WriteFile stamps the run time and writes every metric to path in the text
// exposition format, suitable for the node_exporter textfile collector
func (m *Metrics) WriteFile(path string) error {
	m.LastRun.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}
