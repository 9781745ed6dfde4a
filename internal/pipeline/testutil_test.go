package pipeline

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linuxmatters/voiceprep/internal/audio"
)

const testRate = 16000

// writeTone writes a 16 kHz mono 440 Hz tone at -20 dBFS RMS with optional
// digital silence between each [start, end) pair of seconds in gaps
func writeTone(t *testing.T, path string, secs float64, gaps ...[2]float64) {
	t.Helper()

	frames := int(math.Round(secs * testRate))
	amp := math.Pow(10, -20.0/20.0) * math.Sqrt2
	samples := make([]float64, frames)
	for i := range samples {
		samples[i] = amp * math.Sin(2*math.Pi*440*float64(i)/testRate)
	}
	for _, g := range gaps {
		from := int(math.Round(g[0] * testRate))
		to := min(int(math.Round(g[1]*testRate)), frames)
		for i := from; i < to; i++ {
			samples[i] = 0
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	buf := &audio.Buffer{Samples: samples, SampleRate: testRate, Channels: 1}
	if err := audio.WriteWAV(path, buf); err != nil {
		t.Fatalf("failed to write test audio: %v", err)
	}
}

// writeFile writes arbitrary bytes, creating parent directories
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// listNames returns the sorted entry names of dir
func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// frameCount probes a WAV file written by the pipeline
func frameCount(t *testing.T, path string) int64 {
	t.Helper()
	meta, err := audio.NewFileSource().Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to probe %s: %v", path, err)
	}
	return meta.Frames
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// recordingReporter captures every event for inspection
type recordingReporter struct {
	mu       sync.Mutex
	intake   []IntakeReport
	started  []Stage
	files    map[Stage][]FileResult
	finished []StageReport
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{files: make(map[Stage][]FileResult)}
}

func (r *recordingReporter) IntakeFinished(report IntakeReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intake = append(r.intake, report)
}

func (r *recordingReporter) StageStarted(stage Stage, files int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, stage)
}

func (r *recordingReporter) FileFinished(stage Stage, result FileResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[stage] = append(r.files[stage], result)
}

func (r *recordingReporter) StageFinished(report StageReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, report)
}

// countingMetrics counts metric calls per stage
type countingMetrics struct {
	mu     sync.Mutex
	files  map[string]int
	stages map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{files: make(map[string]int), stages: make(map[string]int)}
}

func (m *countingMetrics) FileProcessed(stage, outcome string, length time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[stage]++
}

func (m *countingMetrics) StageCompleted(stage string, files int, elapsed time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[stage]++
}

// rendezvousSource holds each Decode until every expected caller has
// arrived, so concurrent tasks have all passed their existence checks before
// any of them writes. A .flac path decodes the WAV at flac instead.
type rendezvousSource struct {
	audio.Source
	flac     string
	arrivals sync.WaitGroup
}

func newRendezvousSource(callers int, flac string) *rendezvousSource {
	s := &rendezvousSource{Source: audio.NewFileSource(), flac: flac}
	s.arrivals.Add(callers)
	return s
}

func (s *rendezvousSource) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	s.arrivals.Done()
	all := make(chan struct{})
	go func() {
		s.arrivals.Wait()
		close(all)
	}()
	select {
	case <-all:
	case <-time.After(5 * time.Second):
	}

	if strings.EqualFold(filepath.Ext(path), ".flac") {
		path = s.flac
	}
	return s.Source.Decode(ctx, path)
}
