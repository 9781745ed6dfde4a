package processor

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/linuxmatters/voiceprep/internal/audio"
)

// TestAudioOptions configures the synthetic audio to generate
type TestAudioOptions struct {
	DurationSecs float64 // Total duration in seconds
	SampleRate   int     // Sample rate (default: 16000)
	Channels     int     // Channel count (default: 1)
	ToneFreq     float64 // Sine wave frequency in Hz (default: 440)
	ToneLevel    float64 // Tone RMS level in dBFS (0 = no tone)
	NoiseLevel   float64 // White noise level in dBFS (0 = no noise, -60 = quiet noise)
	SilenceGaps  []Gap   // Regions forced to digital silence
}

// Gap is a region of digital silence in seconds
type Gap struct {
	Start    float64
	Duration float64
}

// generateTestBuffer creates a synthetic audio buffer.
// The buffer can include a sine tone, white noise and silence gaps.
func generateTestBuffer(opts TestAudioOptions) *audio.Buffer {
	if opts.SampleRate == 0 {
		opts.SampleRate = 16000
	}
	if opts.Channels == 0 {
		opts.Channels = 1
	}
	if opts.ToneFreq == 0 {
		opts.ToneFreq = 440
	}

	frames := int(math.Round(opts.DurationSecs * float64(opts.SampleRate)))
	samples := make([]float64, frames*opts.Channels)

	// A sine with peak A has RMS A/sqrt(2)
	toneAmp := 0.0
	if opts.ToneLevel < 0 {
		toneAmp = math.Pow(10.0, opts.ToneLevel/20.0) * math.Sqrt2
	}
	noiseAmp := 0.0
	if opts.NoiseLevel < 0 {
		noiseAmp = math.Pow(10.0, opts.NoiseLevel/20.0)
	}

	// Simple LCG random number generator for deterministic noise
	rngState := uint32(12345)
	nextRandom := func() float64 {
		rngState = rngState*1664525 + 1013904223
		return (float64(rngState)/float64(0xFFFFFFFF))*2.0 - 1.0
	}

	inGap := func(i int) bool {
		for _, g := range opts.SilenceGaps {
			start := int(math.Round(g.Start * float64(opts.SampleRate)))
			end := int(math.Round((g.Start + g.Duration) * float64(opts.SampleRate)))
			if i >= start && i < end {
				return true
			}
		}
		return false
	}

	for i := 0; i < frames; i++ {
		if inGap(i) {
			continue
		}
		var sample float64
		if toneAmp > 0 {
			t := float64(i) / float64(opts.SampleRate)
			sample += toneAmp * math.Sin(2.0*math.Pi*opts.ToneFreq*t)
		}
		if noiseAmp > 0 {
			sample += noiseAmp * nextRandom()
		}
		for c := 0; c < opts.Channels; c++ {
			samples[i*opts.Channels+c] = sample
		}
	}

	return &audio.Buffer{Samples: samples, SampleRate: opts.SampleRate, Channels: opts.Channels}
}

// generateTestAudio writes synthetic audio to dir/name as 16-bit WAV and returns the path
func generateTestAudio(t *testing.T, dir, name string, opts TestAudioOptions) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := audio.WriteWAV(path, generateTestBuffer(opts)); err != nil {
		t.Fatalf("failed to write WAV file: %v", err)
	}
	return path
}

// probeFrames returns the frame count of a WAV file
func probeFrames(t *testing.T, path string) int64 {
	t.Helper()

	meta, err := audio.NewFileSource().Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("failed to probe %s: %v", path, err)
	}
	return meta.Frames
}

// listDir returns the names of all entries in dir
func listDir(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read %s: %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// failingSource wraps a real source and fails DecodeRange from the nth call on
type failingSource struct {
	audio.Source
	failAfter int
	calls     int
}

func (f *failingSource) DecodeRange(ctx context.Context, path string, start, end int64) (*audio.Buffer, error) {
	f.calls++
	if f.calls > f.failAfter {
		return nil, os.ErrInvalid
	}
	return f.Source.DecodeRange(ctx, path, start, end)
}

// occupyingSource creates occupy while decoding, the way a concurrent worker
// writing the same output name would. With backing set, Decode reads that
// file instead of the requested path.
type occupyingSource struct {
	audio.Source
	occupy  string
	backing string
}

func (o *occupyingSource) Decode(ctx context.Context, path string) (*audio.Buffer, error) {
	if err := os.WriteFile(o.occupy, []byte("taken"), 0o644); err != nil {
		return nil, err
	}
	if o.backing != "" {
		path = o.backing
	}
	return o.Source.Decode(ctx, path)
}

// assertTaken checks that path still holds the content written by occupyingSource
func assertTaken(t *testing.T, path string) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	if string(data) != "taken" {
		t.Errorf("%s was replaced", filepath.Base(path))
	}
}
