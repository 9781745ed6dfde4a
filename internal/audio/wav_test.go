package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io/fs"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// sineBuffer builds a buffer holding a sine tone with the given peak amplitude
func sineBuffer(secs float64, rate, channels int, amp float64) *Buffer {
	frames := int(secs * float64(rate))
	samples := make([]float64, frames*channels)
	for i := 0; i < frames; i++ {
		v := amp * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
		for c := 0; c < channels; c++ {
			samples[i*channels+c] = v
		}
	}
	return &Buffer{Samples: samples, SampleRate: rate, Channels: channels}
}

func TestWriteWAVRoundTrip(t *testing.T) {
	tests := []struct {
		name     string
		rate     int
		channels int
	}{
		{"mono 16k", 16000, 1},
		{"stereo 44.1k", 44100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "tone.wav")
			in := sineBuffer(0.5, tt.rate, tt.channels, 0.5)

			if err := WriteWAV(path, in); err != nil {
				t.Fatalf("WriteWAV failed: %v", err)
			}

			src := NewFileSource()
			meta, err := src.Probe(context.Background(), path)
			if err != nil {
				t.Fatalf("Probe failed: %v", err)
			}
			if meta.SampleRate != tt.rate || meta.Channels != tt.channels {
				t.Errorf("Probe = %d Hz %d ch, want %d Hz %d ch", meta.SampleRate, meta.Channels, tt.rate, tt.channels)
			}
			if meta.Frames != int64(in.Frames()) {
				t.Errorf("Probe frames = %d, want %d", meta.Frames, in.Frames())
			}
			if meta.BitDepth != OutputBitDepth {
				t.Errorf("Probe bit depth = %d, want %d", meta.BitDepth, OutputBitDepth)
			}

			out, err := src.Decode(context.Background(), path)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if out.Frames() != in.Frames() {
				t.Fatalf("decoded %d frames, want %d", out.Frames(), in.Frames())
			}
			for i := range in.Samples {
				if math.Abs(out.Samples[i]-in.Samples[i]) > 1.0/16384 {
					t.Fatalf("sample %d = %f, want %f", i, out.Samples[i], in.Samples[i])
				}
			}
		})
	}
}

func TestDecodeRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	const rate = 8000
	in := &Buffer{Samples: make([]float64, 3*rate), SampleRate: rate, Channels: 1}
	for i := range in.Samples {
		// A ramp makes every sample position identifiable after quantisation
		in.Samples[i] = float64(i%20000) / 32768.0
	}
	if err := WriteWAV(path, in); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	src := NewFileSource()
	tests := []struct {
		name       string
		start, end int64
		wantFrames int
	}{
		{"first second", 0, rate, rate},
		{"middle second", rate, 2 * rate, rate},
		{"past end is truncated", 2*rate + 4000, 4 * rate, 4000},
		{"to end of file", rate, -1, 2 * rate},
		{"empty range", 100, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := src.DecodeRange(context.Background(), path, tt.start, tt.end)
			if err != nil {
				t.Fatalf("DecodeRange(%d, %d) failed: %v", tt.start, tt.end, err)
			}
			if buf.Frames() != tt.wantFrames {
				t.Fatalf("DecodeRange(%d, %d) = %d frames, want %d", tt.start, tt.end, buf.Frames(), tt.wantFrames)
			}
			if tt.wantFrames > 0 {
				want := in.Samples[tt.start]
				if math.Abs(buf.Samples[0]-want) > 1e-6 {
					t.Errorf("first sample = %f, want %f", buf.Samples[0], want)
				}
			}
		})
	}

	t.Run("inverted range", func(t *testing.T) {
		if _, err := src.DecodeRange(context.Background(), path, 10, 5); err == nil {
			t.Error("DecodeRange(10, 5) succeeded, want error")
		}
	})
}

func TestWriteWAVClampsOverflow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hot.wav")
	in := &Buffer{Samples: []float64{1.5, -1.5, 0.25, 1.0}, SampleRate: 8000, Channels: 1}
	if err := WriteWAV(path, in); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}

	out, err := NewFileSource().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{32767.0 / 32768.0, -1.0, 0.25, 32767.0 / 32768.0}
	for i, w := range want {
		if math.Abs(out.Samples[i]-w) > 1e-9 {
			t.Errorf("sample %d = %f, want %f", i, out.Samples[i], w)
		}
	}
}

func TestWriteWAVLeavesNoTemporaries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")

	if err := WriteWAV(path, sineBuffer(0.1, 8000, 1, 0.3)); err != nil {
		t.Fatalf("WriteWAV failed: %v", err)
	}
	// Overwrite in place
	if err := WriteWAV(path, sineBuffer(0.2, 8000, 1, 0.3)); err != nil {
		t.Fatalf("second WriteWAV failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "out.wav" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("directory contains %v, want only out.wav", names)
	}

	meta, err := NewFileSource().Probe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Frames != 1600 {
		t.Errorf("overwritten file has %d frames, want 1600", meta.Frames)
	}
}

func TestCreateWAV(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "new.wav")

	if err := CreateWAV(path, sineBuffer(0.1, 8000, 1, 0.3)); err != nil {
		t.Fatalf("CreateWAV failed: %v", err)
	}
	meta, err := NewFileSource().Probe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Frames != 800 {
		t.Errorf("created file has %d frames, want 800", meta.Frames)
	}

	err = CreateWAV(path, sineBuffer(0.2, 8000, 1, 0.3))
	if !errors.Is(err, fs.ErrExist) {
		t.Fatalf("CreateWAV over an existing file error = %v, want fs.ErrExist", err)
	}
	meta, err = NewFileSource().Probe(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Frames != 800 {
		t.Errorf("existing file replaced: %d frames, want 800", meta.Frames)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("directory holds %d entries, want only new.wav", len(entries))
	}
}

func TestWriteWAVRejectsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	if err := WriteWAV(path, &Buffer{SampleRate: 8000, Channels: 1}); err == nil {
		t.Error("WriteWAV with empty buffer succeeded, want error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("empty write created %s", path)
	}
}

func TestDecodeWAV8Bit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u8.wav")
	writeRawWAV(t, path, 1, 8000, 8, []byte{128, 255, 0, 192})

	buf, err := NewFileSource().Decode(context.Background(), path)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := []float64{0, 127.0 / 128.0, -1, 0.5}
	if len(buf.Samples) != len(want) {
		t.Fatalf("decoded %d samples, want %d", len(buf.Samples), len(want))
	}
	for i, w := range want {
		if math.Abs(buf.Samples[i]-w) > 1e-9 {
			t.Errorf("sample %d = %f, want %f", i, buf.Samples[i], w)
		}
	}
}

func TestDecodeInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileSource().Decode(context.Background(), path); err == nil {
		t.Error("Decode of junk succeeded, want error")
	}
}

func TestDecodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewFileSource().Decode(ctx, "whatever.wav"); err != context.Canceled {
		t.Errorf("Decode with cancelled context = %v, want context.Canceled", err)
	}
}

func TestTempPath(t *testing.T) {
	a := TempPath("/data/alice/clip.wav")
	b := TempPath("/data/alice/clip.wav")
	if a == b {
		t.Error("TempPath returned the same name twice")
	}
	if filepath.Dir(a) != "/data/alice" {
		t.Errorf("TempPath dir = %s, want /data/alice", filepath.Dir(a))
	}
	base := filepath.Base(a)
	if !strings.HasPrefix(base, ".clip.wav.") || !strings.HasSuffix(base, ".tmp") {
		t.Errorf("TempPath base = %s, want hidden .clip.wav.<id>.tmp", base)
	}
}

func TestFFmpegDecode(t *testing.T) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not installed")
	}

	dir := t.TempDir()
	wavPath := filepath.Join(dir, "tone.wav")
	flacPath := filepath.Join(dir, "tone.flac")
	if err := WriteWAV(wavPath, sineBuffer(2, 16000, 1, 0.5)); err != nil {
		t.Fatal(err)
	}
	if out, err := exec.Command("ffmpeg", "-v", "error", "-i", wavPath, flacPath).CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg encode failed: %v: %s", err, out)
	}

	src := NewFileSource()
	meta, err := src.Probe(context.Background(), flacPath)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if meta.SampleRate != 16000 || meta.Channels != 1 {
		t.Errorf("Probe = %d Hz %d ch, want 16000 Hz 1 ch", meta.SampleRate, meta.Channels)
	}

	buf, err := src.DecodeRange(context.Background(), flacPath, 16000, 24000)
	if err != nil {
		t.Fatalf("DecodeRange failed: %v", err)
	}
	if buf.Frames() != 8000 {
		t.Errorf("DecodeRange frames = %d, want 8000", buf.Frames())
	}
}

// writeRawWAV writes a minimal PCM WAV file with the given raw sample bytes
func writeRawWAV(t *testing.T, path string, channels, rate, bits int, data []byte) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	blockAlign := channels * bits / 8
	fields := []any{
		[]byte("RIFF"), uint32(36 + len(data)), []byte("WAVE"),
		[]byte("fmt "), uint32(16), uint16(1), uint16(channels), uint32(rate),
		uint32(rate * blockAlign), uint16(blockAlign), uint16(bits),
		[]byte("data"), uint32(len(data)), data,
	}
	for _, v := range fields {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatalf("failed to write WAV header: %v", err)
		}
	}
}
