package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// WAV format tags handled natively. Anything else (IEEE float, A-law, ...) is decoded by FFmpeg.
const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// OutputBitDepth is the bit depth of every file written by the pipeline
const OutputBitDepth = 16

// pcmReadSize is the number of interleaved samples read per PCMBuffer call
const pcmReadSize = 8192

var errUnsupportedWAV = errors.New("unsupported WAV encoding")

func isUnsupportedWAV(err error) bool {
	return errors.Is(err, errUnsupportedWAV)
}

// openWAV opens a WAV file and positions the decoder at the start of the PCM data
func openWAV(path string) (*os.File, *wav.Decoder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open input file: %w", err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		if d.Err() != nil {
			return nil, nil, fmt.Errorf("invalid WAV file %s: %w", path, d.Err())
		}
		return nil, nil, fmt.Errorf("invalid WAV file: %s", path)
	}

	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		f.Close()
		return nil, nil, fmt.Errorf("%w: format tag %d in %s", errUnsupportedWAV, d.WavAudioFormat, path)
	}
	switch d.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, nil, fmt.Errorf("%w: %d-bit samples in %s", errUnsupportedWAV, d.BitDepth, path)
	}

	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to find PCM data in %s: %w", path, err)
	}
	if d.PCMChunk == nil {
		f.Close()
		return nil, nil, fmt.Errorf("no PCM data in %s", path)
	}

	return f, d, nil
}

// probeWAV reads WAV metadata from the header and data chunk size
func probeWAV(path string) (*Metadata, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bytesPerFrame := int64(d.BitDepth/8) * int64(d.NumChans)
	frames := d.PCMLen() / bytesPerFrame

	return &Metadata{
		Duration:   float64(frames) / float64(d.SampleRate),
		Frames:     frames,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
		Codec:      fmt.Sprintf("pcm_s%dle", d.BitDepth),
	}, nil
}

// decodeWAV streams the PCM chunk and keeps only frames [start, end).
// Frames before start are read and discarded so memory stays bounded by the range.
func decodeWAV(path string, start, end int64) (*Buffer, error) {
	f, d, err := openWAV(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	channels := int64(d.NumChans)
	bitDepth := int(d.BitDepth)
	scale := math.Pow(2, float64(bitDepth-1))

	first := start * channels
	last := int64(-1)
	capacity := int64(pcmReadSize)
	if end >= 0 {
		last = end * channels
		capacity = last - first
	}

	out := &Buffer{
		Samples:    make([]float64, 0, capacity),
		SampleRate: int(d.SampleRate),
		Channels:   int(channels),
	}

	chunk := &goaudio.IntBuffer{Data: make([]int, pcmReadSize)}
	var pos int64
	for last < 0 || pos < last {
		n, err := d.PCMBuffer(chunk)
		if err != nil {
			return nil, fmt.Errorf("failed to read PCM data from %s: %w", path, err)
		}
		if n == 0 {
			break
		}

		for _, v := range chunk.Data[:n] {
			if pos >= first && (last < 0 || pos < last) {
				out.Samples = append(out.Samples, intToSample(v, bitDepth, scale))
			}
			pos++
		}
	}

	// A partial trailing frame is not a frame
	if extra := len(out.Samples) % int(channels); extra != 0 {
		out.Samples = out.Samples[:len(out.Samples)-extra]
	}

	return out, nil
}

// intToSample maps a PCM integer to [-1, 1]. 8-bit WAV samples are unsigned.
func intToSample(v, bitDepth int, scale float64) float64 {
	if bitDepth == 8 {
		return float64(v-128) / 128.0
	}
	return float64(v) / scale
}

// sampleToInt16 quantises a sample to 16-bit PCM, saturating at full scale
func sampleToInt16(s float64) int {
	v := math.Round(s * 32768.0)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int(v)
}

// WriteWAV encodes the buffer as 16-bit PCM WAV at path.
// The data is written to a hidden temporary file in the same directory and
// renamed over path only after the encoder and file have been closed, so path
// always holds either the previous content or the complete new file.
func WriteWAV(path string, buf *Buffer) error {
	tmpPath, err := stageWAV(path, buf)
	if err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// CreateWAV is WriteWAV for a file that must not exist yet. The finished
// file is hard-linked into place, which fails if anything holds path by then,
// including a file created by another writer while this one was encoding.
// That error matches fs.ErrExist and path is left untouched.
func CreateWAV(path string, buf *Buffer) error {
	tmpPath, err := stageWAV(path, buf)
	if err != nil {
		return err
	}
	defer os.Remove(tmpPath)

	if err := os.Link(tmpPath, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("output already exists: %w", err)
		}
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// stageWAV encodes buf into a synced, closed temporary sibling of path and
// returns its name
func stageWAV(path string, buf *Buffer) (string, error) {
	if buf == nil || buf.Empty() {
		return "", fmt.Errorf("cannot encode empty audio: %s", path)
	}
	if buf.SampleRate <= 0 {
		return "", fmt.Errorf("sample rate must be positive, got %d", buf.SampleRate)
	}
	if buf.Channels <= 0 {
		return "", fmt.Errorf("channel count must be positive, got %d", buf.Channels)
	}

	tmpPath := TempPath(path)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}

	fail := func(err error) (string, error) {
		f.Close()
		os.Remove(tmpPath)
		return "", err
	}

	enc := wav.NewEncoder(f, buf.SampleRate, OutputBitDepth, buf.Channels, wavFormatPCM)

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		data[i] = sampleToInt16(s)
	}
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: buf.Channels,
			SampleRate:  buf.SampleRate,
		},
		Data:           data,
		SourceBitDepth: OutputBitDepth,
	}

	if err := enc.Write(intBuf); err != nil {
		return fail(fmt.Errorf("failed to encode %s: %w", path, err))
	}
	if err := enc.Close(); err != nil {
		return fail(fmt.Errorf("failed to finalise %s: %w", path, err))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("failed to sync %s: %w", path, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return tmpPath, nil
}

// TempPath returns a unique hidden sibling path for staging writes to path
func TempPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", base, uuid.NewString()))
}
