package audio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ffmpegDecoder decodes compressed formats by piping raw PCM out of the ffmpeg executable
type ffmpegDecoder struct {
	ffmpegPath  string
	ffprobePath string
}

// ffprobeOutput mirrors the subset of ffprobe's JSON output that we request
type ffprobeOutput struct {
	Streams []struct {
		CodecName  string `json:"codec_name"`
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func (f *ffmpegDecoder) probe(ctx context.Context, path string) (*Metadata, error) {
	cmd := exec.CommandContext(ctx, f.ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels,codec_name:format=duration",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("ffprobe not found in PATH: %w", err)
		}
		return nil, fmt.Errorf("ffprobe failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	if len(probe.Streams) == 0 {
		return nil, fmt.Errorf("no audio stream found in %s", path)
	}

	stream := probe.Streams[0]
	sampleRate, err := strconv.Atoi(stream.SampleRate)
	if err != nil || sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %q in %s", stream.SampleRate, path)
	}
	if stream.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d in %s", stream.Channels, path)
	}

	duration, _ := strconv.ParseFloat(probe.Format.Duration, 64)

	return &Metadata{
		Duration:   duration,
		Frames:     int64(math.Round(duration * float64(sampleRate))),
		SampleRate: sampleRate,
		Channels:   stream.Channels,
		BitDepth:   OutputBitDepth,
		Codec:      stream.CodecName,
	}, nil
}

// decode reads frames [start, end) as 16-bit PCM at the file's native rate and layout.
// Seeking happens on the input side; the output is then trimmed to the exact frame count.
func (f *ffmpegDecoder) decode(ctx context.Context, path string, start, end int64) (*Buffer, error) {
	meta, err := f.probe(ctx, path)
	if err != nil {
		return nil, err
	}

	args := []string{"-nostdin", "-v", "error"}
	if start > 0 {
		args = append(args, "-ss", formatSeconds(start, meta.SampleRate))
	}
	args = append(args, "-i", path)
	if end >= 0 {
		args = append(args, "-t", formatSeconds(end-start, meta.SampleRate))
	}
	args = append(args,
		"-vn",
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(meta.SampleRate),
		"-ac", strconv.Itoa(meta.Channels),
		"pipe:1",
	)

	cmd := exec.CommandContext(ctx, f.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
		}
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	limit := int64(-1)
	if end >= 0 {
		limit = (end - start) * int64(meta.Channels)
	}
	samples, readErr := readS16LE(stdout, limit)

	// Drain whatever is left so ffmpeg is not blocked writing to a full pipe
	io.Copy(io.Discard, stdout)

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed on %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}
	if readErr != nil {
		return nil, fmt.Errorf("failed to read decoded audio from %s: %w", path, readErr)
	}

	buf := &Buffer{
		Samples:    samples,
		SampleRate: meta.SampleRate,
		Channels:   meta.Channels,
	}
	if extra := len(buf.Samples) % buf.Channels; extra != 0 {
		buf.Samples = buf.Samples[:len(buf.Samples)-extra]
	}
	return buf, nil
}

// readS16LE reads little-endian 16-bit samples until EOF or limit samples have been read.
// A negative limit reads until EOF.
func readS16LE(r io.Reader, limit int64) ([]float64, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	capacity := int64(64 * 1024)
	if limit >= 0 {
		capacity = limit
	}
	samples := make([]float64, 0, capacity)

	var pair [2]byte
	for limit < 0 || int64(len(samples)) < limit {
		if _, err := io.ReadFull(br, pair[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, err
		}
		v := int16(binary.LittleEndian.Uint16(pair[:]))
		samples = append(samples, float64(v)/32768.0)
	}
	return samples, nil
}

// formatSeconds renders a frame offset as a seconds argument for ffmpeg
func formatSeconds(frames int64, sampleRate int) string {
	return strconv.FormatFloat(float64(frames)/float64(sampleRate), 'f', 6, 64)
}
