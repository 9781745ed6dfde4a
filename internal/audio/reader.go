package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// Source decodes audio files into sample buffers
type Source interface {
	// Probe returns file metadata without decoding samples
	Probe(ctx context.Context, path string) (*Metadata, error)
	// Decode reads the whole file
	Decode(ctx context.Context, path string) (*Buffer, error)
	// DecodeRange reads only frames [start, end) of the file
	DecodeRange(ctx context.Context, path string, start, end int64) (*Buffer, error)
}

// FileSource reads WAV files natively and hands every other format to FFmpeg
type FileSource struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFileSource creates a FileSource using ffmpeg and ffprobe from PATH
func NewFileSource() *FileSource {
	return &FileSource{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
	}
}

// Probe returns file metadata
func (s *FileSource) Probe(ctx context.Context, path string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if isWAV(path) {
		meta, err := probeWAV(path)
		if err == nil {
			return meta, nil
		}
		if !isUnsupportedWAV(err) {
			return nil, err
		}
	}
	return s.ffmpeg().probe(ctx, path)
}

// Decode reads the whole file into a buffer
func (s *FileSource) Decode(ctx context.Context, path string) (*Buffer, error) {
	return s.DecodeRange(ctx, path, 0, -1)
}

// DecodeRange reads frames [start, end) of the file. A negative end reads to the end of file.
func (s *FileSource) DecodeRange(ctx context.Context, path string, start, end int64) (*Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, fmt.Errorf("invalid start frame %d", start)
	}
	if end >= 0 && end < start {
		return nil, fmt.Errorf("invalid frame range [%d, %d)", start, end)
	}

	if isWAV(path) {
		buf, err := decodeWAV(path, start, end)
		if err == nil {
			return buf, nil
		}
		if !isUnsupportedWAV(err) {
			return nil, err
		}
	}
	return s.ffmpeg().decode(ctx, path, start, end)
}

func (s *FileSource) ffmpeg() *ffmpegDecoder {
	ffmpegPath := s.FFmpegPath
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	ffprobePath := s.FFprobePath
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &ffmpegDecoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

func isWAV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}
