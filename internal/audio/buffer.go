// Package audio provides audio file I/O for the preparation pipeline.
// WAV files are handled natively through go-audio; every other format is
// decoded by the ffmpeg and ffprobe executables.
package audio

import (
	"math"
	"time"
)

// Buffer holds decoded audio as interleaved samples normalized to [-1, 1]
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Metadata contains audio file metadata
type Metadata struct {
	Duration   float64 // seconds
	Frames     int64
	SampleRate int
	Channels   int
	BitDepth   int
	Codec      string
}

// Frames returns the number of sample frames (one sample per channel)
func (b *Buffer) Frames() int {
	if b == nil || b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Seconds returns the buffer length in seconds
func (b *Buffer) Seconds() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Duration returns the buffer length as a time.Duration
func (b *Buffer) Duration() time.Duration {
	return FramesToDuration(int64(b.Frames()), b.SampleRate)
}

// Empty reports whether the buffer contains no frames
func (b *Buffer) Empty() bool {
	return b.Frames() == 0
}

// Slice returns the interleaved samples for frames [start, end).
// The returned slice shares memory with the buffer.
func (b *Buffer) Slice(start, end int) []float64 {
	frames := b.Frames()
	if start < 0 {
		start = 0
	}
	if end > frames {
		end = frames
	}
	if start >= end {
		return nil
	}
	return b.Samples[start*b.Channels : end*b.Channels]
}

// RMS returns the root mean square of all samples across all channels
func (b *Buffer) RMS() float64 {
	if b == nil || len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// DBFS returns the mean loudness in decibels relative to full scale.
// Digital silence returns -Inf.
func (b *Buffer) DBFS() float64 {
	return AmplitudeToDB(b.RMS())
}

// AmplitudeToDB converts a linear amplitude (full scale = 1.0) to dBFS
func AmplitudeToDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(amplitude)
}

// DBToAmplitude converts dBFS to a linear amplitude (full scale = 1.0)
func DBToAmplitude(db float64) float64 {
	return math.Pow(10, db/20.0)
}

// FramesToDuration converts a frame count at the given sample rate to a duration
func FramesToDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(frames * int64(time.Second) / int64(sampleRate))
}

// DurationToFrames converts a duration to a frame count at the given sample rate
func DurationToFrames(d time.Duration, sampleRate int) int64 {
	return int64(d) * int64(sampleRate) / int64(time.Second)
}
