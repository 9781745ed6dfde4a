package processor

import (
	"context"
	"errors"
	"math"
	"os"
	"time"

	"github.com/linuxmatters/voiceprep/internal/audio"
)

// Segment is a planned cut of a source file, in frames [Start, End)
type Segment struct {
	Index int
	Start int64
	End   int64
}

// Frames returns the segment length in frames
func (s Segment) Frames() int64 {
	return s.End - s.Start
}

// SegmentResult describes one segmented file
type SegmentResult struct {
	Input   string
	Outputs []string
	// Dropped is the length of the trailing remainder that was too short to keep
	Dropped time.Duration
	// Total is the length of audio written across all outputs
	Total time.Duration
}

// PlanSegments cuts frames into consecutive segments of length at the given rate.
// Boundaries are whole frames, so the segment lengths sum to frames. Only the
// final segment can be shorter than length. A segment shorter than one second
// is never planned, so a length under one second plans nothing.
func PlanSegments(frames int64, sampleRate int, length time.Duration) []Segment {
	if frames <= 0 || sampleRate <= 0 || length <= 0 {
		return nil
	}
	segFrames := int64(math.Round(length.Seconds() * float64(sampleRate)))
	if segFrames <= 0 {
		segFrames = 1
	}
	minFrames := int64(MinimumSegmentSeconds * float64(sampleRate))

	n := (frames + segFrames - 1) / segFrames
	segments := make([]Segment, 0, n)
	for i := int64(0); i < n; i++ {
		start := i * segFrames
		end := min(start+segFrames, frames)
		seg := Segment{Index: int(i), Start: start, End: end}
		if seg.Frames() < minFrames {
			break
		}
		segments = append(segments, seg)
	}
	return segments
}

// SegmentFile cuts input into fixed-length WAV files named {stem}_{i}.wav.
// Each segment is decoded on its own so memory is bounded by one segment.
// Existing files are never replaced. On failure any segments already written
// are removed. A source too short to yield any segment returns a result with
// no outputs.
func SegmentFile(ctx context.Context, src audio.Source, input string, length time.Duration) (*SegmentResult, error) {
	if err := ValidateSegmentLength(length); err != nil {
		return nil, err
	}

	meta, err := src.Probe(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, decodeError("segment", input, err)
	}

	plan := PlanSegments(meta.Frames, meta.SampleRate, length)
	result := &SegmentResult{Input: input}

	var planned int64
	for _, seg := range plan {
		planned += seg.Frames()
	}
	result.Dropped = audio.FramesToDuration(meta.Frames-planned, meta.SampleRate)

	fail := func(err error) (*SegmentResult, error) {
		for _, out := range result.Outputs {
			os.Remove(out)
		}
		return nil, err
	}

	for _, seg := range plan {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		buf, err := src.DecodeRange(ctx, input, seg.Start, seg.End)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return fail(ctxErr)
			}
			return fail(decodeError("segment", input, err))
		}
		// Probed lengths of compressed files can overshoot the decodable audio
		if buf.Empty() {
			break
		}

		out := SegmentName(input, seg.Index)
		if err := ensureAbsent("segment", out); err != nil {
			return fail(err)
		}
		if err := audio.CreateWAV(out, buf); err != nil {
			return fail(ioError("segment", out, err))
		}
		result.Outputs = append(result.Outputs, out)
		result.Total += buf.Duration()
	}

	if len(result.Outputs) == 0 && len(plan) > 0 {
		return fail(decodeError("segment", input, errors.New("no audio decoded")))
	}
	return result, nil
}
