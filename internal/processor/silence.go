package processor

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/linuxmatters/voiceprep/internal/audio"
)

// Span is a half-open interval [Start, End) on a buffer's timeline
type Span struct {
	Start time.Duration
	End   time.Duration
}

// Duration returns the length of the span
func (s Span) Duration() time.Duration {
	return s.End - s.Start
}

// TrimResult describes one trimmed file
type TrimResult struct {
	Input          string
	Output         string
	InputDuration  time.Duration
	OutputDuration time.Duration
	Spans          []Span // kept spans after padding and merging
}

// energyIndex answers windowed RMS queries over a buffer in O(1) each.
// Timeline positions are whole milliseconds; frameAt maps them to frame indices.
type energyIndex struct {
	buf     *audio.Buffer
	prefix  []float64 // prefix[k] = sum of squared samples in frames [0, k)
	totalMs int
}

func newEnergyIndex(buf *audio.Buffer) *energyIndex {
	frames := buf.Frames()
	prefix := make([]float64, frames+1)
	ch := buf.Channels
	for f := 0; f < frames; f++ {
		var sum float64
		for _, s := range buf.Samples[f*ch : (f+1)*ch] {
			sum += s * s
		}
		prefix[f+1] = prefix[f] + sum
	}

	return &energyIndex{
		buf:     buf,
		prefix:  prefix,
		totalMs: int(math.Round(float64(frames) * 1000 / float64(buf.SampleRate))),
	}
}

// frameAt converts a millisecond position to a frame index, clamped to the buffer
func (e *energyIndex) frameAt(ms int) int {
	frames := e.buf.Frames()
	if ms >= e.totalMs {
		return frames
	}
	f := int(int64(ms) * int64(e.buf.SampleRate) / 1000)
	if f > frames {
		return frames
	}
	return f
}

// rms returns the RMS level of all samples in milliseconds [startMs, endMs)
func (e *energyIndex) rms(startMs, endMs int) float64 {
	a, b := e.frameAt(startMs), e.frameAt(endMs)
	if b <= a {
		return 0
	}
	n := float64((b - a) * e.buf.Channels)
	sum := e.prefix[b] - e.prefix[a]
	if sum < 0 {
		// Rounding in the prefix sums can leave a tiny negative residue over digital silence
		sum = 0
	}
	return math.Sqrt(sum / n)
}

// silentRanges returns the silent ranges in milliseconds.
// A window of minMs slides in 1ms steps; a window is silent when its RMS is at
// or below threshold. Silent window starts closer together than minMs belong
// to the same range.
func (e *energyIndex) silentRanges(minMs int, threshold float64) [][2]int {
	if e.totalMs < minMs {
		return nil
	}

	lastStart := e.totalMs - minMs
	var ranges [][2]int
	rangeStart, prev := -1, -1
	for i := 0; i <= lastStart; i++ {
		if e.rms(i, i+minMs) > threshold {
			continue
		}
		if rangeStart < 0 {
			rangeStart, prev = i, i
			continue
		}
		if i != prev+1 && i > prev+minMs {
			ranges = append(ranges, [2]int{rangeStart, prev + minMs})
			rangeStart = i
		}
		prev = i
	}
	if rangeStart >= 0 {
		ranges = append(ranges, [2]int{rangeStart, prev + minMs})
	}
	return ranges
}

// nonSilentRanges returns the complement of the silent ranges in milliseconds
func (e *energyIndex) nonSilentRanges(minMs int, threshold float64) [][2]int {
	silent := e.silentRanges(minMs, threshold)
	if len(silent) == 0 {
		if e.totalMs == 0 {
			return nil
		}
		return [][2]int{{0, e.totalMs}}
	}
	if silent[0][0] == 0 && silent[0][1] >= e.totalMs {
		return nil
	}

	var ranges [][2]int
	prevEnd := 0
	for _, r := range silent {
		if r[0] > prevEnd {
			ranges = append(ranges, [2]int{prevEnd, r[0]})
		}
		prevEnd = r[1]
	}
	if prevEnd < e.totalMs {
		ranges = append(ranges, [2]int{prevEnd, e.totalMs})
	}
	return ranges
}

// padAndMerge extends every range by padMs on both sides, clamps it to the
// timeline and merges ranges that overlap or touch
func padAndMerge(ranges [][2]int, padMs, totalMs int) [][2]int {
	var merged [][2]int
	for _, r := range ranges {
		start := max(r[0]-padMs, 0)
		end := min(r[1]+padMs, totalMs)
		if end <= start {
			continue
		}
		if n := len(merged); n > 0 && start <= merged[n-1][1] {
			merged[n-1][1] = max(merged[n-1][1], end)
			continue
		}
		merged = append(merged, [2]int{start, end})
	}
	return merged
}

func msToDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// DetectNonSilent returns the non-silent spans of buf, without padding.
// A buffer shorter than the minimum silence length has no silent spans, so it
// is returned as one span. A wholly silent buffer returns no spans.
func DetectNonSilent(buf *audio.Buffer, p TrimParams) []Span {
	if buf.Empty() {
		return nil
	}
	idx := newEnergyIndex(buf)
	ranges := idx.nonSilentRanges(int(p.MinSilence.Milliseconds()), audio.DBToAmplitude(p.ThresholdDBFS))

	spans := make([]Span, len(ranges))
	for i, r := range ranges {
		spans[i] = Span{Start: msToDuration(r[0]), End: msToDuration(r[1])}
	}
	return spans
}

// TrimSilence removes silence from buf.
//
// Parameters:
//   - buf: decoded source audio
//   - p: silence threshold, minimum silence length and padding
//
// Returns:
//   - the concatenation of the padded non-silent spans, in time order
//   - the kept spans after padding and merging
//   - ErrEmptyResult when no non-silent audio remains
func TrimSilence(buf *audio.Buffer, p TrimParams) (*audio.Buffer, []Span, error) {
	if err := p.Validate(); err != nil {
		return nil, nil, err
	}
	if buf.Empty() {
		return nil, nil, emptyError("trim", "", errors.New("no audio"))
	}

	idx := newEnergyIndex(buf)
	ranges := idx.nonSilentRanges(int(p.MinSilence.Milliseconds()), audio.DBToAmplitude(p.ThresholdDBFS))
	ranges = padAndMerge(ranges, int(p.Padding.Milliseconds()), idx.totalMs)
	if len(ranges) == 0 {
		return nil, nil, emptyError("trim", "", errors.New("no audio above the silence threshold"))
	}

	out := &audio.Buffer{
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	spans := make([]Span, 0, len(ranges))
	for _, r := range ranges {
		out.Samples = append(out.Samples, buf.Slice(idx.frameAt(r[0]), idx.frameAt(r[1]))...)
		spans = append(spans, Span{Start: msToDuration(r[0]), End: msToDuration(r[1])})
	}
	if out.Empty() {
		return nil, nil, emptyError("trim", "", errors.New("no audio above the silence threshold"))
	}

	return out, spans, nil
}

// TrimFile decodes input, removes silence and writes the result to output.
// The input file is left in place and an existing output is never replaced.
func TrimFile(ctx context.Context, src audio.Source, input, output string, p TrimParams) (*TrimResult, error) {
	if err := ensureAbsent("trim", output); err != nil {
		return nil, err
	}

	buf, err := src.Decode(ctx, input)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, decodeError("trim", input, err)
	}

	trimmed, spans, err := TrimSilence(buf, p)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = input
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := audio.CreateWAV(output, trimmed); err != nil {
		return nil, ioError("trim", output, err)
	}

	return &TrimResult{
		Input:          input,
		Output:         output,
		InputDuration:  buf.Duration(),
		OutputDuration: trimmed.Duration(),
		Spans:          spans,
	}, nil
}
