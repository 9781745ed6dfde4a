package processor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/linuxmatters/voiceprep/internal/audio"
)

// Largest sample value that survives 16-bit quantisation
const maxSample = 32767.0 / 32768.0

// NormalisationResult contains the outcome of normalizing one file
type NormalisationResult struct {
	Path       string
	Output     string  // differs from Path when a non-WAV source was converted
	InputDBFS  float64 // mean loudness before gain
	OutputDBFS float64 // mean loudness after gain and clamping
	GainDB     float64
	Clipped    int // samples clamped to full scale
}

// MeanLoudness returns the mean loudness of buf in dBFS, 20*log10(rms).
// Digital silence returns -Inf.
func MeanLoudness(buf *audio.Buffer) float64 {
	return buf.DBFS()
}

// Normalize applies a uniform gain so the mean loudness of buf reaches targetDBFS.
//
// Samples pushed past full scale are clamped to the 16-bit range. Returns the
// gained buffer, the gain applied in dB and the number of clamped samples.
// A silent buffer cannot be normalized and returns ErrEmptyResult.
func Normalize(buf *audio.Buffer, targetDBFS float64) (*audio.Buffer, float64, int, error) {
	if err := ValidateTarget(targetDBFS); err != nil {
		return nil, 0, 0, err
	}

	current := MeanLoudness(buf)
	if math.IsInf(current, -1) {
		return nil, 0, 0, emptyError("normalize", "", errors.New("cannot normalize digital silence"))
	}

	gainDB := targetDBFS - current
	gain := audio.DBToAmplitude(gainDB)

	out := &audio.Buffer{
		Samples:    make([]float64, len(buf.Samples)),
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
	}
	clipped := 0
	for i, s := range buf.Samples {
		v := s * gain
		if v > maxSample {
			v = maxSample
			clipped++
		} else if v < -1 {
			v = -1
			clipped++
		}
		out.Samples[i] = v
	}

	return out, gainDB, clipped, nil
}

// NormalizeFile normalizes a file in place. The file is replaced only once the
// new content is fully written; on any failure the original is untouched.
// A non-WAV source is written as {stem}.wav beside it and then removed; an
// existing {stem}.wav is never replaced.
func NormalizeFile(ctx context.Context, src audio.Source, path string, targetDBFS float64) (*NormalisationResult, error) {
	output := path
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		output = filepath.Join(filepath.Dir(path), Stem(path)+".wav")
		if _, err := os.Lstat(output); err == nil {
			return nil, ioError("normalize", path, fmt.Errorf("%s already exists", filepath.Base(output)))
		}
	}

	buf, err := src.Decode(ctx, path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, decodeError("normalize", path, err)
	}
	if buf.Empty() {
		return nil, emptyError("normalize", path, errors.New("no audio"))
	}

	out, gainDB, clipped, err := Normalize(buf, targetDBFS)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			perr.Path = path
		}
		return nil, err
	}

	write := audio.WriteWAV
	if output != path {
		write = audio.CreateWAV
	}
	if err := write(output, out); err != nil {
		return nil, ioError("normalize", output, err)
	}
	if output != path {
		if err := os.Remove(path); err != nil {
			return nil, ioError("normalize", path, err)
		}
	}

	return &NormalisationResult{
		Path:       path,
		Output:     output,
		InputDBFS:  MeanLoudness(buf),
		OutputDBFS: MeanLoudness(out),
		GainDB:     gainDB,
		Clipped:    clipped,
	}, nil
}
