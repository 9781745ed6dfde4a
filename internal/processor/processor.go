// Package processor implements the per-file audio preparation stages:
// silence trimming, fixed-length segmentation, loudness normalization and
// batch renaming. Each stage reads through an audio.Source and writes 16-bit
// PCM WAV through audio.WriteWAV.
package processor

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default stage parameters
const (
	DefaultThresholdDBFS  = -50.0
	DefaultMinSilence     = 300 * time.Millisecond
	DefaultPadding        = 100 * time.Millisecond
	DefaultSegmentLength  = 3 * time.Second
	DefaultTargetDBFS     = -14.0
	MinimumSegmentSeconds = 1.0
)

// TrimParams configures silence detection and trimming
type TrimParams struct {
	ThresholdDBFS float64       // windows at or below this RMS level are silent
	MinSilence    time.Duration // shortest run of silence that is removed
	Padding       time.Duration // audio kept either side of each non-silent span
}

// DefaultTrimParams returns the trimming defaults
func DefaultTrimParams() TrimParams {
	return TrimParams{
		ThresholdDBFS: DefaultThresholdDBFS,
		MinSilence:    DefaultMinSilence,
		Padding:       DefaultPadding,
	}
}

// Validate checks the parameters are usable
func (p TrimParams) Validate() error {
	if p.ThresholdDBFS >= 0 {
		return configError("trim", "silence threshold must be negative dBFS, got %.1f", p.ThresholdDBFS)
	}
	if p.MinSilence < time.Millisecond {
		return configError("trim", "minimum silence length must be at least 1ms, got %v", p.MinSilence)
	}
	if p.Padding < 0 {
		return configError("trim", "padding must not be negative, got %v", p.Padding)
	}
	return nil
}

// ValidateSegmentLength checks a segment length is usable
func ValidateSegmentLength(length time.Duration) error {
	if length <= 0 {
		return configError("segment", "segment length must be positive, got %v", length)
	}
	if length.Seconds() < MinimumSegmentSeconds {
		return configError("segment", "segment length must be at least %.0fs, got %v", MinimumSegmentSeconds, length)
	}
	return nil
}

// ValidateTarget checks a normalization target is usable
func ValidateTarget(targetDBFS float64) error {
	if targetDBFS > 0 {
		return configError("normalize", "target loudness must not exceed 0 dBFS, got %.1f", targetDBFS)
	}
	return nil
}

// ValidateIdentity checks a speaker identity can be used as a file name prefix
func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" {
		return configError("rename", "speaker name must not be empty")
	}
	if strings.ContainsAny(identity, `/\`) || identity == "." || identity == ".." {
		return configError("rename", "speaker name %q must not contain a path separator", identity)
	}
	return nil
}

// Stem returns the file name without directory or extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CutName returns the trimmed output path for an input: {stem}_cut.wav beside it
func CutName(path string) string {
	return filepath.Join(filepath.Dir(path), Stem(path)+"_cut.wav")
}

// SegmentName returns the path of segment i of an input: {stem}_{i}.wav beside it
func SegmentName(path string, i int) string {
	return filepath.Join(filepath.Dir(path), fmt.Sprintf("%s_%d.wav", Stem(path), i))
}

// ensureAbsent fails when path already exists so an output never replaces another file
func ensureAbsent(op, path string) error {
	_, err := os.Lstat(path)
	if err == nil {
		return ioError(op, path, fmt.Errorf("output %s already exists", filepath.Base(path)))
	}
	if !os.IsNotExist(err) {
		return ioError(op, path, err)
	}
	return nil
}
