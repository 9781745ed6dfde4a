// Package pipeline sequences the preparation stages over a speaker's workspace.
package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/linuxmatters/voiceprep/internal/processor"
)

// Stage identifies one pass of the pipeline
type Stage int

// Stages in their fixed execution order
const (
	StageTrim Stage = iota
	StageSegment
	StageNormalize
	StageRename
)

// AllStages lists every stage in execution order
var AllStages = []Stage{StageTrim, StageSegment, StageNormalize, StageRename}

// String returns the short stage name used in logs and metrics
func (s Stage) String() string {
	switch s {
	case StageTrim:
		return "trim"
	case StageSegment:
		return "segment"
	case StageNormalize:
		return "normalize"
	case StageRename:
		return "rename"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Title returns the human-readable stage heading
func (s Stage) Title() string {
	switch s {
	case StageTrim:
		return "Trimming silence"
	case StageSegment:
		return "Splitting into segments"
	case StageNormalize:
		return "Normalizing loudness"
	case StageRename:
		return "Renaming"
	default:
		return s.String()
	}
}

// ParseStage converts a short stage name into a Stage
func ParseStage(name string) (Stage, error) {
	for _, s := range AllStages {
		if strings.EqualFold(name, s.String()) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

// DefaultFormats are the source extensions recognised as audio
var DefaultFormats = []string{"wav", "flac", "mp3"}

// Config holds everything a pipeline run needs
type Config struct {
	Root    string   // workspace root
	Speaker string   // speaker name: directory under Root and output file prefix
	Formats []string // recognised extensions without the dot
	Stages  []Stage  // stages to run; always executed in AllStages order

	Trim          processor.TrimParams
	SegmentLength time.Duration
	TargetDBFS    float64

	Workers         int // parallel tasks for trim and segment; 0 uses every CPU
	ContinueOnError bool
}

// DefaultConfig returns a configuration that runs every stage with default parameters
func DefaultConfig() Config {
	return Config{
		Root:          "workspace",
		Formats:       append([]string(nil), DefaultFormats...),
		Stages:        append([]Stage(nil), AllStages...),
		Trim:          processor.DefaultTrimParams(),
		SegmentLength: processor.DefaultSegmentLength,
		TargetDBFS:    processor.DefaultTargetDBFS,
		Workers:       1,
	}
}

// SpeakerDir returns the directory holding the speaker's files
func (c Config) SpeakerDir() string {
	return filepath.Join(c.Root, c.Speaker)
}

// Selected returns the chosen stages in execution order without duplicates
func (c Config) Selected() []Stage {
	var out []Stage
	for _, s := range AllStages {
		for _, chosen := range c.Stages {
			if chosen == s {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Has reports whether stage is selected
func (c Config) Has(stage Stage) bool {
	for _, s := range c.Stages {
		if s == stage {
			return true
		}
	}
	return false
}

// WorkerCount returns the effective worker pool size
func (c Config) WorkerCount() int {
	if c.Workers <= 0 {
		return runtime.NumCPU()
	}
	return c.Workers
}

// Validate checks ranges before anything touches the filesystem.
// Only the parameters of selected stages are checked, except the speaker name
// which always names the working directory.
func (c Config) Validate() error {
	var problems *multierror.Error

	if strings.TrimSpace(c.Root) == "" {
		problems = multierror.Append(problems, errors.New("workspace root must not be empty"))
	}
	if err := processor.ValidateIdentity(c.Speaker); err != nil {
		problems = multierror.Append(problems, err)
	}
	if len(c.Selected()) == 0 {
		problems = multierror.Append(problems, errors.New("no stage selected: use --all or at least one of --trim, --split, --normalize, --rename"))
	}
	for _, s := range c.Stages {
		if s < StageTrim || s > StageRename {
			problems = multierror.Append(problems, fmt.Errorf("unknown stage %d", int(s)))
		}
	}
	if len(NormalizeFormats(c.Formats)) == 0 {
		problems = multierror.Append(problems, errors.New("at least one input format is required"))
	}
	if c.Workers < 0 {
		problems = multierror.Append(problems, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}

	if c.Has(StageTrim) {
		if err := c.Trim.Validate(); err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	if c.Has(StageSegment) {
		if err := processor.ValidateSegmentLength(c.SegmentLength); err != nil {
			problems = multierror.Append(problems, err)
		}
	}
	if c.Has(StageNormalize) {
		if err := processor.ValidateTarget(c.TargetDBFS); err != nil {
			problems = multierror.Append(problems, err)
		}
	}

	if problems.ErrorOrNil() == nil {
		return nil
	}
	return &processor.Error{
		Kind: processor.KindConfig,
		Op:   "config",
		Err:  problems,
	}
}

// NormalizeFormats lowercases extensions, strips leading dots and drops blanks and duplicates
func NormalizeFormats(formats []string) []string {
	seen := make(map[string]bool, len(formats))
	var out []string
	for _, f := range formats {
		f = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(f), "."))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}
