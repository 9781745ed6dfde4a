// Package cli holds the command-line definition, config file loading and
// terminal styling for voiceprep.
package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"gopkg.in/yaml.v3"

	"github.com/linuxmatters/voiceprep/internal/logging"
	"github.com/linuxmatters/voiceprep/internal/pipeline"
	"github.com/linuxmatters/voiceprep/internal/processor"
)

// CLI defines the command-line interface
type CLI struct {
	Root  string `arg:"" name:"workspace" optional:"" help:"Workspace root (same as --input)"`
	Input string `short:"i" placeholder:"DIR" help:"Workspace root" default:"workspace"`
	Name  string `short:"n" placeholder:"SPEAKER" help:"Speaker name, used as directory and file prefix"`

	Formats []string `group:"Processing" placeholder:"EXT" default:"wav,flac,mp3" help:"Recognized source extensions"`

	All       bool `group:"Stages" short:"a" help:"Run trim, split, normalize and rename in order"`
	Trim      bool `group:"Stages" short:"c" help:"Cut silence from every file"`
	Split     bool `group:"Stages" short:"s" help:"Split files into fixed-length segments"`
	Normalize bool `group:"Stages" help:"Normalize loudness to --target-dbfs"`
	Rename    bool `group:"Stages" help:"Rename files to {name}0.wav, {name}1.wav, ..."`

	Thresh     float64 `group:"Parameters" placeholder:"DBFS" default:"-50" help:"Silence threshold in dBFS"`
	MinSilence int     `group:"Parameters" name:"min-silence" placeholder:"MS" default:"300" help:"Shortest silence removed, in milliseconds"`
	Padding    int     `group:"Parameters" placeholder:"MS" default:"100" help:"Audio kept around speech, in milliseconds"`
	Segment    float64 `group:"Parameters" placeholder:"SECONDS" default:"3" help:"Segment length in seconds"`
	TargetDBFS float64 `group:"Parameters" name:"target-dbfs" placeholder:"DBFS" default:"-14" help:"Target loudness in dBFS"`

	Workers      int  `group:"Processing" short:"j" placeholder:"N" default:"1" help:"Parallel workers for trim and split (0 uses every CPU)"`
	MultiProcess bool `group:"Processing" short:"m" name:"multi-process" help:"Use every CPU, same as --workers=0"`
	KeepGoing    bool `group:"Processing" name:"keep-going" help:"Run later stages even when files fail"`

	Plain       bool            `help:"Plain line output instead of the interactive display"`
	Config      kong.ConfigFlag `placeholder:"FILE" help:"YAML file supplying flag values"`
	LogFile     string          `name:"log-file" placeholder:"FILE" default:"${logfile}" help:"Debug log path, empty disables"`
	LogLevel    string          `name:"log-level" enum:"trace,debug,info,warn,error" default:"info" help:"Debug log level"`
	MetricsFile string          `name:"metrics-file" placeholder:"FILE" help:"Write Prometheus metrics to a textfile"`
	Logs        bool            `help:"Save a run report to SPEAKER-voiceprep.log"`

	Version bool `short:"v" help:"Show version information"`
}

// Options returns the kong options shared by main and tests
func Options(version string) []kong.Option {
	return []kong.Option{
		kong.Name("voiceprep"),
		kong.Description("Voice dataset preparation"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
			"logfile": logging.DefaultLogFile,
		},
		kong.Configuration(YAML),
		kong.Help(StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	}
}

// WorkspaceRoot returns the positional root when given, otherwise --input
func (c *CLI) WorkspaceRoot() string {
	if c.Root != "" {
		return c.Root
	}
	return c.Input
}

// Stages returns the stages selected by flags
func (c *CLI) Stages() []pipeline.Stage {
	if c.All {
		return append([]pipeline.Stage(nil), pipeline.AllStages...)
	}
	var stages []pipeline.Stage
	if c.Trim {
		stages = append(stages, pipeline.StageTrim)
	}
	if c.Split {
		stages = append(stages, pipeline.StageSegment)
	}
	if c.Normalize {
		stages = append(stages, pipeline.StageNormalize)
	}
	if c.Rename {
		stages = append(stages, pipeline.StageRename)
	}
	return stages
}

// ToConfig converts parsed flags into a pipeline configuration and validates it
func (c *CLI) ToConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	cfg.Root = c.WorkspaceRoot()
	cfg.Speaker = c.Name
	cfg.Formats = pipeline.NormalizeFormats(c.Formats)
	cfg.Stages = c.Stages()
	cfg.Trim = processor.TrimParams{
		ThresholdDBFS: c.Thresh,
		MinSilence:    time.Duration(c.MinSilence) * time.Millisecond,
		Padding:       time.Duration(c.Padding) * time.Millisecond,
	}
	cfg.SegmentLength = time.Duration(c.Segment * float64(time.Second))
	cfg.TargetDBFS = c.TargetDBFS
	cfg.Workers = c.Workers
	if c.MultiProcess {
		cfg.Workers = 0
	}
	cfg.ContinueOnError = c.KeepGoing

	return cfg, cfg.Validate()
}

// YAML is a kong configuration loader for YAML files. Keys are flag names;
// dashes and underscores are interchangeable.
func YAML(r io.Reader) (kong.Resolver, error) {
	values := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && !errors.Is(err, io.EOF) {
		return nil, &processor.Error{Kind: processor.KindConfig, Op: "config", Err: err}
	}

	normalised := make(map[string]any, len(values))
	for key, value := range values {
		normalised[strings.ReplaceAll(key, "-", "_")] = value
	}

	data, err := json.Marshal(normalised)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return kong.JSON(bytes.NewReader(data))
}
