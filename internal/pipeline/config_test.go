package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/voiceprep/internal/processor"
)

func TestStageNames(t *testing.T) {
	tests := []struct {
		stage Stage
		name  string
	}{
		{StageTrim, "trim"},
		{StageSegment, "segment"},
		{StageNormalize, "normalize"},
		{StageRename, "rename"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stage.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			parsed, err := ParseStage(tt.name)
			if err != nil {
				t.Fatalf("ParseStage(%q) error: %v", tt.name, err)
			}
			if parsed != tt.stage {
				t.Errorf("ParseStage(%q) = %v, want %v", tt.name, parsed, tt.stage)
			}
			if tt.stage.Title() == "" {
				t.Error("Title() is empty")
			}
		})
	}

	if _, err := ParseStage("mix"); err == nil {
		t.Error("ParseStage accepted an unknown stage")
	}
}

func TestSelectedKeepsExecutionOrder(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Stages = []Stage{StageRename, StageTrim, StageRename, StageNormalize}

	got := cfg.Selected()
	want := []Stage{StageTrim, StageNormalize, StageRename}
	if len(got) != len(want) {
		t.Fatalf("Selected() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Selected()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if cfg.Has(StageSegment) {
		t.Error("Has(StageSegment) = true for an unselected stage")
	}
}

func TestWorkerCount(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.WorkerCount() != 1 {
		t.Errorf("default WorkerCount() = %d, want 1", cfg.WorkerCount())
	}
	cfg.Workers = 0
	if cfg.WorkerCount() < 1 {
		t.Errorf("WorkerCount() with 0 workers = %d, want at least 1", cfg.WorkerCount())
	}
	cfg.Workers = 6
	if cfg.WorkerCount() != 6 {
		t.Errorf("WorkerCount() = %d, want 6", cfg.WorkerCount())
	}
}

func TestConfigValidate(t *testing.T) {
	valid := DefaultConfig()
	valid.Speaker = "alice"

	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"missing speaker", func(c *Config) { c.Speaker = "" }, true},
		{"speaker with separator", func(c *Config) { c.Speaker = "a/b" }, true},
		{"empty root", func(c *Config) { c.Root = " " }, true},
		{"no stages", func(c *Config) { c.Stages = nil }, true},
		{"no formats", func(c *Config) { c.Formats = []string{"", "."} }, true},
		{"negative workers", func(c *Config) { c.Workers = -1 }, true},
		{"positive threshold", func(c *Config) { c.Trim.ThresholdDBFS = 3 }, true},
		{"zero segment length", func(c *Config) { c.SegmentLength = 0 }, true},
		{"sub-second segment length", func(c *Config) { c.SegmentLength = 500 * time.Millisecond }, true},
		{"positive target", func(c *Config) { c.TargetDBFS = 1 }, true},
		{
			"bad segment length ignored when segment not selected",
			func(c *Config) {
				c.Stages = []Stage{StageTrim}
				c.SegmentLength = 0
			},
			false,
		},
		{
			"bad target ignored when normalize not selected",
			func(c *Config) {
				c.Stages = []Stage{StageRename}
				c.TargetDBFS = 6
			},
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			cfg.Stages = append([]Stage(nil), valid.Stages...)
			tt.modify(&cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, processor.ErrConfig) {
				t.Errorf("Validate() error kind = %v, want %v", processor.KindOf(err), processor.KindConfig)
			}
		})
	}
}

func TestConfigValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Speaker = ""
	cfg.SegmentLength = -time.Second
	cfg.TargetDBFS = 2

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() accepted an invalid config")
	}
	var perr *processor.Error
	if !errors.As(err, &perr) {
		t.Fatalf("Validate() error %T is not a *processor.Error", err)
	}
	if perr.Kind != processor.KindConfig {
		t.Errorf("Kind = %v, want %v", perr.Kind, processor.KindConfig)
	}
	for _, fragment := range []string{"segment", "target"} {
		if !strings.Contains(strings.ToLower(err.Error()), fragment) {
			t.Errorf("error %q does not mention %q", err.Error(), fragment)
		}
	}
}

func TestNormalizeFormats(t *testing.T) {
	got := NormalizeFormats([]string{" WAV", ".flac", "wav", "", "Mp3"})
	want := []string{"wav", "flac", "mp3"}
	if !equalNames(got, want) {
		t.Errorf("NormalizeFormats() = %v, want %v", got, want)
	}
}
