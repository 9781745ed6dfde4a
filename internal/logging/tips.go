package logging

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
	"github.com/linuxmatters/voiceprep/internal/processor"
)

// Tip is a single piece of actionable advice derived from a run
type Tip struct {
	Priority int    // higher is more important (1-10)
	Message  string // one or two sentences
	RuleID   string // stable identifier, e.g. "trim_all_silent"
}

// MaxTips is the maximum number of tips returned
const MaxTips = 4

// pipelineWorkersHint is the file count above which a single worker is worth mentioning
const pipelineWorkersHint = 8

type tipRule func(cfg pipeline.Config, report *pipeline.RunReport) *Tip

// GenerateTips inspects a finished run and returns prioritised suggestions
// for the next one
func GenerateTips(cfg pipeline.Config, report *pipeline.RunReport) []Tip {
	if report == nil {
		return nil
	}

	rules := []tipRule{
		tipNoAudio,
		tipAllSilent,
		tipUndecodable,
		tipClipping,
		tipTooShort,
		tipStoppedEarly,
		tipSingleWorker,
	}

	var tips []Tip
	fired := make(map[string]bool)
	for _, rule := range rules {
		if tip := rule(cfg, report); tip != nil {
			tips = append(tips, *tip)
			fired[tip.RuleID] = true
		}
	}

	tips = applyExclusions(tips, fired)

	sort.SliceStable(tips, func(i, j int) bool {
		return tips[i].Priority > tips[j].Priority
	})
	if len(tips) > MaxTips {
		tips = tips[:MaxTips]
	}
	return tips
}

// applyExclusions drops tips made redundant by a more specific one
func applyExclusions(tips []Tip, fired map[string]bool) []Tip {
	var out []Tip
	for _, tip := range tips {
		if tip.RuleID == "single_worker" && (fired["no_audio"] || fired["stopped_early"]) {
			continue
		}
		out = append(out, tip)
	}
	return out
}

// FormatTips renders tips as a numbered list wrapped at width columns
func FormatTips(tips []Tip, width int) string {
	var sb strings.Builder
	for i, tip := range tips {
		prefix := fmt.Sprintf("%d. ", i+1)
		indent := strings.Repeat(" ", len(prefix))
		sb.WriteString(prefix)
		sb.WriteString(wrapText(tip.Message, width-len(prefix), indent))
		sb.WriteString("\n")
	}
	return sb.String()
}

// wrapText wraps text at word boundaries to fit within maxWidth columns.
// Continuation lines are prefixed with indent.
func wrapText(text string, maxWidth int, indent string) string {
	var lines []string
	line := ""
	for _, word := range strings.Fields(text) {
		switch {
		case line == "":
			line = word
		case len(line)+1+len(word) <= maxWidth:
			line += " " + word
		default:
			lines = append(lines, line)
			line = word
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n"+indent)
}

// stageReport returns the report for stage, or nil when it did not run
func stageReport(report *pipeline.RunReport, stage pipeline.Stage) *pipeline.StageReport {
	for i := range report.Stages {
		if report.Stages[i].Stage == stage {
			return &report.Stages[i]
		}
	}
	return nil
}

// countKind counts failed results of the given kind across all stages
func countKind(report *pipeline.RunReport, kind processor.Kind) int {
	n := 0
	for _, s := range report.Stages {
		for _, r := range s.Failed() {
			if processor.KindOf(r.Err) == kind {
				n++
			}
		}
	}
	return n
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// tipNoAudio fires when intake found nothing to process
func tipNoAudio(cfg pipeline.Config, report *pipeline.RunReport) *Tip {
	if report.Intake == nil || report.Intake.Files > 0 {
		return nil
	}
	return &Tip{
		Priority: 10,
		RuleID:   "no_audio",
		Message: fmt.Sprintf("No audio files were found under %s. Recognised formats are %s; add more with --formats.",
			cfg.Root, strings.Join(cfg.Formats, ", ")),
	}
}

// tipAllSilent fires when trimming found no audio above the threshold
func tipAllSilent(cfg pipeline.Config, report *pipeline.RunReport) *Tip {
	trim := stageReport(report, pipeline.StageTrim)
	if trim == nil {
		return nil
	}
	n := 0
	for _, r := range trim.Failed() {
		if errors.Is(r.Err, processor.ErrEmptyResult) {
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return &Tip{
		Priority: 9,
		RuleID:   "trim_all_silent",
		Message: fmt.Sprintf("%s had nothing above the %.0f dBFS silence threshold. Quiet recordings need a lower --thresh, for example %.0f.",
			plural(n, "file"), cfg.Trim.ThresholdDBFS, cfg.Trim.ThresholdDBFS-10),
	}
}

// tipUndecodable fires when sources could not be decoded
func tipUndecodable(_ pipeline.Config, report *pipeline.RunReport) *Tip {
	n := countKind(report, processor.KindDecode)
	if n == 0 {
		return nil
	}
	return &Tip{
		Priority: 8,
		RuleID:   "decode_failed",
		Message: fmt.Sprintf("%s could not be decoded. FLAC, MP3 and compressed WAV sources need ffmpeg and ffprobe on your PATH.",
			plural(n, "file")),
	}
}

// tipClipping fires when normalization had to clamp samples
func tipClipping(cfg pipeline.Config, report *pipeline.RunReport) *Tip {
	norm := stageReport(report, pipeline.StageNormalize)
	if norm == nil {
		return nil
	}
	files := 0
	for _, r := range norm.Results {
		if r.Clipped > 0 {
			files++
		}
	}
	if files == 0 {
		return nil
	}
	return &Tip{
		Priority: 7,
		RuleID:   "normalize_clipped",
		Message: fmt.Sprintf("%s clipped when raised to %.0f dBFS. A lower --target-dbfs, such as %.0f, avoids the distortion.",
			plural(files, "file"), cfg.TargetDBFS, cfg.TargetDBFS-4),
	}
}

// tipTooShort fires when segmentation skipped sources shorter than one second
func tipTooShort(_ pipeline.Config, report *pipeline.RunReport) *Tip {
	seg := stageReport(report, pipeline.StageSegment)
	if seg == nil {
		return nil
	}
	n := seg.Count(pipeline.OutcomeSkipped)
	if n == 0 {
		return nil
	}
	return &Tip{
		Priority: 5,
		RuleID:   "segment_too_short",
		Message: fmt.Sprintf("%s shorter than %.0f second produced no segments and were removed. Check the silence settings if this was unexpected.",
			plural(n, "file"), processor.MinimumSegmentSeconds),
	}
}

// tipStoppedEarly fires when failures stopped the run before every stage ran
func tipStoppedEarly(cfg pipeline.Config, report *pipeline.RunReport) *Tip {
	if cfg.ContinueOnError || len(report.Stages) == 0 || len(report.Stages) >= len(cfg.Selected()) {
		return nil
	}
	last := report.Stages[len(report.Stages)-1]
	if last.Interrupted || len(last.Failed()) == 0 {
		return nil
	}
	return &Tip{
		Priority: 4,
		RuleID:   "stopped_early",
		Message: fmt.Sprintf("The run stopped after the %s stage because of failures. Use --keep-going to run the remaining stages on the files that succeeded.",
			last.Stage),
	}
}

// tipSingleWorker fires when many files went through the parallel stages one at a time
func tipSingleWorker(cfg pipeline.Config, report *pipeline.RunReport) *Tip {
	if cfg.WorkerCount() > 1 {
		return nil
	}
	most := 0
	for _, s := range report.Stages {
		if s.Stage == pipeline.StageTrim || s.Stage == pipeline.StageSegment {
			most = max(most, len(s.Results))
		}
	}
	if most < pipelineWorkersHint {
		return nil
	}
	return &Tip{
		Priority: 2,
		RuleID:   "single_worker",
		Message:  "Trimming and splitting ran on one worker. Use --multi-process or --workers to process files in parallel.",
	}
}
