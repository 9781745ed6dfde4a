// Table formatting shared by the run report and the plain summary printed after a run.

package logging

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

// Row is a single row of a Table. Values are pre-formatted so a row can mix
// counts, durations and levels.
type Row struct {
	Label  string   // e.g. "Outputs"
	Values []string // one per header
	Unit   string   // "s", "dB", or "" for counts
	Note   string   // optional trailing remark
}

// Table renders aligned columns with one value column per header
type Table struct {
	Headers []string
	Rows    []Row
}

// AddRow appends a row of pre-formatted values
func (t *Table) AddRow(label string, values []string, unit, note string) {
	t.Rows = append(t.Rows, Row{Label: label, Values: values, Unit: unit, Note: note})
}

// String renders the table. Labels are left-aligned, values right-aligned in
// their column, and units follow the last value column. The note column only
// appears when some row has a note.
func (t *Table) String() string {
	if len(t.Rows) == 0 {
		return ""
	}

	labelWidth, unitWidth := 0, 0
	hasNotes := false
	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = len(h)
	}
	for _, row := range t.Rows {
		labelWidth = max(labelWidth, len(row.Label))
		unitWidth = max(unitWidth, len(row.Unit))
		if row.Note != "" {
			hasNotes = true
		}
		for i, v := range row.Values {
			if i < len(widths) {
				widths[i] = max(widths[i], len(v))
			}
		}
	}

	var sb strings.Builder

	sb.WriteString(strings.Repeat(" ", labelWidth+2))
	for i, h := range t.Headers {
		fmt.Fprintf(&sb, "%*s  ", widths[i], h)
	}
	if hasNotes {
		if unitWidth > 0 {
			sb.WriteString(strings.Repeat(" ", unitWidth+1))
		}
		sb.WriteString("Notes")
	}
	sb.WriteString("\n")

	for _, row := range t.Rows {
		fmt.Fprintf(&sb, "%-*s  ", labelWidth, row.Label)
		for i := range t.Headers {
			v := MissingValue
			if i < len(row.Values) && row.Values[i] != "" {
				v = row.Values[i]
			}
			fmt.Fprintf(&sb, "%*s  ", widths[i], v)
		}
		if unitWidth > 0 {
			fmt.Fprintf(&sb, "%-*s ", unitWidth, row.Unit)
		}
		if hasNotes {
			sb.WriteString(row.Note)
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

// MissingValue is the placeholder for unavailable values
const MissingValue = "-"

// SilenceFloor is the level reported for digital silence, in dBFS
const SilenceFloor = -120.0

// formatMetric formats a value to the given decimals; NaN and Inf are missing
func formatMetric(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricDB formats a level in dBFS, showing digital silence as "< -120"
func formatMetricDB(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 1) {
		return MissingValue
	}
	if math.IsInf(value, -1) || value <= SilenceFloor {
		return "< -120"
	}
	return fmt.Sprintf("%.*f", decimals, value)
}

// formatMetricSigned formats a gain change with an explicit sign
func formatMetricSigned(value float64, decimals int) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return MissingValue
	}
	return fmt.Sprintf("%+.*f", decimals, value)
}

// formatSeconds formats a duration as seconds with one decimal
func formatSeconds(d time.Duration) string {
	return formatMetric(d.Seconds(), 1)
}

// formatDuration formats elapsed time compactly: 850ms, 12.3s, 2m05s
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		m := int(d.Minutes())
		s := int(d.Seconds()) - m*60
		return fmt.Sprintf("%dm%02ds", m, s)
	}
}

// SummaryTable builds one column per stage that ran, with outcome counts,
// files written, audio written and elapsed time
func SummaryTable(report *pipeline.RunReport) *Table {
	t := &Table{}
	if report == nil || len(report.Stages) == 0 {
		return t
	}

	cancelled := false
	for _, s := range report.Stages {
		t.Headers = append(t.Headers, stageHeader(s.Stage))
		if s.Count(pipeline.OutcomeCancelled) > 0 {
			cancelled = true
		}
	}

	column := func(f func(s pipeline.StageReport) string) []string {
		values := make([]string, len(report.Stages))
		for i, s := range report.Stages {
			values[i] = f(s)
		}
		return values
	}
	count := func(o pipeline.Outcome) []string {
		return column(func(s pipeline.StageReport) string {
			return fmt.Sprint(s.Count(o))
		})
	}

	t.AddRow("Files", column(func(s pipeline.StageReport) string {
		return fmt.Sprint(len(s.Results))
	}), "", "")
	t.AddRow("Done", count(pipeline.OutcomeDone), "", "")
	t.AddRow("Skipped", count(pipeline.OutcomeSkipped), "", "too short to segment")
	t.AddRow("Failed", count(pipeline.OutcomeFailed), "", "inputs kept")
	if cancelled {
		t.AddRow("Cancelled", count(pipeline.OutcomeCancelled), "", "interrupted")
	}
	t.AddRow("Written", column(func(s pipeline.StageReport) string {
		return fmt.Sprint(s.Outputs())
	}), "", "")
	t.AddRow("Audio", column(func(s pipeline.StageReport) string {
		if s.Audio() == 0 {
			return MissingValue
		}
		return formatSeconds(s.Audio())
	}), "s", "")
	t.AddRow("Elapsed", column(func(s pipeline.StageReport) string {
		return formatDuration(s.Elapsed)
	}), "", "")

	return t
}

func stageHeader(s pipeline.Stage) string {
	name := s.String()
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
