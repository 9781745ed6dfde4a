package logging

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/linuxmatters/voiceprep/internal/pipeline"
)

func TestFormatMetric(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		decimals int
		want     string
	}{
		{"zero", 0.0, 2, "0.00"},
		{"positive", 3.14159, 2, "3.14"},
		{"negative", -16.5, 1, "-16.5"},
		{"large", 12345.6789, 2, "12345.68"},
		{"nan", math.NaN(), 2, MissingValue},
		{"positive_inf", math.Inf(1), 2, MissingValue},
		{"negative_inf", math.Inf(-1), 2, MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMetric(tt.value, tt.decimals)
			if got != tt.want {
				t.Errorf("formatMetric(%v, %d) = %q, want %q", tt.value, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestFormatMetricDB(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  string
	}{
		{"normal", -14.04, "-14.0"},
		{"full_scale", 0, "0.0"},
		{"at_floor", -120, "< -120"},
		{"below_floor", -150, "< -120"},
		{"negative_inf", math.Inf(-1), "< -120"},
		{"positive_inf", math.Inf(1), MissingValue},
		{"nan", math.NaN(), MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMetricDB(tt.value, 1); got != tt.want {
				t.Errorf("formatMetricDB(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatMetricSigned(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  string
	}{
		{"positive", 6.02, "+6.0"},
		{"negative", -1.2, "-1.2"},
		{"zero", 0.0, "+0.0"},
		{"nan", math.NaN(), MissingValue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMetricSigned(tt.value, 1); got != tt.want {
				t.Errorf("formatMetricSigned(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{850 * time.Millisecond, "850ms"},
		{12340 * time.Millisecond, "12.3s"},
		{125 * time.Second, "2m05s"},
		{0, "0ms"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := formatDuration(tt.d); got != tt.want {
				t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
			}
		})
	}
}

func TestTableString(t *testing.T) {
	t.Run("aligned_columns", func(t *testing.T) {
		table := &Table{Headers: []string{"A", "Bee"}}
		table.AddRow("x", []string{"1", "22"}, "", "")
		table.AddRow("long", []string{"333", ""}, "s", "")

		want := "      " + "  A  " + "Bee  " + "\n" +
			"x     " + "  1  " + " 22  " + "  " + "\n" +
			"long  " + "333  " + "  -  " + "s " + "\n"
		if got := table.String(); got != want {
			t.Errorf("String() =\n%q\nwant\n%q", got, want)
		}
	})

	t.Run("notes_column", func(t *testing.T) {
		table := &Table{Headers: []string{"Trim"}}
		table.AddRow("Failed", []string{"2"}, "", "inputs kept")

		output := table.String()
		if !strings.Contains(output, "Notes") {
			t.Error("Output should contain 'Notes' header when rows have notes")
		}
		if !strings.Contains(output, "inputs kept") {
			t.Error("Output should contain the note")
		}
	})

	t.Run("empty_table", func(t *testing.T) {
		table := &Table{Headers: []string{"Trim"}}
		if output := table.String(); output != "" {
			t.Errorf("Empty table should return empty string, got %q", output)
		}
	})
}

func sampleRunReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		Intake: &pipeline.IntakeReport{Moved: 2, Files: 3},
		Stages: []pipeline.StageReport{
			{
				Stage: pipeline.StageTrim,
				Results: []pipeline.FileResult{
					{Input: "a.wav", Outputs: []string{"a_cut.wav"}, Audio: 1500 * time.Millisecond},
					{Input: "b.wav", Outputs: []string{"b_cut.wav"}, Audio: 1500 * time.Millisecond},
					{Input: "c.wav", Outcome: pipeline.OutcomeFailed},
				},
				Elapsed: 250 * time.Millisecond,
			},
			{
				Stage: pipeline.StageSegment,
				Results: []pipeline.FileResult{
					{Input: "a_cut.wav", Outputs: []string{"a_cut_0.wav", "a_cut_1.wav", "a_cut_2.wav"}, Audio: 3 * time.Second},
					{Input: "b_cut.wav", Outcome: pipeline.OutcomeSkipped},
				},
				Elapsed: 2 * time.Second,
			},
		},
	}
}

func rowValues(t *testing.T, table *Table, label string) []string {
	t.Helper()
	for _, row := range table.Rows {
		if row.Label == label {
			return row.Values
		}
	}
	t.Fatalf("table has no %q row", label)
	return nil
}

func TestSummaryTable(t *testing.T) {
	table := SummaryTable(sampleRunReport())

	if got := strings.Join(table.Headers, ","); got != "Trim,Segment" {
		t.Errorf("Headers = %q, want %q", got, "Trim,Segment")
	}

	tests := []struct {
		label string
		want  string
	}{
		{"Files", "3,2"},
		{"Done", "2,1"},
		{"Skipped", "0,1"},
		{"Failed", "1,0"},
		{"Written", "2,3"},
		{"Audio", "3.0,3.0"},
		{"Elapsed", "250ms,2.0s"},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := strings.Join(rowValues(t, table, tt.label), ","); got != tt.want {
				t.Errorf("%s = %q, want %q", tt.label, got, tt.want)
			}
		})
	}

	for _, row := range table.Rows {
		if row.Label == "Cancelled" {
			t.Error("Cancelled row shown for a run without cancellations")
		}
	}
}

func TestSummaryTableCancelled(t *testing.T) {
	report := &pipeline.RunReport{Stages: []pipeline.StageReport{{
		Stage:       pipeline.StageNormalize,
		Interrupted: true,
		Results: []pipeline.FileResult{
			{Input: "a.wav", Outputs: []string{"a.wav"}},
			{Input: "b.wav", Outcome: pipeline.OutcomeCancelled},
		},
	}}}

	table := SummaryTable(report)
	if got := strings.Join(rowValues(t, table, "Cancelled"), ","); got != "1" {
		t.Errorf("Cancelled = %q, want %q", got, "1")
	}
	if got := strings.Join(rowValues(t, table, "Audio"), ","); got != MissingValue {
		t.Errorf("Audio = %q, want %q", got, MissingValue)
	}
}

func TestSummaryTableEmpty(t *testing.T) {
	if out := SummaryTable(nil).String(); out != "" {
		t.Errorf("SummaryTable(nil) = %q, want empty", out)
	}
	if out := SummaryTable(&pipeline.RunReport{}).String(); out != "" {
		t.Errorf("SummaryTable(no stages) = %q, want empty", out)
	}
}
