package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/callstat/internal/model"
)

func sampleReport() *model.Report {
	return &model.Report{
		RunID:   "run-1",
		Metrics: []string{"INVITE A-leg", "Successful calls", "CAPS"},
		Rows: []model.HourRow{
			{Hour: 9, Label: "09:00", Metrics: map[string]float64{"INVITE A-leg": 2, "Successful calls": 1, "CAPS": 2.0 / 3600}},
			{Hour: 10, Label: "10:00", Metrics: map[string]float64{"INVITE A-leg": 1, "Successful calls": 0, "CAPS": 1.0 / 3600}},
		},
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		format string
		want   Renderer
	}{
		{"", PlainRenderer{}},
		{"plain", PlainRenderer{}},
		{"TABLE", TableRenderer{}},
		{"json", JSONRenderer{}},
		{" yaml ", YAMLRenderer{}},
	}
	for _, tt := range tests {
		got, err := New(Options{Format: tt.format})
		if err != nil {
			t.Fatalf("New(%q): %v", tt.format, err)
		}
		if got != tt.want {
			t.Errorf("New(%q) = %#v, want %#v", tt.format, got, tt.want)
		}
	}

	if _, err := New(Options{Format: "xml"}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("New(xml) err = %v, want ErrUnknownFormat", err)
	}
}

func TestFormatValue(t *testing.T) {
	tests := map[float64]string{
		0:         "0",
		42:        "42",
		0.25:      "0.25",
		1.0 / 4e3: "0.00025",
	}
	for in, want := range tests {
		if got := FormatValue(in); got != want {
			t.Errorf("FormatValue(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestPlainRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (PlainRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for _, want := range []string{"Hour", "INVITE A-leg", "Successful calls", "CAPS"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("header %q missing %q", lines[0], want)
		}
	}
	if !strings.Contains(lines[1], "09:00") || !strings.Contains(lines[1], "0.0005555555555555556") {
		t.Errorf("unexpected first row %q", lines[1])
	}
}

func TestPlainRenderer_Transposed(t *testing.T) {
	var buf bytes.Buffer
	if err := (PlainRenderer{Transpose: true}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "09:00") || !strings.Contains(lines[0], "10:00") {
		t.Errorf("header %q should list hours", lines[0])
	}
	if fields := strings.Fields(lines[2]); len(fields) != 4 || fields[2] != "1" || fields[3] != "0" {
		t.Errorf("successful calls row = %q", lines[2])
	}
}

func TestPlainRenderer_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := (PlainRenderer{}).Render(&buf, &model.Report{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if buf.String() != "no call data\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestTableRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (TableRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Hour", "INVITE A-leg", "09:00", "10:00"} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}

	var got map[string]map[string]float64
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if got["09:00"]["INVITE A-leg"] != 2 || got["10:00"]["CAPS"] != 1.0/3600 {
		t.Fatalf("unexpected values: %+v", got)
	}
	if strings.Index(buf.String(), "INVITE A-leg") > strings.Index(buf.String(), "Successful calls") {
		t.Error("metric order not preserved")
	}
}

func TestJSONRenderer_Transposed(t *testing.T) {
	var buf bytes.Buffer
	if err := (JSONRenderer{Transpose: true}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var got map[string]map[string]float64
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got["Successful calls"]["09:00"] != 1 {
		t.Fatalf("unexpected values: %+v", got)
	}
}

func TestYAMLRenderer(t *testing.T) {
	var buf bytes.Buffer
	if err := (YAMLRenderer{}).Render(&buf, sampleReport()); err != nil {
		t.Fatalf("Render: %v", err)
	}
	var got map[string]map[string]float64
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("Unmarshal: %v\n%s", err, buf.String())
	}
	if got["09:00"]["Successful calls"] != 1 || got["10:00"]["INVITE A-leg"] != 1 {
		t.Fatalf("unexpected values: %+v", got)
	}
}

func TestWrite(t *testing.T) {
	var stdout bytes.Buffer
	path := filepath.Join(t.TempDir(), "report.json")
	if err := Write(path, &stdout, sampleReport(), JSONRenderer{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if stdout.Len() != 0 {
		t.Errorf("file output leaked to stdout: %q", stdout.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("invalid json: %s", data)
	}
}

func TestWrite_Stdout(t *testing.T) {
	var stdout bytes.Buffer
	if err := Write("-", &stdout, sampleReport(), PlainRenderer{}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.Contains(stdout.String(), "10:00") {
		t.Fatalf("stdout = %q", stdout.String())
	}
}
