package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/tinytelemetry/callstat/internal/model"
)

// Supported output formats.
const (
	FormatPlain = "plain"
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("report: unknown format")

// Renderer writes a finished report to w.
type Renderer interface {
	Render(w io.Writer, r *model.Report) error
}

// Options selects the output format and layout.
type Options struct {
	Format string
	// Transpose puts metrics on rows and hours on columns.
	Transpose bool
}

// New returns the renderer for opts.Format. An empty format means plain.
func New(opts Options) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", FormatPlain:
		return PlainRenderer{Transpose: opts.Transpose}, nil
	case FormatTable:
		return TableRenderer{Transpose: opts.Transpose}, nil
	case FormatJSON:
		return JSONRenderer{Transpose: opts.Transpose}, nil
	case FormatYAML:
		return YAMLRenderer{Transpose: opts.Transpose}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}

// Write renders r to path, or to stdout when path is empty or "-".
func Write(path string, stdout io.Writer, r *model.Report, renderer Renderer) error {
	if path == "" || path == "-" {
		return renderer.Render(stdout, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("report: create %s: %w", path, err)
	}
	if err := renderer.Render(f, r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("report: close %s: %w", path, err)
	}
	return nil
}

// FormatValue prints whole numbers without a fraction and everything else
// with the shortest exact representation.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// grid lays the report out as a header plus string rows.
func grid(r *model.Report, transpose bool) (header []string, rows [][]string) {
	if transpose {
		header = make([]string, 0, len(r.Rows)+1)
		header = append(header, "Metric")
		for _, row := range r.Rows {
			header = append(header, row.Label)
		}
		for _, metric := range r.Metrics {
			line := make([]string, 0, len(r.Rows)+1)
			line = append(line, metric)
			for _, row := range r.Rows {
				line = append(line, FormatValue(row.Metrics[metric]))
			}
			rows = append(rows, line)
		}
		return header, rows
	}

	header = make([]string, 0, len(r.Metrics)+1)
	header = append(header, "Hour")
	header = append(header, r.Metrics...)
	for _, row := range r.Rows {
		line := make([]string, 0, len(r.Metrics)+1)
		line = append(line, row.Label)
		for _, metric := range r.Metrics {
			line = append(line, FormatValue(row.Metrics[metric]))
		}
		rows = append(rows, line)
	}
	return header, rows
}
