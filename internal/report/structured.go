package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/tinytelemetry/callstat/internal/model"
)

// JSONRenderer writes an object keyed by hour label ("10:00") whose values
// map metric names to numbers. Transposed, the outer keys are metric names.
type JSONRenderer struct {
	Transpose bool
}

func (j JSONRenderer) Render(w io.Writer, r *model.Report) error {
	var buf bytes.Buffer
	buf.WriteByte('{')
	outer, inner := keys(r, j.Transpose)
	for i, key := range outer {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeJSONKey(&buf, key)
		buf.WriteByte('{')
		for k, name := range inner {
			if k > 0 {
				buf.WriteByte(',')
			}
			writeJSONKey(&buf, name)
			buf.WriteString(FormatValue(lookup(r, j.Transpose, i, k)))
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("report: json: %w", err)
	}
	out.WriteByte('\n')
	_, err := out.WriteTo(w)
	return err
}

func writeJSONKey(buf *bytes.Buffer, key string) {
	b, _ := json.Marshal(key)
	buf.Write(b)
	buf.WriteByte(':')
}

// YAMLRenderer writes the same shape as JSONRenderer as a YAML document.
type YAMLRenderer struct {
	Transpose bool
}

func (y YAMLRenderer) Render(w io.Writer, r *model.Report) error {
	doc := &yaml.Node{Kind: yaml.MappingNode}
	outer, inner := keys(r, y.Transpose)
	for i, key := range outer {
		values := &yaml.Node{Kind: yaml.MappingNode}
		for k, name := range inner {
			values.Content = append(values.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name},
				&yaml.Node{Kind: yaml.ScalarNode, Value: FormatValue(lookup(r, y.Transpose, i, k))},
			)
		}
		doc.Content = append(doc.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
			values,
		)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("report: yaml: %w", err)
	}
	return enc.Close()
}

// keys returns the outer and inner key order of the structured layouts.
func keys(r *model.Report, transpose bool) (outer, inner []string) {
	labels := make([]string, 0, len(r.Rows))
	for _, row := range r.Rows {
		labels = append(labels, row.Label)
	}
	if transpose {
		return r.Metrics, labels
	}
	return labels, r.Metrics
}

func lookup(r *model.Report, transpose bool, outer, inner int) float64 {
	if transpose {
		return r.Rows[inner].Metrics[r.Metrics[outer]]
	}
	return r.Rows[outer].Metrics[r.Metrics[inner]]
}
