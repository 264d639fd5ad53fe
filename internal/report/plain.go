package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/tinytelemetry/callstat/internal/model"
)

// PlainRenderer writes tab-aligned text with no styling.
type PlainRenderer struct {
	Transpose bool
}

func (p PlainRenderer) Render(w io.Writer, r *model.Report) error {
	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no call data")
		return err
	}

	header, rows := grid(r, p.Transpose)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	if _, err := fmt.Fprintln(tw, strings.Join(header, "\t")+"\t"); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")+"\t"); err != nil {
			return err
		}
	}
	return tw.Flush()
}
