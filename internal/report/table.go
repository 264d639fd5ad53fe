package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/tinytelemetry/callstat/internal/model"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1).Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// TableRenderer draws the report as a bordered terminal table.
type TableRenderer struct {
	Transpose bool
}

func (t TableRenderer) Render(w io.Writer, r *model.Report) error {
	if len(r.Rows) == 0 {
		_, err := fmt.Fprintln(w, "no call data")
		return err
	}

	header, rows := grid(r, t.Transpose)
	tbl := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 0:
				return labelStyle
			default:
				return cellStyle
			}
		})

	_, err := fmt.Fprintln(w, tbl.Render())
	return err
}
