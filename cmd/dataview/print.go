package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/JonMunkholm/dataview/internal/gateway"
	"github.com/JonMunkholm/dataview/internal/schema"
	"github.com/JonMunkholm/dataview/internal/tui"
	"github.com/JonMunkholm/dataview/internal/viewer"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// listing is the JSON shape printed with --json.
type listing struct {
	Columns    schema.Schema `json:"columns"`
	Rows       []schema.Row  `json:"rows"`
	Offset     int           `json:"offset"`
	TotalCount int           `json:"total_count"`
}

func (a *app) printSession(w io.Writer, s viewer.Session) error {
	return a.print(w, listing{Columns: s.Schema, Rows: s.Rows, TotalCount: s.TotalCount})
}

func (a *app) printPage(w io.Writer, p gateway.Page, offset int) error {
	cols := p.Schema.Map()
	cols.CoverRows(p.Rows)
	return a.print(w, listing{Columns: cols, Rows: p.Rows, Offset: offset, TotalCount: p.TotalCount})
}

func (a *app) print(w io.Writer, l listing) error {
	if a.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	}

	cols := l.Columns.Columns()
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = fmt.Sprintf("%s (%s)", c.Name, c.Type)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range l.Rows {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = tui.FormatValue(r[c.Name])
		}
		t.Row(cells...)
	}

	if _, err := fmt.Fprintln(w, t.Render()); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "rows %d-%d of %d\n", l.Offset+min(1, len(l.Rows)), l.Offset+len(l.Rows), l.TotalCount)
	return err
}
