package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"

	"github.com/JonMunkholm/dataview/internal/viewer"
)

const (
	minColumnWidth = 4
	maxColumnWidth = 28
)

// syncTable rebuilds the table columns and rows from the session.
func (m *Model) syncTable() {
	cols := m.session.Schema.Columns()
	if m.column >= len(cols) {
		m.column = 0
	}

	columns := make([]table.Column, len(cols))
	for i, c := range cols {
		title := fmt.Sprintf("%s: %s", c.Name, c.Type)
		if i == m.column {
			title = "▸" + title
		}
		width := len([]rune(title))
		for _, row := range m.session.Rows {
			width = max(width, len([]rune(FormatValue(row[c.Name]))))
			if width >= maxColumnWidth {
				break
			}
		}
		columns[i] = table.Column{Title: title, Width: min(max(width, minColumnWidth), maxColumnWidth)}
	}

	rows := make([]table.Row, len(m.session.Rows))
	for i, r := range m.session.Rows {
		cells := make(table.Row, len(cols))
		for j, c := range cols {
			cells[j] = FormatValue(r[c.Name])
		}
		rows[i] = cells
	}

	// Rows must never have fewer cells than the columns being rendered.
	shape := strings.Join(m.session.Schema.Names(), "\x00")
	if shape != m.lastShape {
		m.table.SetRows(nil)
		m.lastShape = shape
	}
	m.table.SetColumns(columns)
	m.table.SetRows(rows)
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("dataview"))
	b.WriteString("\n")

	upload := activeSectionStyle
	browse := sectionStyle
	if m.focus == focusTable {
		upload, browse = sectionStyle, activeSectionStyle
	}
	b.WriteString(upload.Render(m.uploadView()))
	b.WriteString("\n")
	b.WriteString(browse.Render(m.browseView()))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help.View(keys)))

	return b.String()
}

func (m Model) uploadView() string {
	var lines []string
	lines = append(lines, m.input.View())

	s := m.session
	switch {
	case s.Phase == viewer.PhaseUploading:
		lines = append(lines, fmt.Sprintf("%s Uploading %s...", m.spinner.View(), s.File.Name))
	case s.File != nil:
		lines = append(lines, labelStyle.Render("Selected: ")+infoStyle.Render(fmt.Sprintf("%s (%s)", s.File.Name, formatSize(s.File.Size))))
	}

	if m.inputErr != "" {
		lines = append(lines, errorStyle.Render(m.inputErr))
	}
	if s.UploadErr != "" {
		lines = append(lines, errorStyle.Render(s.UploadErr))
	}
	return strings.Join(lines, "\n")
}

func (m Model) browseView() string {
	s := m.session
	var lines []string

	if !s.HasDataset() {
		lines = append(lines, labelStyle.Render("No data loaded."))
	} else {
		status := fmt.Sprintf("%d of %d rows", len(s.Rows), s.TotalCount)
		if s.Phase == viewer.PhaseLoadingMore {
			status += " " + m.spinner.View() + " loading"
		}
		lines = append(lines, infoStyle.Render(status), m.table.View())
	}

	if s.BrowseErr != "" {
		lines = append(lines, errorStyle.Render(s.BrowseErr))
	}
	return strings.Join(lines, "\n")
}
