package ui

import (
	"strings"
)

// TableColumn describes one column of a rendered table
type TableColumn struct {
	Header string
	Width  int // minimum width; grows to fit content
}

// Table renders rows of plain text as an aligned terminal table
type Table struct {
	Columns []TableColumn
	Rows    [][]string
}

// NewTable creates a table with the given columns
func NewTable(columns []TableColumn) *Table {
	return &Table{Columns: columns}
}

// AddRow appends a row
func (t *Table) AddRow(cells []string) {
	t.Rows = append(t.Rows, cells)
}

// Render produces the table as a string
func (t *Table) Render() string {
	if len(t.Columns) == 0 {
		return ""
	}

	widths := make([]int, len(t.Columns))
	for i, col := range t.Columns {
		widths[i] = len(col.Header)
		if col.Width > widths[i] {
			widths[i] = col.Width
		}
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder

	headers := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		headers[i] = pad(col.Header, widths[i])
	}
	b.WriteString(StyleTableHeader.Render(strings.Join(headers, "  ")))
	b.WriteString("\n")

	separators := make([]string, len(t.Columns))
	for i := range t.Columns {
		separators[i] = strings.Repeat("─", widths[i])
	}
	b.WriteString(StyleMuted.Render(strings.Join(separators, "  ")))
	b.WriteString("\n")

	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i := range t.Columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			cells[i] = pad(cell, widths[i])
		}
		b.WriteString(StyleTableRow.Render(strings.Join(cells, "  ")))
		b.WriteString("\n")
	}

	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}
