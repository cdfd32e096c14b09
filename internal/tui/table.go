package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// TableColumn defines a column in a table. Width is measured in terminal cells.
type TableColumn struct {
	Name  string
	Width int
	Align Alignment
}

// Alignment defines text alignment in a column.
type Alignment int

// Alignment constants.
const (
	AlignLeft Alignment = iota
	AlignRight
)

// Table renders fixed-width columns. Cell widths are measured with
// go-runewidth so wide characters in issue titles do not break alignment,
// and styled cells are measured after stripping ANSI sequences.
type Table struct {
	w       io.Writer
	styles  *TableStyles
	columns []TableColumn
}

// NewTable creates a new table with the given columns.
func NewTable(w io.Writer, columns []TableColumn) *Table {
	return &Table{
		w:       w,
		styles:  NewTableStyles(),
		columns: columns,
	}
}

// WriteHeader writes the table header row.
func (t *Table) WriteHeader() {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	_, _ = fmt.Fprintln(t.w, t.styles.Header.Render(t.line(names)))
}

// WriteRow writes a data row. Cells may contain lipgloss styling.
func (t *Table) WriteRow(values ...string) {
	_, _ = fmt.Fprintln(t.w, t.line(values))
}

func (t *Table) line(values []string) string {
	cells := make([]string, len(t.columns))
	for i, col := range t.columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		cells[i] = Cell(value, col.Width, col.Align)
	}
	return strings.TrimRight(strings.Join(cells, " "), " ")
}

// Cell fits value into width terminal cells, truncating with "…" and
// padding according to align. Styled values are never truncated, only padded.
func Cell(value string, width int, align Alignment) string {
	if width <= 0 {
		return value
	}
	visible := lipgloss.Width(value)
	if visible > width && visible == runewidth.StringWidth(value) {
		value = runewidth.Truncate(value, width, "…")
		visible = runewidth.StringWidth(value)
	}
	if visible >= width {
		return value
	}
	pad := strings.Repeat(" ", width-visible)
	if align == AlignRight {
		return pad + value
	}
	return value + pad
}
