// Package formatter renders search results as markdown.
package formatter

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// maxCellWidth caps the display width of a rendered cell.
const maxCellWidth = 60

// FormatTables realigns every markdown table in content so columns line up
// by display width. Text outside tables is left untouched.
func FormatTables(content string) string {
	lines := strings.Split(content, "\n")

	var (
		out    []string
		buffer []string
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|") {
			buffer = append(buffer, line)

			continue
		}

		if len(buffer) > 0 {
			out = append(out, alignTable(buffer)...)
			buffer = nil
		}

		out = append(out, line)
	}

	if len(buffer) > 0 {
		out = append(out, alignTable(buffer)...)
	}

	return strings.Join(out, "\n")
}

// RenderTable builds an aligned markdown table. Cells are escaped and
// truncated to a readable width.
func RenderTable(headers []string, rows [][]string) []string {
	table := make([][]string, 0, len(rows)+2)
	table = append(table, escapeRow(headers))
	table = append(table, make([]string, len(headers)))

	for _, row := range rows {
		table = append(table, escapeRow(row))
	}

	return renderAligned(table, 1)
}

func escapeRow(row []string) []string {
	out := make([]string, len(row))

	for i, cell := range row {
		cell = strings.Join(strings.Fields(cell), " ")
		cell = strings.ReplaceAll(cell, "|", `\|`)
		out[i] = runewidth.Truncate(cell, maxCellWidth, "…")
	}

	return out
}

// splitRow splits a table row on pipes that are not escaped with a backslash.
func splitRow(row string) []string {
	var (
		parts   []string
		cell    strings.Builder
		escaped bool
	)

	for _, r := range row {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			parts = append(parts, cell.String())
			cell.Reset()

			continue
		}

		cell.WriteRune(r)
	}

	parts = append(parts, cell.String())

	if len(parts) > 0 && strings.TrimSpace(parts[0]) == "" {
		parts = parts[1:]
	}

	if len(parts) > 0 && strings.TrimSpace(parts[len(parts)-1]) == "" {
		parts = parts[:len(parts)-1]
	}

	cells := make([]string, 0, len(parts))
	for _, p := range parts {
		cells = append(cells, strings.TrimSpace(p))
	}

	return cells
}

func isSeparator(cells []string) bool {
	for _, cell := range cells {
		if strings.Trim(cell, "-: ") != "" {
			return false
		}
	}

	return true
}

// alignTable needs a header and separator row; anything shorter is returned as is.
func alignTable(rows []string) []string {
	if len(rows) < 2 {
		return rows
	}

	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		table = append(table, splitRow(row))
	}

	sep := -1
	if isSeparator(table[1]) {
		sep = 1
	}

	return renderAligned(table, sep)
}

func renderAligned(table [][]string, sep int) []string {
	cols := 0
	for _, row := range table {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)

	for r, row := range table {
		if r == sep {
			continue
		}

		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for i := range widths {
		widths[i] = max(widths[i], 3)
	}

	out := make([]string, 0, len(table))

	for r, row := range table {
		var sb strings.Builder

		sb.WriteString("|")

		for j := 0; j < cols; j++ {
			sb.WriteString(" ")

			if r == sep {
				sb.WriteString(strings.Repeat("-", widths[j]))
			} else {
				cell := ""
				if j < len(row) {
					cell = row[j]
				}

				sb.WriteString(runewidth.FillRight(cell, widths[j]))
			}

			sb.WriteString(" |")
		}

		out = append(out, sb.String())
	}

	return out
}
