package catalog

import (
	"encoding/csv"
	"io"
	"strings"
)

// RenderCSV writes raw result rows, header included, as CSV.
func RenderCSV(w io.Writer, rows [][]string) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	return writer.Error()
}

// RenderTable writes result rows as an aligned text table. The first
// row is treated as the header.
func RenderTable(w io.Writer, rows [][]string, title string) error {
	if len(rows) == 0 {
		_, err := io.WriteString(w, "No results found\n")
		return err
	}

	header := rows[0]
	widths := make([]int, len(header))
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}
	totalWidth := 1
	for _, width := range widths {
		totalWidth += width + 3
	}

	var b strings.Builder
	if title != "" {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", totalWidth))
		b.WriteString("\n")
		b.WriteString(centered(title, totalWidth))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("=", totalWidth))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(renderRow(header, widths))
	b.WriteString("\n")
	b.WriteString(strings.Repeat("-", totalWidth))
	b.WriteString("\n")
	for _, row := range rows[1:] {
		b.WriteString(renderRow(row, widths))
		b.WriteString("\n")
	}
	b.WriteString(strings.Repeat("=", totalWidth))
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}

func renderRow(row []string, widths []int) string {
	cells := make([]string, len(row))
	for i, cell := range row {
		width := 0
		if i < len(widths) {
			width = widths[i]
		}
		cells[i] = cell + strings.Repeat(" ", width-len(cell))
	}
	return strings.TrimRight(strings.Join(cells, " | "), " ")
}

func centered(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s
}
