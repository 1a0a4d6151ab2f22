package ui

import (
	"github.com/mattn/go-runewidth"

	"tabsense/internal/export"
	"tabsense/internal/model"
)

const (
	colSep       = "  "
	minCellWidth = 4
	// marker cell plus one space
	gutterWidth = 2
)

// fitColumns returns widths for the leading columns that fit in width. The
// last one is narrowed to the remaining space when at least minCellWidth
// cells are left.
func fitColumns(cols []model.Column, width int) []int {
	var out []int
	used := 0
	for i, c := range cols {
		w := max(c.Width, runewidth.StringWidth(c.Name), 1)
		if i > 0 {
			used += len(colSep)
		}
		rest := width - used
		if rest < min(w, minCellWidth) {
			break
		}
		w = min(w, rest)
		out = append(out, w)
		used += w
	}
	if len(out) == 0 && len(cols) > 0 {
		out = []int{max(width, 1)}
	}
	return out
}

// cell renders s on one line in exactly w display cells.
func cell(s string, w int) string {
	s = export.Sanitize(s)
	if runewidth.StringWidth(s) > w {
		s = runewidth.Truncate(s, w, "…")
	}
	return runewidth.FillRight(s, w)
}
