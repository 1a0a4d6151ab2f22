package ui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"tabsense/internal/export"
	"tabsense/internal/nav"
	"tabsense/internal/session"
)

func (m *Model) View() string {
	f := m.sess.Frame()
	v := lipgloss.JoinVertical(lipgloss.Left, m.renderTable(f), m.renderInput(f), m.renderStatus(f))
	if f.Mode == nav.Help {
		// dim the table but keep it visible
		dimmed := lipgloss.NewStyle().Faint(true).Render(v)
		v = overlay(dimmed, m.renderHelp())
	} else if m.picker != nil {
		dimmed := lipgloss.NewStyle().Faint(true).Render(v)
		v = overlay(dimmed, m.renderPicker())
	}
	return v
}

// width and height before the first WindowSizeMsg
func (m *Model) size() (int, int) {
	w, h := m.termWidth, m.termHeight
	if w <= 0 {
		w = 80
	}
	if h <= 0 {
		h = 24
	}
	return w, h
}

func (m *Model) renderTable(f session.Frame) string {
	width, height := m.size()
	widths := fitColumns(f.Columns, width-gutterWidth)
	ts := m.styles.Table

	lines := make([]string, 0, bodyRows(height)+1)
	head := make([]string, len(widths))
	for i, w := range widths {
		head[i] = cell(f.Columns[i].Name, w)
	}
	lines = append(lines, ts.Header.Render(strings.Repeat(" ", gutterWidth)+strings.Join(head, colSep)))

	avail := width - gutterWidth
	for j, r := range f.Rows {
		marker, text := " ", ""
		style := ts.Cell
		switch {
		case r.Pending:
			marker, style = "…", m.styles.Pending
		case r.Flawed:
			marker, text, style = "!", cell(r.Raw, avail), ts.Flawed
		default:
			cells := make([]string, len(widths))
			for i, w := range widths {
				cells[i] = cell(r.Cells[i], w)
			}
			text = strings.Join(cells, colSep)
		}
		line := marker + " " + text
		if j == f.Cursor {
			lines = append(lines, ts.Selected.Render(runewidth.FillRight(line, width)))
			continue
		}
		if r.Flawed {
			line = m.styles.Marker.Render(marker) + " " + style.Render(text)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}
	// keep the input line and status bar at the bottom
	for len(lines) < bodyRows(height)+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderInput(f session.Frame) string {
	width, _ := m.size()
	var line string
	switch f.Mode {
	case nav.FilterEdit:
		line = m.input.View()
		if m.suggestCol != "" && len(m.suggestions) > 0 {
			line += m.styles.Help.Render(fmt.Sprintf("    [tab]=%s values (%d)", m.suggestCol, len(m.suggestions)))
		}
	case nav.Search:
		line = m.input.View() + m.styles.Help.Render("    [enter]=find [esc]=cancel")
	default:
		if f.Status.Filtering {
			line = fmt.Sprintf("filter: %s", export.Sanitize(f.Status.Filter)) + m.styles.Help.Render("    [w]=edit [F]=clear")
		} else {
			line = m.help.ShortHelpView(m.keymap.ShortHelp())
		}
	}
	return truncateStyled(line, width)
}

func (m *Model) renderStatus(f session.Frame) string {
	width, _ := m.size()
	st := f.Status

	rowsLabel := humanize.Comma(int64(st.Total))
	if st.Filtering {
		rowsLabel = fmt.Sprintf("%s of %s", humanize.Comma(int64(st.Filtered)), humanize.Comma(int64(st.Total)))
	}
	if !st.Complete {
		rowsLabel += "+"
	}
	left := fmt.Sprintf("%s  row %d/%s", filepath.Base(st.Source), st.Position, rowsLabel)
	if len(f.Columns) > 0 {
		left += fmt.Sprintf("  col %s", f.Columns[0].Name)
	}

	// a UI notice is newer than anything the session still shows
	msg := m.lastMsg
	if msg == "" {
		msg = st.Message
	}
	switch {
	case msg != "" && f.Mode == nav.FilterEdit:
		left += "  " + m.styles.Error.Render(msg)
	case msg != "":
		left += "  " + msg
	case st.Warning != "":
		left += "  " + m.styles.Warning.Render(st.Warning)
	}

	var right string
	if st.Complete {
		right = humanize.Bytes(uint64(st.ScannedBytes))
	} else {
		right = m.spin.View() + " " + humanize.Bytes(uint64(st.ScannedBytes)) + " scanned"
	}
	if st.FlawedRows > 0 {
		right = m.styles.Marker.Render(fmt.Sprintf("%d flawed", st.FlawedRows)) + "  " + right
	}
	return m.styles.Status.Render(placeTwo(left, right, width))
}

func (m *Model) renderHelp() string {
	width, height := m.size()
	body := m.help.FullHelpView(m.keymap.FullHelp()) + "\n\n" +
		m.styles.Help.Render(strings.Join([]string{
			"filters: col=v col!=v col<v col>v col<=v col>=v col~glob",
			"join terms with &&; #N names a column by position; a bare word matches the whole row",
			"[esc]=close",
		}, "\n"))
	boxW := min(max(width-6, 20), 100)
	title := m.styles.PopupTitle.Render("Keys")
	box := m.styles.PopupBox.Width(boxW).Render(title + "\n" + body)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
