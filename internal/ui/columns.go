package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tabsense/internal/model"
)

// columnPicker edits which columns are shown and their order. Shown columns
// come first in display order, hidden ones follow in file order.
type columnPicker struct {
	items  []pickItem
	cursor int
	// order is the file order, used to tell a full selection from a reordering.
	order []string
}

type pickItem struct {
	name string
	on   bool
}

func newColumnPicker(all []model.Column, shown []string) *columnPicker {
	p := &columnPicker{}
	on := make(map[string]bool, len(shown))
	for _, name := range shown {
		on[name] = true
		p.items = append(p.items, pickItem{name: name, on: true})
	}
	for _, c := range all {
		p.order = append(p.order, c.Name)
		if !on[c.Name] {
			p.items = append(p.items, pickItem{name: c.Name})
		}
	}
	return p
}

func (p *columnPicker) move(d int) {
	p.cursor = clamp(p.cursor+d, 0, len(p.items)-1)
}

func (p *columnPicker) toggle() {
	if len(p.items) > 0 {
		p.items[p.cursor].on = !p.items[p.cursor].on
	}
}

// shift swaps the item under the cursor with its neighbour; the cursor follows.
func (p *columnPicker) shift(d int) {
	j := p.cursor + d
	if j < 0 || j >= len(p.items) {
		return
	}
	p.items[p.cursor], p.items[j] = p.items[j], p.items[p.cursor]
	p.cursor = j
}

// selection returns the shown names in order, or nil when every column is
// shown in file order.
func (p *columnPicker) selection() []string {
	var names []string
	for _, it := range p.items {
		if it.on {
			names = append(names, it.name)
		}
	}
	if len(names) == len(p.order) && strings.Join(names, "\x00") == strings.Join(p.order, "\x00") {
		return nil
	}
	return names
}

func (p *columnPicker) empty() bool {
	for _, it := range p.items {
		if it.on {
			return false
		}
	}
	return true
}

func clamp(x, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(x, lo), hi)
}

func (m *Model) openPicker() {
	all := m.sess.AllColumns()
	if len(all) == 0 {
		m.lastMsg = "no columns yet"
		return
	}
	m.picker = newColumnPicker(all, m.sess.Selected())
}

func (m *Model) handlePicker(msg tea.KeyMsg) {
	p, k := m.picker, m.keymap
	switch {
	case key.Matches(msg, k.Cancel, k.Columns):
		m.picker = nil
	case key.Matches(msg, k.Apply):
		if p.empty() {
			m.lastMsg = "select at least one column"
			return
		}
		m.sess.SetSelect(p.selection())
		m.picker = nil
		m.lastMsg = ""
	case key.Matches(msg, k.Toggle):
		p.toggle()
	case key.Matches(msg, k.MoveColUp):
		p.shift(-1)
	case key.Matches(msg, k.MoveColDown):
		p.shift(1)
	case key.Matches(msg, k.Up):
		p.move(-1)
	case key.Matches(msg, k.Down):
		p.move(1)
	}
}

func (m *Model) renderPicker() string {
	width, height := m.size()
	p := m.picker
	// keep the cursor inside a window that fits the screen
	rows := max(height-10, 3)
	start := clamp(p.cursor-rows/2, 0, max(len(p.items)-rows, 0))
	end := min(start+rows, len(p.items))

	var b strings.Builder
	for i := start; i < end; i++ {
		it := p.items[i]
		mark := "[ ]"
		if it.on {
			mark = "[x]"
		}
		line := fmt.Sprintf("%s %s", mark, it.name)
		if i == p.cursor {
			line = m.styles.Table.Selected.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + m.styles.Help.Render("[space]=show/hide [K/J]=move [enter]=apply [esc]=cancel"))

	boxW := min(max(width-6, 20), 60)
	title := m.styles.PopupTitle.Render("Columns")
	box := m.styles.PopupBox.Width(boxW).Render(title + "\n" + b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
