package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"tabsense/internal/filter"
	"tabsense/internal/nav"
	"tabsense/internal/util/logx"
)

const maxSuggestions = 50

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termWidth, m.termHeight = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.sess.Do(nav.Command{Kind: nav.Resize, N: bodyRows(msg.Height)})
		return m, nil
	case tickMsg:
		snap := m.sess.Tick()
		var spin tea.Cmd
		if !snap.Complete && !m.spinning {
			m.spinning = true
			spin = m.spin.Tick
		}
		return m, tea.Batch(tick(), spin)
	case spinner.TickMsg:
		if m.sess.Snapshot().Complete {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.Type == tea.KeyCtrlC {
		return tea.Quit
	}
	switch m.sess.State().Mode {
	case nav.FilterEdit, nav.Search:
		return m.handleInput(msg)
	case nav.Help:
		if key.Matches(msg, m.keymap.Help, m.keymap.Cancel, m.keymap.Apply, m.keymap.Quit) {
			m.sess.Do(nav.Command{Kind: nav.Cancel})
		}
		return nil
	}

	if m.picker != nil {
		m.handlePicker(msg)
		return nil
	}
	switch {
	case key.Matches(msg, m.keymap.Quit):
		return tea.Quit
	case key.Matches(msg, m.keymap.CopyRow):
		m.copyRow()
		return nil
	case key.Matches(msg, m.keymap.Columns):
		m.lastMsg = ""
		m.openPicker()
		return nil
	}
	for _, c := range m.keymap.browseCommands() {
		if !key.Matches(msg, c.b) {
			continue
		}
		m.lastMsg = ""
		st := m.sess.Do(nav.Command{Kind: c.kind})
		if st.Mode == nav.FilterEdit || st.Mode == nav.Search {
			return m.startInput(st)
		}
		return nil
	}
	return nil
}

func (m *Model) startInput(st nav.State) tea.Cmd {
	m.input.Reset()
	if st.Mode == nav.FilterEdit {
		m.input.Prompt = "filter: "
		m.input.Placeholder = "column=value && other>3"
		m.suggestCol, m.suggestions = m.sess.Suggestions(maxSuggestions)
		m.suggestIdx = -1
	} else {
		m.input.Prompt = "/"
		m.input.Placeholder = "search"
	}
	m.input.SetValue(st.Input)
	m.input.CursorEnd()
	return m.input.Focus()
}

func (m *Model) handleInput(msg tea.KeyMsg) tea.Cmd {
	mode := m.sess.State().Mode
	switch {
	case key.Matches(msg, m.keymap.Cancel):
		m.sess.Do(nav.Command{Kind: nav.Cancel})
		m.lastMsg = ""
		m.endInput()
		return nil
	case key.Matches(msg, m.keymap.Apply):
		m.sess.Do(nav.Command{Kind: nav.Input, Text: m.input.Value()})
		st := m.sess.Do(nav.Command{Kind: nav.Confirm})
		if st.Mode == nav.Browse {
			if mode == nav.FilterEdit {
				logx.Infof("ui: filter set to %q", m.input.Value())
			}
			m.lastMsg = ""
			m.endInput()
		}
		return nil
	case mode == nav.FilterEdit && key.Matches(msg, m.keymap.Suggest):
		m.nextSuggestion()
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.suggestIdx = -1
	m.sess.Do(nav.Command{Kind: nav.Input, Text: m.input.Value()})
	return cmd
}

func (m *Model) endInput() {
	m.input.Blur()
	m.input.Reset()
	m.suggestions, m.suggestCol = nil, ""
}

// nextSuggestion appends `column=value` for the next distinct value of the
// column under the cursor, replacing the previous suggestion.
func (m *Model) nextSuggestion() {
	if len(m.suggestions) == 0 {
		if m.suggestCol != "" {
			m.lastMsg = fmt.Sprintf("no values for %s", m.suggestCol)
		}
		return
	}
	base := strings.TrimSpace(m.input.Value())
	if m.suggestIdx >= 0 {
		prev := m.suggestion(m.suggestIdx)
		base = strings.TrimSpace(strings.TrimSuffix(strings.TrimSuffix(base, prev), "&&"))
	}
	m.suggestIdx = (m.suggestIdx + 1) % len(m.suggestions)
	text := m.suggestion(m.suggestIdx)
	if base != "" {
		text = base + " && " + text
	}
	m.input.SetValue(text)
	m.input.CursorEnd()
	m.sess.Do(nav.Command{Kind: nav.Input, Text: text})
}

func (m *Model) suggestion(i int) string {
	return filter.Predicate{Column: m.suggestCol, Op: filter.Eq, Operand: m.suggestions[i]}.String()
}

func (m *Model) copyRow() {
	row, ok := m.sess.Current()
	if !ok {
		m.lastMsg = "nothing to copy"
		return
	}
	sep := m.sess.Dialect().Delimiter
	if sep == 0 {
		sep = ','
	}
	text := row.Text(string(sep))
	if err := clipboard.WriteAll(text); err != nil {
		logx.Debugf("ui: system clipboard unavailable, using OSC52: %v", err)
		copyToClipboard(text)
	}
	m.lastMsg = fmt.Sprintf("copied row %d", row.Index+1)
}
