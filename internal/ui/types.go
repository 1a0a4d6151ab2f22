package ui

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"tabsense/internal/config"
	"tabsense/internal/session"
)

type tickMsg struct{}

type Model struct {
	ctx  context.Context
	cfg  *config.Config
	sess *session.Session

	// UI
	help       help.Model
	styles     Styles
	input      textinput.Model
	spin       spinner.Model
	keymap     KeyMap
	termWidth  int
	termHeight int

	// spinning is true while the spinner tick chain is running
	spinning bool

	// lastMsg is a UI-side notice (clipboard) shown when the session has
	// no status of its own.
	lastMsg string

	// Filter suggestions for the column under the cursor
	suggestCol  string
	suggestions []string
	suggestIdx  int

	// picker is open while columns are being chosen
	picker *columnPicker
}

// Visible data rows for a terminal of height h: header, input line and
// status bar take one line each.
func bodyRows(h int) int {
	return max(h-3, 1)
}
