package ui

import (
	"github.com/charmbracelet/bubbles/key"

	"tabsense/internal/nav"
)

type KeyMap struct {
	Up          key.Binding
	Down        key.Binding
	PageDown    key.Binding
	PageUp      key.Binding
	HalfDown    key.Binding
	HalfUp      key.Binding
	Top         key.Binding
	Bottom      key.Binding
	Left        key.Binding
	Right       key.Binding
	Search      key.Binding
	SearchNext  key.Binding
	SearchPrev  key.Binding
	Filter      key.Binding
	ClearFilter key.Binding
	CopyRow     key.Binding
	Columns     key.Binding
	Help        key.Binding
	Quit        key.Binding

	// input modes
	Apply   key.Binding
	Cancel  key.Binding
	Suggest key.Binding

	// column picker
	Toggle      key.Binding
	MoveColUp   key.Binding
	MoveColDown key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:          key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "previous row")),
		Down:        key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "next row")),
		PageDown:    key.NewBinding(key.WithKeys("f", "pgdown", "ctrl+f", " "), key.WithHelp("f/pgdn", "page down")),
		PageUp:      key.NewBinding(key.WithKeys("b", "pgup", "ctrl+b"), key.WithHelp("b/pgup", "page up")),
		HalfDown:    key.NewBinding(key.WithKeys("d", "ctrl+d"), key.WithHelp("d", "half page down")),
		HalfUp:      key.NewBinding(key.WithKeys("u", "ctrl+u"), key.WithHelp("u", "half page up")),
		Top:         key.NewBinding(key.WithKeys("g", "home"), key.WithHelp("g/home", "first row")),
		Bottom:      key.NewBinding(key.WithKeys("G", "end"), key.WithHelp("G/end", "last row")),
		Left:        key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "scroll left")),
		Right:       key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "scroll right")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		SearchNext:  key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next match")),
		SearchPrev:  key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "previous match")),
		Filter:      key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "edit filter")),
		ClearFilter: key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "clear filter")),
		CopyRow:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy row")),
		Columns:     key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "pick columns")),
		Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),

		Apply:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "apply")),
		Cancel:  key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel")),
		Suggest: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next value")),

		Toggle:      key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space", "show/hide column")),
		MoveColUp:   key.NewBinding(key.WithKeys("K", "shift+up"), key.WithHelp("K", "move column up")),
		MoveColDown: key.NewBinding(key.WithKeys("J", "shift+down"), key.WithHelp("J", "move column down")),
	}
}

type command struct {
	b    key.Binding
	kind nav.Kind
}

// browseCommands maps browse-mode bindings to navigation commands.
func (k KeyMap) browseCommands() []command {
	return []command{
		{k.Up, nav.Up},
		{k.Down, nav.Down},
		{k.PageDown, nav.PageDown},
		{k.PageUp, nav.PageUp},
		{k.HalfDown, nav.HalfDown},
		{k.HalfUp, nav.HalfUp},
		{k.Top, nav.First},
		{k.Bottom, nav.Last},
		{k.Left, nav.Left},
		{k.Right, nav.Right},
		{k.Search, nav.StartSearch},
		{k.SearchNext, nav.SearchNext},
		{k.SearchPrev, nav.SearchPrev},
		{k.Filter, nav.StartFilter},
		{k.ClearFilter, nav.ClearFilter},
		{k.Help, nav.ToggleHelp},
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Filter, k.Search, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageDown, k.PageUp, k.HalfDown, k.HalfUp},
		{k.Top, k.Bottom, k.Left, k.Right},
		{k.Search, k.SearchNext, k.SearchPrev, k.Filter, k.ClearFilter, k.Suggest},
		{k.CopyRow, k.Columns, k.Help, k.Quit},
	}
}
