// Package nav is the viewer's navigation state machine. Apply maps a state
// and a command to the next state; anything that touches data goes through
// Env.
package nav

import "fmt"

type Mode int

const (
	Browse Mode = iota
	FilterEdit
	Search
	Help
)

func (m Mode) String() string {
	switch m {
	case FilterEdit:
		return "filter"
	case Search:
		return "search"
	case Help:
		return "help"
	}
	return "browse"
}

// Viewport positions are in effective-row space: indexes into the filtered
// rows when a filter is active, else row numbers.
type Viewport struct {
	Top       int
	Cursor    int
	CursorCol int
	// Rows is the number of visible data rows.
	Rows     int
	ColStart int
}

type State struct {
	Mode Mode
	View Viewport
	// Input is the edit buffer of FilterEdit and Search.
	Input string
	// Pattern is the last confirmed search pattern.
	Pattern string
	Status  string
}

// Initial returns the Browse state for a window of rows visible rows.
func Initial(rows int) State {
	return State{View: Viewport{Rows: max(rows, 1)}}
}

type Kind int

const (
	Up Kind = iota
	Down
	PageDown
	PageUp
	HalfDown
	HalfUp
	First
	Last
	Left
	Right
	SearchNext
	SearchPrev
	// Resize sets the visible row count to N.
	Resize
	// Refresh reclamps after the row set changed underneath.
	Refresh
	ClearFilter
	StartFilter
	StartSearch
	ToggleHelp
	// Input replaces the edit buffer with Text.
	Input
	Confirm
	Cancel
)

type Command struct {
	Kind Kind
	N    int
	Text string
}

// Env is what the state machine may ask of the session.
type Env interface {
	// EffectiveRows is the filtered row count when a filter is active, else
	// the indexed row count.
	EffectiveRows() int
	Columns() int
	// ApplyFilter parses and activates text. On error the previous filter
	// stays active.
	ApplyFilter(text string) (status string, err error)
	ClearFilter()
	FilterText() string
	// Find searches effective rows from 'from' in the given direction and
	// returns the first one matching pattern.
	Find(pattern string, from int, forward bool) (int, bool)
}

// Apply returns the state after c. It never modifies s in place.
func Apply(s State, c Command, env Env) State {
	switch s.Mode {
	case FilterEdit, Search:
		s = applyInput(s, c, env)
	case Help:
		switch c.Kind {
		case ToggleHelp, Cancel, Confirm:
			s.Mode = Browse
		case Resize:
			s.View.Rows = c.N
		}
	default:
		s = applyBrowse(s, c, env)
	}
	s.View = Clamp(s.View, env.EffectiveRows(), env.Columns())
	return s
}

func applyInput(s State, c Command, env Env) State {
	switch c.Kind {
	case Input:
		s.Input = c.Text
	case Cancel:
		s.Mode, s.Input, s.Status = Browse, "", ""
	case Resize:
		s.View.Rows = c.N
	case Confirm:
		if s.Mode == FilterEdit {
			status, err := env.ApplyFilter(s.Input)
			if err != nil {
				s.Status = err.Error()
				return s
			}
			// Clamp pulls the cursor back when the new row set is shorter
			s.Mode, s.Input, s.Status = Browse, "", status
			return s
		}
		s.Mode, s.Pattern, s.Input = Browse, s.Input, ""
		s = find(s, env, s.View.Cursor, true)
	}
	return s
}

func applyBrowse(s State, c Command, env Env) State {
	v := &s.View
	n := env.EffectiveRows()
	// Refresh and Resize are not keystrokes and leave the last message up
	if c.Kind != Refresh && c.Kind != Resize {
		s.Status = ""
	}
	switch c.Kind {
	case Up:
		v.Cursor--
	case Down:
		v.Cursor++
	case PageDown:
		// at the last row there is nothing further to show
		if v.Cursor < n-1 {
			v.Top += v.Rows
			v.Cursor += v.Rows
		}
	case PageUp:
		v.Top -= v.Rows
		v.Cursor -= v.Rows
	case HalfDown:
		half := max(v.Rows/2, 1)
		v.Top += half
		v.Cursor += half
	case HalfUp:
		half := max(v.Rows/2, 1)
		v.Top -= half
		v.Cursor -= half
	case First:
		v.Top, v.Cursor = 0, 0
	case Last:
		v.Cursor = n - 1
	case Left:
		v.ColStart--
	case Right:
		v.ColStart++
	case Resize:
		v.Rows = c.N
	case Refresh:
	case SearchNext:
		s = find(s, env, v.Cursor+1, true)
	case SearchPrev:
		s = find(s, env, v.Cursor-1, false)
	case ClearFilter:
		if env.FilterText() != "" {
			env.ClearFilter()
			v.Top, v.Cursor = 0, 0
			s.Status = "filter cleared"
		}
	case StartFilter:
		s.Mode, s.Input = FilterEdit, env.FilterText()
	case StartSearch:
		s.Mode, s.Input = Search, ""
	case ToggleHelp:
		s.Mode = Help
	}
	return s
}

func find(s State, env Env, from int, forward bool) State {
	if s.Pattern == "" {
		s.Status = "no search pattern"
		return s
	}
	n := env.EffectiveRows()
	if from < 0 || from >= n {
		s.Status = fmt.Sprintf("not found: %s", s.Pattern)
		return s
	}
	at, ok := env.Find(s.Pattern, from, forward)
	if !ok {
		s.Status = fmt.Sprintf("not found: %s", s.Pattern)
		return s
	}
	s.View.Cursor = at
	return s
}

// Clamp restores the viewport invariant top <= cursor <= top+rows-1 within
// [0, n-1]. An empty row set puts both at 0.
func Clamp(v Viewport, n, cols int) Viewport {
	if v.Rows < 1 {
		v.Rows = 1
	}
	v.ColStart = clampInt(v.ColStart, 0, max(cols-1, 0))
	v.CursorCol = v.ColStart
	if n <= 0 {
		v.Top, v.Cursor = 0, 0
		return v
	}
	v.Cursor = clampInt(v.Cursor, 0, n-1)
	v.Top = clampInt(v.Top, 0, max(n-v.Rows, 0))
	if v.Cursor < v.Top {
		v.Top = v.Cursor
	}
	if v.Cursor > v.Top+v.Rows-1 {
		v.Top = v.Cursor - v.Rows + 1
	}
	return v
}

func clampInt(x, lo, hi int) int {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
