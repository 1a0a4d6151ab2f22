package session

import (
	"errors"

	"tabsense/internal/model"
	"tabsense/internal/nav"
	"tabsense/internal/rows"
)

// Frame is everything the renderer needs for one screen.
type Frame struct {
	Mode  nav.Mode
	Input string
	// Columns are the displayed columns starting at the horizontal scroll
	// position.
	Columns []model.Column
	Rows    []FrameRow
	// Cursor indexes Rows; -1 when no row is visible.
	Cursor int
	Status Status
}

type FrameRow struct {
	// Index is the 0-based data row number.
	Index int
	// Cells line up with Frame.Columns.
	Cells []string
	// Raw is the row text of a flawed row, shown instead of cells.
	Raw     string
	Flawed  bool
	Pending bool
}

type Status struct {
	Source string
	// Position is the 1-based cursor position among the effective rows.
	Position int
	// Total is the number of indexed data rows.
	Total int
	// Filtered is the number of matching rows when Filtering.
	Filtered     int
	Filtering    bool
	Filter       string
	Complete     bool
	ScannedBytes int64
	FlawedRows   int
	Message      string
	Warning      string
}

// Frame resolves the visible rows. It resolves rows before reading column
// metadata so the widths already cover what is on screen.
func (s *Session) Frame() Frame {
	st := s.state
	v := st.View
	n := s.effectiveRows()
	f := Frame{Mode: st.Mode, Input: st.Input, Cursor: -1}

	var resolved []model.Row
	var states []FrameRow
	for k := v.Top; k < v.Top+v.Rows && k < n; k++ {
		if k == v.Cursor {
			f.Cursor = len(states)
		}
		i, ok := s.rowAt(k)
		fr := FrameRow{Index: i}
		if !ok {
			fr.Pending = true
			states = append(states, fr)
			resolved = append(resolved, model.Row{})
			continue
		}
		row, err := s.res.Resolve(i)
		switch {
		case errors.Is(err, rows.ErrPending):
			fr.Pending = true
		case err != nil:
			fr.Flawed = true
			fr.Raw = readErr(i, err)
		case row.Flawed:
			fr.Flawed = true
			fr.Raw = row.Field(0)
		}
		states = append(states, fr)
		resolved = append(resolved, row)
	}

	cols := s.columns()
	if v.ColStart < len(cols) {
		f.Columns = cols[v.ColStart:]
	}
	for j, fr := range states {
		if !fr.Pending && !fr.Flawed {
			fr.Cells = make([]string, len(f.Columns))
			for c, col := range f.Columns {
				fr.Cells[c] = resolved[j].Field(col.Position)
			}
		}
		f.Rows = append(f.Rows, fr)
	}

	f.Status = Status{
		Source:       s.src.Name(),
		Total:        s.snap.Rows,
		Filtering:    s.filterActive(),
		Filter:       s.filterText(),
		Complete:     s.snap.Complete,
		ScannedBytes: s.snap.ScannedBytes,
		FlawedRows:   s.snap.FlawedRows,
		Message:      st.Status,
		Warning:      s.warning,
	}
	if f.Status.Filtering {
		f.Status.Filtered = n
	}
	if n > 0 {
		f.Status.Position = v.Cursor + 1
	}
	return f
}

// Current returns the row under the cursor.
func (s *Session) Current() (model.Row, bool) {
	i, ok := s.rowAt(s.state.View.Cursor)
	if !ok {
		return model.Row{}, false
	}
	row, err := s.res.Resolve(i)
	return row, err == nil
}

// Suggestions lists distinct values of the first displayed column, for the
// filter editor.
func (s *Session) Suggestions(limit int) (string, []string) {
	cols := s.columns()
	c := s.state.View.ColStart
	if c >= len(cols) {
		return "", nil
	}
	vals, err := s.res.Distinct(cols[c].Position, limit)
	if err != nil {
		return cols[c].Name, nil
	}
	return cols[c].Name, vals
}
