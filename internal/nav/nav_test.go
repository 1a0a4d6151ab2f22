package nav

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEnv holds a list of row texts; a filter keeps the rows containing it.
type fakeEnv struct {
	all    []string
	filter string
	cols   int
}

func (e *fakeEnv) visible() []string {
	if e.filter == "" {
		return e.all
	}
	var out []string
	for _, r := range e.all {
		if strings.Contains(r, e.filter) {
			out = append(out, r)
		}
	}
	return out
}

func (e *fakeEnv) EffectiveRows() int { return len(e.visible()) }
func (e *fakeEnv) Columns() int       { return e.cols }
func (e *fakeEnv) FilterText() string { return e.filter }
func (e *fakeEnv) ClearFilter()       { e.filter = "" }

func (e *fakeEnv) ApplyFilter(text string) (string, error) {
	if strings.HasPrefix(text, "=") {
		return "", errors.New("missing column")
	}
	e.filter = text
	return "", nil
}

func (e *fakeEnv) Find(pattern string, from int, forward bool) (int, bool) {
	rows := e.visible()
	step := 1
	if !forward {
		step = -1
	}
	for i := from; i >= 0 && i < len(rows); i += step {
		if strings.Contains(rows[i], pattern) {
			return i, true
		}
	}
	return 0, false
}

func numbered(n int) *fakeEnv {
	e := &fakeEnv{cols: 3}
	for i := 0; i < n; i++ {
		r := "odd"
		if i%2 == 0 {
			r = "even"
		}
		e.all = append(e.all, r)
	}
	return e
}

func run(s State, env Env, kinds ...Kind) State {
	for _, k := range kinds {
		s = Apply(s, Command{Kind: k}, env)
	}
	return s
}

func assertInvariant(t *testing.T, s State, n int) {
	t.Helper()
	v := s.View
	if n == 0 {
		assert.Zero(t, v.Cursor)
		assert.Zero(t, v.Top)
		return
	}
	assert.GreaterOrEqual(t, v.Cursor, 0)
	assert.Less(t, v.Cursor, n)
	assert.LessOrEqual(t, v.Top, v.Cursor)
	assert.LessOrEqual(t, v.Cursor, v.Top+v.Rows-1)
}

func TestMovement(t *testing.T) {
	env := numbered(100)
	s := Initial(10)

	s = run(s, env, Down, Down)
	assert.Equal(t, 2, s.View.Cursor)
	assert.Equal(t, 0, s.View.Top)

	s = run(s, env, PageDown)
	assert.Equal(t, Viewport{Top: 10, Cursor: 12, Rows: 10}, s.View)

	s = run(s, env, HalfDown)
	assert.Equal(t, 15, s.View.Top)
	assert.Equal(t, 17, s.View.Cursor)

	s = run(s, env, HalfUp, PageUp)
	assert.Equal(t, Viewport{Top: 0, Cursor: 2, Rows: 10}, s.View)

	s = run(s, env, Last)
	assert.Equal(t, 99, s.View.Cursor)
	assert.Equal(t, 90, s.View.Top)

	s = run(s, env, PageDown, Down)
	assert.Equal(t, 99, s.View.Cursor)

	s = run(s, env, First, Up)
	assert.Equal(t, Viewport{Rows: 10}, s.View)
	assertInvariant(t, s, 100)
}

func TestPageUpKeepsCursorInWindow(t *testing.T) {
	env := numbered(100)
	s := Initial(10)
	s = run(s, env, PageDown, PageDown, Down)
	require.Equal(t, 21, s.View.Cursor)
	s = run(s, env, PageUp, PageUp, PageUp)
	assert.Equal(t, 0, s.View.Top)
	assert.Equal(t, 0, s.View.Cursor)
}

func TestLastFollowsGrowth(t *testing.T) {
	env := numbered(5)
	s := run(Initial(3), env, Last)
	assert.Equal(t, 4, s.View.Cursor)

	env.all = append(env.all, "even", "odd", "even")
	s = run(s, env, Refresh)
	assert.Equal(t, 4, s.View.Cursor, "refresh keeps the cursor")
	s = run(s, env, Last)
	assert.Equal(t, 7, s.View.Cursor)
	assertInvariant(t, s, 8)
}

func TestHorizontalScroll(t *testing.T) {
	env := numbered(3)
	s := run(Initial(5), env, Right, Right, Right, Right)
	assert.Equal(t, 2, s.View.ColStart)
	assert.Equal(t, 2, s.View.CursorCol)
	s = run(s, env, Left, Left, Left)
	assert.Zero(t, s.View.ColStart)
}

func TestClampAfterShrinkingFilter(t *testing.T) {
	env := numbered(50)
	env.all[3] = "needle"
	env.all[7] = "needle"
	s := run(Initial(10), env, Last)
	require.Equal(t, 49, s.View.Cursor)

	env.filter = "needle"
	s = run(s, env, Refresh)
	assert.Equal(t, 1, s.View.Cursor)
	assertInvariant(t, s, 2)

	env.filter = "absent"
	s = run(s, env, Refresh)
	assert.Equal(t, Viewport{Rows: 10}, s.View)
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		in   Viewport
		n    int
		want Viewport
	}{
		{"empty", Viewport{Top: 4, Cursor: 9, Rows: 5}, 0, Viewport{Rows: 5}},
		{"cursor past end", Viewport{Top: 8, Cursor: 12, Rows: 5}, 10, Viewport{Top: 5, Cursor: 9, Rows: 5}},
		{"cursor above top", Viewport{Top: 6, Cursor: 2, Rows: 5}, 10, Viewport{Top: 2, Cursor: 2, Rows: 5}},
		{"cursor below window", Viewport{Top: 0, Cursor: 7, Rows: 5}, 10, Viewport{Top: 3, Cursor: 7, Rows: 5}},
		{"fewer rows than window", Viewport{Top: 3, Cursor: 3, Rows: 10}, 4, Viewport{Top: 0, Cursor: 3, Rows: 10}},
		{"zero height", Viewport{Cursor: 3}, 10, Viewport{Top: 3, Cursor: 3, Rows: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.in, tt.n, 0))
		})
	}
}

func TestFilterEditFlow(t *testing.T) {
	env := numbered(20)
	s := run(Initial(5), env, Last)

	s = Apply(s, Command{Kind: StartFilter}, env)
	assert.Equal(t, FilterEdit, s.Mode)
	// movement keys are not movement while editing
	s = Apply(s, Command{Kind: Up}, env)
	assert.Equal(t, 19, s.View.Cursor)

	s = Apply(s, Command{Kind: Input, Text: "=bad"}, env)
	s = Apply(s, Command{Kind: Confirm}, env)
	assert.Equal(t, FilterEdit, s.Mode, "syntax error keeps the editor open")
	assert.Equal(t, "missing column", s.Status)
	assert.Equal(t, "", env.filter)

	s = Apply(s, Command{Kind: Input, Text: "odd"}, env)
	s = Apply(s, Command{Kind: Confirm}, env)
	assert.Equal(t, Browse, s.Mode)
	assert.Equal(t, 10, env.EffectiveRows())
	assert.Equal(t, 9, s.View.Cursor, "cursor moves to the last remaining row")
	assertInvariant(t, s, 10)

	s = Apply(s, Command{Kind: StartFilter}, env)
	assert.Equal(t, "odd", s.Input, "editor starts from the active filter")
	s = Apply(s, Command{Kind: Cancel}, env)
	assert.Equal(t, Browse, s.Mode)
	assert.Equal(t, "odd", env.filter)

	s = Apply(s, Command{Kind: ClearFilter}, env)
	assert.Equal(t, "", env.filter)
	assert.Equal(t, "filter cleared", s.Status)
}

func TestSearch(t *testing.T) {
	env := &fakeEnv{all: []string{"alpha", "beta", "gamma", "beta2", "delta"}}
	s := Initial(3)

	s = run(s, env, SearchNext)
	assert.Equal(t, "no search pattern", s.Status)

	s = Apply(s, Command{Kind: StartSearch}, env)
	s = Apply(s, Command{Kind: Input, Text: "beta"}, env)
	s = Apply(s, Command{Kind: Confirm}, env)
	assert.Equal(t, Browse, s.Mode)
	assert.Equal(t, "beta", s.Pattern)
	assert.Equal(t, 1, s.View.Cursor)

	s = run(s, env, SearchNext)
	assert.Equal(t, 3, s.View.Cursor)
	assertInvariant(t, s, 5)

	s = run(s, env, SearchNext)
	assert.Equal(t, 3, s.View.Cursor, "no wrap")
	assert.Equal(t, "not found: beta", s.Status)

	s = run(s, env, SearchPrev)
	assert.Equal(t, 1, s.View.Cursor)
	assert.Empty(t, s.Status)

	s = Apply(s, Command{Kind: StartSearch}, env)
	s = Apply(s, Command{Kind: Cancel}, env)
	assert.Equal(t, "beta", s.Pattern, "cancel keeps the previous pattern")
}

func TestFilterKeepsCursorInRange(t *testing.T) {
	env := numbered(20)
	s := run(Initial(5), env, Down, Down, Down)
	s = Apply(s, Command{Kind: StartFilter}, env)
	s = Apply(s, Command{Kind: Input, Text: "odd"}, env)
	s = Apply(s, Command{Kind: Confirm}, env)
	assert.Equal(t, 3, s.View.Cursor)
	assertInvariant(t, s, 10)
}

func TestRefreshKeepsStatus(t *testing.T) {
	env := &fakeEnv{all: []string{"alpha", "beta"}}
	s := Apply(Initial(3), Command{Kind: StartSearch}, env)
	s = Apply(s, Command{Kind: Input, Text: "zzz"}, env)
	s = Apply(s, Command{Kind: Confirm}, env)
	require.Equal(t, "not found: zzz", s.Status)

	s = run(s, env, Refresh)
	s = Apply(s, Command{Kind: Resize, N: 4}, env)
	assert.Equal(t, "not found: zzz", s.Status)

	s = run(s, env, Down)
	assert.Empty(t, s.Status)
}

func TestHelpIsModal(t *testing.T) {
	env := numbered(10)
	s := run(Initial(3), env, ToggleHelp)
	assert.Equal(t, Help, s.Mode)
	s = run(s, env, Down, StartSearch)
	assert.Equal(t, Help, s.Mode)
	assert.Zero(t, s.View.Cursor)
	s = run(s, env, ToggleHelp)
	assert.Equal(t, Browse, s.Mode)
}

func TestResize(t *testing.T) {
	env := numbered(100)
	s := run(Initial(20), env, Last)
	s = Apply(s, Command{Kind: Resize, N: 5}, env)
	assert.Equal(t, 5, s.View.Rows)
	assertInvariant(t, s, 100)
	assert.Equal(t, 95, s.View.Top)
}
