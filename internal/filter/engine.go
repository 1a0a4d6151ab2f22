package filter

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2"

	"tabsense/internal/model"
	"tabsense/internal/rows"
)

// RowSource resolves rows for evaluation without disturbing a view cache.
type RowSource interface {
	Peek(i int) (model.Row, error)
}

// Engine keeps the MatchIndex of the active Set: the ordered row numbers that
// satisfy it. The index only grows until the Set changes.
type Engine struct {
	rows RowSource
	sep  string

	set     Set
	matcher *Matcher
	matches *roaring.Bitmap
	// tested is the first row not yet evaluated
	tested int
}

// NewEngine returns an engine with no active filter. sep joins fields for
// whole-row patterns.
func NewEngine(src RowSource, sep string) *Engine {
	return &Engine{rows: src, sep: sep, matcher: NewMatcher(nil, nil, sep), matches: roaring.New()}
}

// SetFilters replaces the active Set, binds it to columns and rebuilds the
// MatchIndex over rows [0, upTo). It returns the names of unknown columns.
func (e *Engine) SetFilters(set Set, columns []string, upTo int) ([]string, error) {
	e.set = set
	e.matcher = NewMatcher(set, columns, e.sep)
	e.matches = roaring.New()
	e.tested = 0
	return e.matcher.Unknown(), e.Extend(upTo)
}

// Extend evaluates rows [tested, upTo) and appends the matches. Rows that are
// not indexed yet stop the extension; they are picked up by a later call.
func (e *Engine) Extend(upTo int) error {
	if len(e.set) == 0 {
		if upTo > e.tested {
			e.tested = upTo
		}
		return nil
	}
	for e.tested < upTo {
		row, err := e.rows.Peek(e.tested)
		if errors.Is(err, rows.ErrPending) {
			return nil
		}
		if err != nil {
			return err
		}
		if e.matcher.Match(row) {
			e.matches.Add(uint32(e.tested))
		}
		e.tested++
	}
	return nil
}

// Active reports whether any predicate is set.
func (e *Engine) Active() bool { return len(e.set) > 0 }

func (e *Engine) Set() Set { return e.set }

func (e *Engine) Unknown() []string { return e.matcher.Unknown() }

// Tested is the number of rows evaluated so far.
func (e *Engine) Tested() int { return e.tested }

// Len is the number of matching rows found so far.
func (e *Engine) Len() int { return int(e.matches.GetCardinality()) }

// At returns the row number of the k-th match.
func (e *Engine) At(k int) (int, bool) {
	if k < 0 || k >= e.Len() {
		return 0, false
	}
	v, err := e.matches.Select(uint32(k))
	if err != nil {
		return 0, false
	}
	return int(v), true
}

// IndexOf returns the match position of row, if it matches.
func (e *Engine) IndexOf(row int) (int, bool) {
	if row < 0 || !e.matches.Contains(uint32(row)) {
		return 0, false
	}
	return int(e.matches.Rank(uint32(row))) - 1, true
}

// Rank counts the matches at or before row.
func (e *Engine) Rank(row int) int {
	if row < 0 {
		return 0
	}
	return int(e.matches.Rank(uint32(row)))
}

// Match evaluates row against the active Set.
func (e *Engine) Match(row model.Row) bool { return e.matcher.Match(row) }
