// Package session wires a source, its row index, the row resolver, the filter
// engine and the navigation state into one viewing session.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperr "tabsense/internal/errors"
	"tabsense/internal/filter"
	"tabsense/internal/index"
	"tabsense/internal/model"
	"tabsense/internal/nav"
	"tabsense/internal/rows"
	"tabsense/internal/source"
	"tabsense/internal/split"
	"tabsense/internal/util/logx"
)

const (
	sniffBytes   = 64 * 1024
	sniffTimeout = 2 * time.Second
)

type Options struct {
	Source source.Options
	// Dialect.Delimiter 0 means detect it from the path or the first bytes.
	Dialect  split.Dialect
	Header   bool
	Encoding rows.Encoding

	ChunkSize      int
	MaxRowBytes    int
	CacheRows      int
	MaxColumnWidth int

	// Select lists column names (or #N positions) to show, in order.
	Select []string
	// Where holds filter texts; all of them must match.
	Where []string
	// Pattern is a whole-row pattern given on the command line.
	Pattern string

	VisibleRows int
}

type Session struct {
	opt    Options
	src    source.Source
	ix     *index.Indexer
	res    *rows.Resolver
	eng    *filter.Engine
	cancel context.CancelFunc

	state nav.State
	snap  model.Snapshot

	// pending holds a filter set until the header it binds to is known
	pending    filter.Set
	hasPending bool
	warning    string
}

// Open parses the filters, opens the source and starts indexing. Filter
// syntax errors are reported before the source is touched.
func Open(ctx context.Context, opt Options) (*Session, error) {
	set, err := filter.ParseAll(opt.Where...)
	if err != nil {
		return nil, err
	}
	if opt.Pattern != "" {
		p, err := filter.RowPattern(opt.Pattern)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}

	ctx, cancel := context.WithCancel(ctx)
	src, err := source.Open(ctx, opt.Source)
	if err != nil {
		cancel()
		return nil, err
	}
	if opt.Dialect.Delimiter == 0 {
		opt.Dialect.Delimiter = detectDelimiter(ctx, src, opt.Source.Path, opt.Dialect.Quote)
	}
	logx.Infof("session: %s delimiter=%q quote=%q header=%v encoding=%s", src.Name(), opt.Dialect.Delimiter, opt.Dialect.Quote, opt.Header, opt.Encoding.Name)

	ix := index.New(src, index.Options{
		Dialect:     opt.Dialect,
		Header:      opt.Header,
		ChunkSize:   opt.ChunkSize,
		MaxRowBytes: opt.MaxRowBytes,
	})
	res := rows.New(src, ix, rows.Options{
		Dialect:        opt.Dialect,
		Encoding:       opt.Encoding,
		CacheRows:      opt.CacheRows,
		MaxColumnWidth: opt.MaxColumnWidth,
	})
	s := &Session{
		opt:    opt,
		src:    src,
		ix:     ix,
		res:    res,
		eng:    filter.NewEngine(res, string(opt.Dialect.Delimiter)),
		cancel: cancel,
		state:  nav.Initial(opt.VisibleRows),
	}
	if len(set) > 0 {
		s.pending, s.hasPending = set, true
	}
	ix.Start(ctx)
	return s, nil
}

// detectDelimiter trusts the file extension, then sniffs the first bytes.
func detectDelimiter(ctx context.Context, src source.Source, path string, quote rune) rune {
	if d := split.DelimiterForPath(path); d != 0 {
		return d
	}
	ctx, cancel := context.WithTimeout(ctx, sniffTimeout)
	defer cancel()
	for {
		n, final := src.Available()
		if n >= sniffBytes || final || ctx.Err() != nil {
			buf := make([]byte, min(n, sniffBytes))
			got, _ := src.ReadAt(buf, 0)
			d := split.Sniff(buf[:got], quote)
			logx.Debugf("session: sniffed delimiter %q from %d bytes", d, got)
			return d
		}
		if err := src.Wait(ctx, n); err != nil {
			continue
		}
	}
}

// Close stops indexing and releases the source.
func (s *Session) Close() error {
	s.cancel()
	<-s.ix.Done()
	return s.src.Close()
}

func (s *Session) Name() string { return s.src.Name() }

func (s *Session) Dialect() split.Dialect { return s.opt.Dialect }

func (s *Session) State() nav.State { return s.state }

func (s *Session) Snapshot() model.Snapshot { return s.snap }

// Indexer exposes progress to callers that wait for it.
func (s *Session) Indexer() *index.Indexer { return s.ix }

// Tick folds in whatever the indexer published since the last call: it binds
// a waiting filter, extends the MatchIndex and reclamps the view.
func (s *Session) Tick() model.Snapshot {
	s.snap = s.ix.Snapshot()
	s.bindPending()
	if err := s.eng.Extend(s.snap.Rows); err != nil {
		s.state.Status = err.Error()
	}
	s.state = nav.Apply(s.state, nav.Command{Kind: nav.Refresh}, env{s})
	if err := s.ix.Err(); err != nil && s.state.Status == "" {
		s.state.Status = err.Error()
	}
	return s.snap
}

// Do applies a navigation command and returns the new state.
func (s *Session) Do(c nav.Command) nav.State {
	s.state = nav.Apply(s.state, c, env{s})
	return s.state
}

// headerReady reports whether column names are final.
func (s *Session) headerReady() bool {
	if !s.ix.HasHeader() {
		return true
	}
	_, ok := s.ix.Header()
	return ok || s.snap.Complete
}

func (s *Session) bindPending() {
	if !s.hasPending || !s.headerReady() {
		return
	}
	set := s.pending
	s.pending, s.hasPending = nil, false
	s.setFilters(set)
}

func (s *Session) setFilters(set filter.Set) string {
	unknown, err := s.eng.SetFilters(set, s.res.Header(), s.snap.Rows)
	s.warning = ""
	if len(unknown) > 0 {
		s.warning = "unknown column: " + strings.Join(unknown, ", ")
		logx.Warnf("session: %s", s.warning)
	}
	if err != nil {
		return err.Error()
	}
	if len(set) > 0 {
		logx.Infof("session: filter %q", set.String())
	}
	return s.warning
}

func (s *Session) filterActive() bool { return s.hasPending || s.eng.Active() }

func (s *Session) effectiveRows() int {
	if s.hasPending {
		return 0
	}
	if s.eng.Active() {
		return s.eng.Len()
	}
	return s.snap.Rows
}

// rowAt maps an effective position to a row number.
func (s *Session) rowAt(k int) (int, bool) {
	if s.filterActive() {
		return s.eng.At(k)
	}
	return k, k >= 0 && k < s.snap.Rows
}

func (s *Session) filterText() string {
	if s.hasPending {
		return s.pending.String()
	}
	return s.eng.Set().String()
}

// columns returns the displayed columns in display order.
func (s *Session) columns() []model.Column {
	all := s.res.Columns()
	if len(s.opt.Select) == 0 {
		return all
	}
	out := make([]model.Column, 0, len(s.opt.Select))
	for _, name := range s.opt.Select {
		if c, ok := lookupColumn(all, name); ok {
			out = append(out, c)
		}
	}
	return out
}

// AllColumns returns every column of the source in file order.
func (s *Session) AllColumns() []model.Column { return s.res.Columns() }

// Selected returns the names of the displayed columns in display order.
func (s *Session) Selected() []string {
	cols := s.columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// SetSelect replaces the displayed columns. Nil shows every column.
func (s *Session) SetSelect(names []string) {
	s.opt.Select = append([]string(nil), names...)
	logx.Infof("session: select %q", names)
	s.state = nav.Apply(s.state, nav.Command{Kind: nav.Refresh}, env{s})
}

// lookupColumn finds a column by name, or by 1-based position written as #N.
func lookupColumn(cols []model.Column, name string) (model.Column, bool) {
	if i, ok := model.ColumnIndex(cols, name); ok {
		return cols[i], true
	}
	if strings.HasPrefix(name, "#") {
		if n, err := strconv.Atoi(name[1:]); err == nil && n >= 1 && n <= len(cols) {
			return cols[n-1], true
		}
	}
	return model.Column{}, false
}

func (s *Session) find(pattern string, from int, forward bool) (int, bool) {
	step := 1
	if !forward {
		step = -1
	}
	for k := from; k >= 0 && k < s.effectiveRows(); k += step {
		i, ok := s.rowAt(k)
		if !ok {
			return 0, false
		}
		row, err := s.res.Peek(i)
		if err != nil {
			if !errors.Is(err, rows.ErrPending) {
				logx.Warnf("session: search stopped at row %d: %v", i, err)
			}
			return 0, false
		}
		for _, f := range row.Fields {
			if filter.Match(f, pattern) {
				return k, true
			}
		}
	}
	return 0, false
}

// env adapts the session to what the navigation state machine needs.
type env struct{ s *Session }

func (e env) EffectiveRows() int { return e.s.effectiveRows() }

func (e env) Columns() int { return len(e.s.columns()) }

func (e env) FilterText() string { return e.s.filterText() }

func (e env) ApplyFilter(text string) (string, error) {
	set, err := filter.ParseSet(text)
	if err != nil {
		return "", err
	}
	if !e.s.headerReady() {
		e.s.pending, e.s.hasPending = set, len(set) > 0
		if !e.s.hasPending {
			e.s.eng.SetFilters(nil, nil, 0)
		}
		return "filter waits for the header row", nil
	}
	e.s.pending, e.s.hasPending = nil, false
	return e.s.setFilters(set), nil
}

func (e env) ClearFilter() {
	e.s.pending, e.s.hasPending = nil, false
	e.s.setFilters(nil)
}

func (e env) Find(pattern string, from int, forward bool) (int, bool) {
	return e.s.find(pattern, from, forward)
}

// readErr wraps resolve failures that are not just "not indexed yet".
func readErr(i int, err error) string {
	if apperr.Is(err, apperr.ErrSourceRead) {
		return err.Error()
	}
	return fmt.Sprintf("row %d: %v", i+1, err)
}
