// Package rows turns indexed row extents into parsed rows and keeps the
// column metadata the viewer lays out with.
package rows

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/mattn/go-runewidth"

	apperr "tabsense/internal/errors"
	"tabsense/internal/model"
	"tabsense/internal/split"
)

// ErrPending means the row exists past the indexed prefix of the source.
var ErrPending = errors.New("row not yet indexed")

const (
	DefaultCacheRows      = 512
	DefaultMaxColumnWidth = 40

	// flawed rows are shown raw; only this much of one is read
	maxRawBytes = 64 * 1024
	// Distinct looks at no more than this many rows
	distinctScanRows = 200_000
)

// Index is the part of the row indexer the resolver reads.
type Index interface {
	Snapshot() model.Snapshot
	Extent(i int) (model.Extent, bool)
	Flawed(i int) bool
	Header() (model.Extent, bool)
	HasHeader() bool
}

type Options struct {
	Dialect  split.Dialect
	Encoding Encoding
	// CacheRows bounds the resolved rows kept in memory.
	CacheRows int
	// MaxColumnWidth caps display widths; 0 leaves them uncapped.
	MaxColumnWidth int
}

// Resolver is owned by the interactive loop and is not safe for concurrent use.
type Resolver struct {
	src   io.ReaderAt
	ix    Index
	opt   Options
	cache *rowCache

	cols       []model.Column
	headerDone bool
}

func New(src io.ReaderAt, ix Index, opt Options) *Resolver {
	if opt.CacheRows <= 0 {
		opt.CacheRows = DefaultCacheRows
	}
	if opt.MaxColumnWidth < 0 {
		opt.MaxColumnWidth = 0
	}
	if opt.Dialect.Delimiter == 0 {
		opt.Dialect = split.DefaultDialect
	}
	return &Resolver{src: src, ix: ix, opt: opt, cache: newRowCache(opt.CacheRows)}
}

// Resolve returns row i, caching it and widening columns to fit it.
func (r *Resolver) Resolve(i int) (model.Row, error) {
	if row, ok := r.cache.get(i); ok {
		return row, nil
	}
	row, err := r.load(i)
	if err != nil {
		return model.Row{}, err
	}
	r.cache.set(row)
	r.widen(row)
	return row, nil
}

// Peek returns row i without caching it or touching column widths, for scans
// over many rows that must not evict the visible window.
func (r *Resolver) Peek(i int) (model.Row, error) {
	if ent, ok := r.cache.items[i]; ok {
		return ent.Value.(model.Row), nil
	}
	return r.load(i)
}

// Prefetch resolves the n rows starting at first that are already indexed.
func (r *Resolver) Prefetch(first, n int) {
	for i := first; i < first+n; i++ {
		if i < 0 || r.cache.contains(i) {
			continue
		}
		if _, err := r.Resolve(i); err != nil {
			return
		}
	}
}

// Cached reports whether row i is in the cache.
func (r *Resolver) Cached(i int) bool { return r.cache.contains(i) }

func (r *Resolver) CacheLen() int { return r.cache.len() }

func (r *Resolver) load(i int) (model.Row, error) {
	e, ok := r.ix.Extent(i)
	if !ok {
		return model.Row{}, ErrPending
	}
	flawed := r.ix.Flawed(i)
	limit := e.Len()
	if flawed && limit > maxRawBytes {
		limit = maxRawBytes
	}
	raw, err := r.read(e.Start, limit)
	if err != nil {
		return model.Row{}, apperr.NewSourceReadError(fmt.Sprintf("row %d", i+1), err)
	}
	return r.parse(i, raw, flawed), nil
}

func (r *Resolver) read(off, n int64) ([]byte, error) {
	buf := make([]byte, n)
	got, err := r.src.ReadAt(buf, off)
	if int64(got) == n {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, err
}

func (r *Resolver) parse(i int, raw []byte, flawed bool) model.Row {
	text, ok := r.opt.Encoding.decode(raw)
	if ok && !flawed {
		fields, err := split.Split(text, r.opt.Dialect)
		if err == nil {
			return model.Row{Index: i, Fields: fields}
		}
	}
	return model.Row{Index: i, Fields: []string{string(split.TrimNewline(text))}, Flawed: true}
}

// Columns returns the known columns. The slice is a copy.
func (r *Resolver) Columns() []model.Column {
	r.loadHeader()
	out := make([]model.Column, len(r.cols))
	copy(out, r.cols)
	return out
}

// Header returns the column names, from the header row when there is one.
func (r *Resolver) Header() []string {
	r.loadHeader()
	names := make([]string, len(r.cols))
	for i, c := range r.cols {
		names[i] = c.Name
	}
	return names
}

func (r *Resolver) loadHeader() {
	if r.headerDone {
		return
	}
	if !r.ix.HasHeader() {
		r.headerDone = true
		return
	}
	e, ok := r.ix.Header()
	if !ok {
		// not scanned yet
		return
	}
	raw, err := r.read(e.Start, e.Len())
	if err != nil {
		return
	}
	r.headerDone = true
	text, _ := r.opt.Encoding.decode(raw)
	fields, _ := split.Split(text, r.opt.Dialect)
	names := uniqueNames(fields)
	existing := r.cols
	r.cols = make([]model.Column, 0, max(len(names), len(existing)))
	for pos, name := range names {
		r.cols = append(r.cols, model.Column{Name: name, Position: pos, Width: r.clamp(runewidth.StringWidth(name))})
	}
	// rows resolved before the header arrived still count
	for pos, c := range existing {
		if pos < len(r.cols) {
			r.cols[pos].Width = max(r.cols[pos].Width, c.Width)
		} else {
			r.cols = append(r.cols, c)
		}
	}
}

// uniqueNames suffixes repeated names with _2, _3, ... and names blank ones
// by position.
func uniqueNames(fields []string) []string {
	seen := make(map[string]int, len(fields))
	out := make([]string, len(fields))
	for i, f := range fields {
		name := f
		if name == "" {
			name = strconv.Itoa(i + 1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			base := name
			name = fmt.Sprintf("%s_%d", base, n)
			for seen[name] > 0 {
				n++
				name = fmt.Sprintf("%s_%d", base, n)
			}
			seen[name]++
		}
		out[i] = name
	}
	return out
}

func (r *Resolver) widen(row model.Row) {
	r.loadHeader()
	if row.Flawed {
		return
	}
	for pos, f := range row.Fields {
		if pos >= len(r.cols) {
			name := strconv.Itoa(pos + 1)
			r.cols = append(r.cols, model.Column{Name: name, Position: pos, Width: r.clamp(runewidth.StringWidth(name))})
		}
		if w := r.clamp(runewidth.StringWidth(f)); w > r.cols[pos].Width {
			r.cols[pos].Width = w
		}
	}
}

func (r *Resolver) clamp(w int) int {
	if r.opt.MaxColumnWidth > 0 && w > r.opt.MaxColumnWidth {
		return r.opt.MaxColumnWidth
	}
	return w
}

// Distinct returns up to limit sorted distinct values of column pos over the
// indexed rows. Flawed rows are skipped.
func (r *Resolver) Distinct(pos, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	n := min(r.ix.Snapshot().Rows, distinctScanRows)
	seen := make(map[string]struct{})
	for i := 0; i < n && len(seen) < limit; i++ {
		row, err := r.Peek(i)
		if err != nil {
			return nil, err
		}
		if row.Flawed || pos >= len(row.Fields) {
			continue
		}
		seen[row.Fields[pos]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out, nil
}
