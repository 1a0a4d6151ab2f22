// Package export prints the filtered table without the interactive viewer.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/sync/errgroup"

	"tabsense/internal/model"
)

type Format string

const (
	Table Format = "table"
	CSV   Format = "csv"
	JSON  Format = "json"
)

var Formats = []Format{Table, CSV, JSON}

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case Table, CSV, JSON:
		return f, nil
	case "ndjson":
		return JSON, nil
	case "":
		return Table, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, csv or json)", s)
}

// Stream yields matching rows in order, already projected onto Columns.
type Stream interface {
	Columns(ctx context.Context) ([]model.Column, error)
	Each(ctx context.Context, fn func(model.Row) error) error
}

type Options struct {
	Format Format
	// Delimiter separates csv output fields.
	Delimiter rune
	// NoHeader omits the column names line in table and csv output.
	NoHeader bool
	// Sample is how many rows the table format reads before fixing its
	// column widths.
	Sample int
}

const defaultSample = 1000

// Print writes rows as the stream produces them. One goroutine pulls rows
// from the stream while another encodes them.
func Print(ctx context.Context, w io.Writer, s Stream, opt Options) error {
	cols, err := s.Columns(ctx)
	if err != nil {
		return err
	}
	if opt.Sample <= 0 {
		opt.Sample = defaultSample
	}
	bw := bufio.NewWriter(w)
	enc, err := newEncoder(opt, bw, cols)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	rows := make(chan model.Row, 256)
	g.Go(func() error {
		defer close(rows)
		return s.Each(ctx, func(r model.Row) error {
			select {
			case rows <- r:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})
	g.Go(func() error {
		for r := range rows {
			if err := enc.write(r); err != nil {
				return err
			}
		}
		if err := enc.close(); err != nil {
			return err
		}
		return bw.Flush()
	})
	return g.Wait()
}

type encoder interface {
	write(model.Row) error
	close() error
}

func newEncoder(opt Options, w *bufio.Writer, cols []model.Column) (encoder, error) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	switch opt.Format {
	case CSV:
		cw := csv.NewWriter(w)
		if opt.Delimiter != 0 {
			cw.Comma = opt.Delimiter
		}
		e := &csvEncoder{w: cw}
		if !opt.NoHeader && len(names) > 0 {
			if err := cw.Write(names); err != nil {
				return nil, err
			}
		}
		return e, nil
	case JSON:
		return &jsonEncoder{w: w, names: names}, nil
	case Table, "":
		return &tableEncoder{w: w, names: names, header: !opt.NoHeader, sample: opt.Sample}, nil
	}
	return nil, fmt.Errorf("unknown format %q", opt.Format)
}

type csvEncoder struct{ w *csv.Writer }

func (e *csvEncoder) write(r model.Row) error { return e.w.Write(r.Fields) }

func (e *csvEncoder) close() error {
	e.w.Flush()
	return e.w.Error()
}

// jsonEncoder writes one object per line with keys in column order.
type jsonEncoder struct {
	w     *bufio.Writer
	names []string
}

func (e *jsonEncoder) write(r model.Row) error {
	var b strings.Builder
	b.WriteByte('{')
	if r.Flawed {
		raw, _ := json.Marshal(r.Field(0))
		fmt.Fprintf(&b, `"_row":%d,"_flawed":true,"_raw":%s`, r.Index+1, raw)
	} else {
		for i, v := range r.Fields {
			if i > 0 {
				b.WriteByte(',')
			}
			name := strconv.Itoa(i + 1)
			if i < len(e.names) {
				name = e.names[i]
			}
			k, _ := json.Marshal(name)
			val, _ := json.Marshal(v)
			b.Write(k)
			b.WriteByte(':')
			b.Write(val)
		}
	}
	b.WriteString("}\n")
	_, err := e.w.WriteString(b.String())
	return err
}

func (e *jsonEncoder) close() error { return nil }

// tableEncoder pads cells to the widest value seen in the first rows plus two
// spaces. Later, wider values are printed in full.
type tableEncoder struct {
	w      *bufio.Writer
	names  []string
	header bool
	sample int

	widths  []int
	pending []model.Row
	started bool
}

func (e *tableEncoder) write(r model.Row) error {
	if !e.started {
		e.pending = append(e.pending, r)
		if len(e.pending) < e.sample {
			return nil
		}
		return e.start()
	}
	return e.line(r)
}

func (e *tableEncoder) start() error {
	e.started = true
	e.widths = make([]int, len(e.names))
	for i, n := range e.names {
		e.widths[i] = runewidth.StringWidth(n)
	}
	for _, r := range e.pending {
		if r.Flawed {
			continue
		}
		for i, f := range r.Fields {
			if i >= len(e.widths) {
				e.widths = append(e.widths, 0)
			}
			e.widths[i] = max(e.widths[i], runewidth.StringWidth(Sanitize(f)))
		}
	}
	if e.header && len(e.names) > 0 {
		if err := e.cells(e.names); err != nil {
			return err
		}
	}
	for _, r := range e.pending {
		if err := e.line(r); err != nil {
			return err
		}
	}
	e.pending = nil
	return nil
}

func (e *tableEncoder) line(r model.Row) error {
	if r.Flawed {
		_, err := e.w.WriteString(Sanitize(r.Field(0)) + "\n")
		return err
	}
	return e.cells(r.Fields)
}

func (e *tableEncoder) cells(fields []string) error {
	var b strings.Builder
	for i, f := range fields {
		f = Sanitize(f)
		if i == len(fields)-1 {
			b.WriteString(f)
			break
		}
		w := 0
		if i < len(e.widths) {
			w = e.widths[i]
		}
		b.WriteString(runewidth.FillRight(f, w))
		b.WriteString("  ")
	}
	b.WriteByte('\n')
	_, err := e.w.WriteString(b.String())
	return err
}

func (e *tableEncoder) close() error {
	if !e.started {
		return e.start()
	}
	return nil
}

// Sanitize replaces line breaks and tabs so a value stays on one line.
func Sanitize(s string) string {
	if !strings.ContainsAny(s, "\r\n\t") {
		return s
	}
	return strings.NewReplacer("\r\n", "↵", "\n", "↵", "\r", "↵", "\t", " ").Replace(s)
}
