package session

import (
	"context"
	"errors"
	"strings"

	"tabsense/internal/filter"
	"tabsense/internal/model"
	"tabsense/internal/rows"
	"tabsense/internal/source"
	"tabsense/internal/util/logx"
)

// Columns waits for the header and the first row, then returns the displayed
// columns. It is meant for non-interactive output.
func (s *Session) Columns(ctx context.Context) ([]model.Column, error) {
	if _, err := s.ix.WaitRows(ctx, 1); err != nil {
		return nil, err
	}
	s.snap = s.ix.Snapshot()
	if s.snap.Rows > 0 {
		if _, err := s.res.Resolve(0); err != nil && !errors.Is(err, rows.ErrPending) {
			return nil, err
		}
	}
	cols := s.columns()
	if len(s.opt.Select) > len(cols) {
		all := s.res.Columns()
		for _, name := range s.opt.Select {
			if _, ok := lookupColumn(all, name); !ok {
				logx.Warnf("session: --select column %q not found", name)
			}
		}
	}
	return cols, nil
}

// Each calls fn for every matching row in order, projected onto the displayed
// columns, following the indexer until the scan completes or ctx is done.
func (s *Session) Each(ctx context.Context, fn func(model.Row) error) error {
	next := 0
	for {
		snap := s.Tick()
		cols := s.columns()
		for ; next < s.effectiveRows(); next++ {
			i, ok := s.rowAt(next)
			if !ok {
				break
			}
			row, err := s.res.Peek(i)
			if errors.Is(err, rows.ErrPending) {
				break
			}
			if err != nil {
				return err
			}
			if err := fn(s.project(row, cols)); err != nil {
				return err
			}
		}
		if snap.Complete && !s.hasPending {
			return s.ix.Err()
		}
		if _, err := s.ix.WaitChange(ctx, snap); err != nil {
			return err
		}
	}
}

func (s *Session) project(row model.Row, cols []model.Column) model.Row {
	if row.Flawed || len(s.opt.Select) == 0 {
		return row
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = row.Field(c.Position)
	}
	row.Fields = out
	return row
}

func (s *Session) currentSet() filter.Set {
	if s.hasPending {
		return s.pending
	}
	return s.eng.Set()
}

// CommandLine returns the non-interactive command that prints what the
// session currently shows.
func (s *Session) CommandLine() string {
	args := []string{"tabsense"}
	if len(s.opt.Select) > 0 {
		args = append(args, "--select="+shellQuote(strings.Join(s.opt.Select, ",")))
	}
	for _, p := range s.currentSet() {
		args = append(args, "--where="+shellQuote(p.String()))
	}
	if !s.opt.Header {
		args = append(args, "--no-header")
	}
	if path := s.opt.Source.Path; !source.IsStdin(path) {
		args = append(args, shellQuote(path))
	}
	return strings.Join(args, " ")
}

func shellQuote(s string) string {
	if s != "" && strings.Trim(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789_-./:,@%+") == "" {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
