package index

import "tabsense/internal/model"

type fieldState uint8

const (
	atFieldStart fieldState = iota
	inUnquoted
	inQuoted
	afterQuote // saw a quote inside a quoted field: either an escape or the close
)

// batch is what one scan step discovered.
type batch struct {
	header *model.Extent
	starts []int64
	ends   []int64
	// flawed holds positions into starts/ends of rows that failed to parse.
	flawed []int
}

// scanner finds row boundaries. It keeps its state between calls so rows may
// span any number of chunks.
type scanner struct {
	delim, quote byte
	maxRow       int64

	headerPending bool
	state         fieldState
	rowStart      int64
	// content is false while the current row holds only line terminators.
	content bool
	// overlong rows stop tracking quotes and end at the next newline.
	overlong bool
	flawed   bool
	// firstNL is the offset just past the first newline inside the row, 0 if none.
	firstNL int64
}

func newScanner(delim, quote byte, header bool, maxRow int64) *scanner {
	return &scanner{delim: delim, quote: quote, maxRow: maxRow, headerPending: header}
}

// feed scans data, which starts at absolute offset base.
func (s *scanner) feed(data []byte, base int64) batch {
	var out batch
	for i, b := range data {
		pos := base + int64(i)
		if s.overlong {
			if b == '\n' {
				s.endRow(pos+1, &out)
			}
			continue
		}
		switch {
		case s.state == inQuoted:
			switch {
			case b == s.quote:
				s.state = afterQuote
			case b == '\n' && s.firstNL == 0:
				s.firstNL = pos + 1
			}
		case b == '\n':
			s.endRow(pos+1, &out)
			continue
		case s.state == afterQuote:
			switch b {
			case s.quote:
				s.state = inQuoted
			case s.delim:
				s.state = atFieldStart
			default:
				s.state = inUnquoted
			}
		case s.state == atFieldStart:
			switch {
			case s.quote != 0 && b == s.quote:
				s.state = inQuoted
			case b == s.delim:
			default:
				s.state = inUnquoted
			}
		case b == s.delim:
			s.state = atFieldStart
		}
		if b != '\r' && b != '\n' {
			s.content = true
		}
		if s.maxRow > 0 && pos+1-s.rowStart > s.maxRow {
			s.overlong = true
			s.flawed = true
		}
	}
	return out
}

// finish closes a trailing row that has no terminating newline. A quote that
// is still open at the end of the data never closes: the row it started is
// cut at its first newline and resume reports where scanning must restart.
// resume is -1 when nothing needs rescanning.
func (s *scanner) finish(end int64) (out batch, resume int64) {
	resume = -1
	if end > s.rowStart {
		if s.state == inQuoted {
			s.flawed = true
			if s.firstNL > 0 && s.firstNL < end {
				end, resume = s.firstNL, s.firstNL
			}
		}
		s.endRow(end, &out)
	}
	return out, resume
}

func (s *scanner) endRow(end int64, out *batch) {
	start := s.rowStart
	keep := s.content
	flawed := s.flawed
	s.rowStart = end
	s.state = atFieldStart
	s.content = false
	s.overlong = false
	s.flawed = false
	s.firstNL = 0
	if !keep && !flawed {
		// blank line
		return
	}
	if s.headerPending {
		s.headerPending = false
		out.header = &model.Extent{Start: start, End: end}
		return
	}
	if flawed {
		out.flawed = append(out.flawed, len(out.starts))
	}
	out.starts = append(out.starts, start)
	out.ends = append(out.ends, end)
}
