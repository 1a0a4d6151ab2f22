// Package split turns the raw bytes of one delimited row into its fields.
package split

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ErrUnterminatedQuote is returned with best-effort fields when a quoted field
// runs to the end of the row.
var ErrUnterminatedQuote = errors.New("unterminated quoted field")

// Dialect describes the delimiter and quoting convention of a source.
type Dialect struct {
	Delimiter rune
	// Quote is the quote character; 0 disables quoting.
	Quote rune
}

// DefaultDialect is RFC 4180 CSV.
var DefaultDialect = Dialect{Delimiter: ',', Quote: '"'}

// TrimNewline strips one trailing "\n" or "\r\n".
func TrimNewline(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}
	}
	return line
}

// Split returns the fields of line. A quote opens a quoted field only at the
// start of a field; inside a quoted field a doubled quote is a literal quote and
// delimiters and newlines are kept. A quote that closes a field but is followed
// by other text is kept leniently as part of the field.
func Split(line []byte, d Dialect) ([]string, error) {
	line = TrimNewline(line)
	if d.Delimiter == 0 {
		d.Delimiter = ','
	}
	if d.Quote == 0 {
		return splitPlain(line, d.Delimiter), nil
	}

	var (
		fields []string
		field  strings.Builder
		quoted bool
		start  = true
	)
	for i := 0; i < len(line); {
		r, size := utf8.DecodeRune(line[i:])
		i += size
		switch {
		case quoted:
			if r != d.Quote {
				field.WriteRune(r)
				continue
			}
			if i < len(line) {
				next, nsize := utf8.DecodeRune(line[i:])
				if next == d.Quote {
					field.WriteRune(d.Quote)
					i += nsize
					continue
				}
			}
			quoted = false
		case r == d.Delimiter:
			fields = append(fields, field.String())
			field.Reset()
			start = true
			continue
		case r == d.Quote && start:
			quoted = true
		default:
			field.WriteRune(r)
		}
		start = false
	}
	fields = append(fields, field.String())
	if quoted {
		return fields, ErrUnterminatedQuote
	}
	return fields, nil
}

func splitPlain(line []byte, delim rune) []string {
	var sep [utf8.UTFMax]byte
	n := utf8.EncodeRune(sep[:], delim)
	parts := bytes.Split(line, sep[:n])
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = string(p)
	}
	return out
}

var sniffCandidates = []rune{',', '\t', ';', '|'}

// DelimiterForPath guesses a delimiter from a file extension, ignoring
// compression suffixes. It returns 0 when the extension says nothing.
func DelimiterForPath(path string) rune {
	name := strings.ToLower(filepath.Base(path))
	for _, ext := range []string{".gz", ".zst", ".lz4"} {
		name = strings.TrimSuffix(name, ext)
	}
	switch filepath.Ext(name) {
	case ".tsv", ".tab":
		return '\t'
	case ".psv":
		return '|'
	case ".csv":
		return ','
	}
	return 0
}

// Sniff picks the candidate delimiter that appears the same non-zero number of
// times on the most sample lines, preferring the first line's most frequent one.
// Quoted regions are skipped when quote is non-zero. It falls back to ','.
func Sniff(sample []byte, quote rune) rune {
	lines := bytes.Split(sample, []byte{'\n'})
	// last line may be cut mid-row
	if len(lines) > 1 {
		lines = lines[:len(lines)-1]
	}
	best, bestScore := ',', 0
	for _, c := range sniffCandidates {
		first := -1
		score := 0
		for _, l := range lines {
			n := countUnquoted(l, c, quote)
			if first < 0 {
				first = n
			}
			if n > 0 && n == first {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best
}

func countUnquoted(line []byte, c, quote rune) int {
	n := 0
	in := false
	for _, r := range string(line) {
		switch {
		case quote != 0 && r == quote:
			in = !in
		case !in && r == c:
			n++
		}
	}
	return n
}
