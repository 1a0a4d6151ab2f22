// Package filter parses column predicates and evaluates them over rows.
package filter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/gobwas/glob"

	apperr "tabsense/internal/errors"
	"tabsense/internal/model"
)

type Comparator int

const (
	Eq Comparator = iota
	NotEq
	Lt
	Gt
	Le
	Ge
	PatternMatch
)

func (c Comparator) String() string {
	switch c {
	case Eq:
		return "="
	case NotEq:
		return "!="
	case Lt:
		return "<"
	case Gt:
		return ">"
	case Le:
		return "<="
	case Ge:
		return ">="
	case PatternMatch:
		return "~"
	}
	return "?"
}

// operators in match order: two-byte forms before their prefixes
var operators = []struct {
	text string
	cmp  Comparator
}{
	{"<>", NotEq},
	{"<=", Le},
	{">=", Ge},
	{"!=", NotEq},
	{"==", Eq},
	{"=", Eq},
	{"<", Lt},
	{">", Gt},
	{"~", PatternMatch},
}

// Predicate is one immutable column test. An empty Column with Position 0
// tests the whole row text.
type Predicate struct {
	Column string
	// Position is a 1-based column position given as #N; 0 when Column names it.
	Position int
	Op       Comparator
	Operand  string
	// Quoted operands always compare as text.
	Quoted bool

	pattern *pattern
}

// WholeRow reports whether p matches against the entire row.
func (p Predicate) WholeRow() bool { return p.Column == "" && p.Position == 0 }

func (p Predicate) String() string {
	operand := p.Operand
	if p.WholeRow() {
		if p.Quoted || strings.ContainsAny(operand, "&\"'=<>!~") {
			operand = quote(operand)
		}
		return operand
	}
	if p.Quoted || strings.ContainsAny(operand, "&\"'") || strings.TrimSpace(operand) != operand {
		operand = quote(operand)
	}
	col := p.Column
	if p.Position > 0 {
		col = "#" + strconv.Itoa(p.Position)
	}
	return col + p.Op.String() + operand
}

// ParsePredicate parses `column<op>value`, `#N<op>value`, or a bare row
// pattern. Operators inside quotes are not operators.
func ParsePredicate(text string) (Predicate, error) {
	term := strings.TrimSpace(text)
	if term == "" {
		return Predicate{}, apperr.NewFilterSyntaxError(text, "empty filter term")
	}
	at, op, width := findOperator(term)
	if at < 0 {
		operand, quoted := unquote(term)
		p := Predicate{Op: PatternMatch, Operand: operand, Quoted: quoted}
		return p.compile(text)
	}
	col := strings.TrimSpace(term[:at])
	if col == "" {
		return Predicate{}, apperr.NewFilterSyntaxError(text, "missing column before "+term[at:at+width])
	}
	p := Predicate{Column: col, Op: op}
	if strings.HasPrefix(col, "#") {
		n, err := strconv.Atoi(col[1:])
		if err != nil || n < 1 {
			return Predicate{}, apperr.NewFilterSyntaxError(text, fmt.Sprintf("bad column position %q", col))
		}
		p.Column, p.Position = "", n
	}
	p.Operand, p.Quoted = unquote(strings.TrimSpace(term[at+width:]))
	return p.compile(text)
}

func findOperator(term string) (at int, op Comparator, width int) {
	var quote byte
	for i := 0; i < len(term); i++ {
		c := term[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			continue
		case c == '"' || c == '\'':
			quote = c
			continue
		}
		for _, o := range operators {
			if strings.HasPrefix(term[i:], o.text) {
				return i, o.cmp, len(o.text)
			}
		}
	}
	return -1, 0, 0
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		q := s[:1]
		return strings.ReplaceAll(s[1:len(s)-1], q+q, q), true
	}
	return s, false
}

func (p Predicate) compile(text string) (Predicate, error) {
	if p.Op != PatternMatch {
		return p, nil
	}
	// globs belong to ~; a whole-row pattern is plain text
	pat, err := newPattern(p.Operand, !p.WholeRow())
	if err != nil {
		return Predicate{}, apperr.NewFilterSyntaxError(text, err.Error())
	}
	p.pattern = pat
	return p, nil
}

// RowPattern returns a whole-row pattern predicate for text taken verbatim.
func RowPattern(text string) (Predicate, error) {
	return Predicate{Op: PatternMatch, Operand: text}.compile(text)
}

// Set is an ordered conjunction of predicates. The empty set matches every row.
type Set []Predicate

// ParseSet parses terms joined by "&&".
func ParseSet(text string) (Set, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var set Set
	for _, term := range splitTerms(text) {
		p, err := ParsePredicate(term)
		if err != nil {
			return nil, err
		}
		set = append(set, p)
	}
	return set, nil
}

// ParseAll parses each text as its own set and joins the results.
func ParseAll(texts ...string) (Set, error) {
	var set Set
	for _, t := range texts {
		s, err := ParseSet(t)
		if err != nil {
			return nil, err
		}
		set = append(set, s...)
	}
	return set, nil
}

func splitTerms(text string) []string {
	var (
		terms []string
		quote byte
		start int
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '&' && i+1 < len(text) && text[i+1] == '&':
			terms = append(terms, text[start:i])
			i++
			start = i + 1
		}
	}
	return append(terms, text[start:])
}

func (s Set) String() string {
	parts := make([]string, len(s))
	for i, p := range s {
		parts[i] = p.String()
	}
	return strings.Join(parts, " && ")
}

// pattern is a smart-case substring test, or a glob over the whole field.
type pattern struct {
	text  string
	fold  bool
	glob  glob.Glob
	empty bool
}

func newPattern(text string, globbing bool) (*pattern, error) {
	p := &pattern{text: text, empty: text == ""}
	// smart case: an all-lowercase pattern ignores case
	if strings.ToLower(text) == text {
		p.fold = true
	}
	if globbing && strings.ContainsAny(text, "*?[") {
		g, err := glob.Compile(text)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %v", text, err)
		}
		p.glob = g
	}
	return p, nil
}

func (p *pattern) match(s string) bool {
	if p.empty {
		return true
	}
	if p.fold {
		s = strings.ToLower(s)
	}
	if p.glob != nil {
		return p.glob.Match(s)
	}
	return strings.Contains(s, p.text)
}

// Match reports whether s contains text under the smart-case rule. It is used
// by interactive search.
func Match(s, text string) bool {
	if text == "" {
		return true
	}
	if strings.ToLower(text) == text {
		s = strings.ToLower(s)
	}
	return strings.Contains(s, text)
}

// number parses s as a finite float.
func number(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// compare orders a field against an operand: numerically when both are
// finite numbers and the operand is not quoted, otherwise byte-wise.
func compare(field, operand string, operandNum float64, operandIsNum bool) int {
	if operandIsNum {
		if f, ok := number(field); ok {
			switch {
			case f < operandNum:
				return -1
			case f > operandNum:
				return 1
			}
			return 0
		}
	}
	return strings.Compare(field, operand)
}

// bound is a predicate resolved against a concrete column list.
type bound struct {
	Predicate
	pos   int // -1 whole row, -2 unknown column
	num   float64
	isNum bool
}

const (
	wholeRow      = -1
	unknownColumn = -2
)

// Matcher evaluates a Set against rows. Columns are bound once, when the
// matcher is built.
type Matcher struct {
	preds   []bound
	unknown []string
	sep     string
}

// NewMatcher binds set to columns. sep joins fields for whole-row patterns.
func NewMatcher(set Set, columns []string, sep string) *Matcher {
	m := &Matcher{sep: sep}
	for _, p := range set {
		b := bound{Predicate: p, pos: wholeRow}
		switch {
		case p.Position > 0:
			b.pos = p.Position - 1
		case p.Column != "":
			b.pos = unknownColumn
			for i, c := range columns {
				if c == p.Column {
					b.pos = i
					break
				}
			}
			if b.pos == unknownColumn {
				m.unknown = append(m.unknown, p.Column)
			}
		}
		if !p.Quoted && p.Op != PatternMatch {
			b.num, b.isNum = number(p.Operand)
		}
		m.preds = append(m.preds, b)
	}
	return m
}

// Unknown lists column names in the set that matched no column.
func (m *Matcher) Unknown() []string { return m.unknown }

// Match tests every predicate in order and stops at the first failure.
func (m *Matcher) Match(row model.Row) bool {
	for i := range m.preds {
		if !m.preds[i].match(row, m.sep) {
			return false
		}
	}
	return true
}

func (b *bound) match(row model.Row, sep string) bool {
	var field string
	switch {
	case b.pos == unknownColumn:
		return false
	case b.pos == wholeRow:
		field = row.Text(sep)
	default:
		// flawed rows carry only their raw text
		field = row.Field(b.pos)
	}
	if b.Op == PatternMatch {
		return b.pattern.match(field)
	}
	if b.Op == Eq && b.Operand == "" {
		return field == ""
	}
	c := compare(field, b.Operand, b.num, b.isNum)
	switch b.Op {
	case Eq:
		return c == 0
	case NotEq:
		return c != 0
	case Lt:
		return c < 0
	case Gt:
		return c > 0
	case Le:
		return c <= 0
	case Ge:
		return c >= 0
	}
	return false
}
