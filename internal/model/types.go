package model

import "strings"

// Extent is the byte range of one logical row in the source. End is the start
// of the following row (or end of source), so it includes the row terminator.
type Extent struct {
	Start int64
	End   int64
}

func (e Extent) Len() int64 { return e.End - e.Start }

// Snapshot is a consistent view of indexing progress. Rows is never smaller
// than in any earlier snapshot and Complete never reverts to false.
type Snapshot struct {
	Rows         int
	ScannedBytes int64
	Complete     bool
	FlawedRows   int
}

// Row is one resolved record. Flawed rows hold their raw text as the only field.
type Row struct {
	Index  int
	Fields []string
	Flawed bool
}

// Field returns the field at pos, or "" when the row is shorter.
func (r Row) Field(pos int) string {
	if pos < 0 || pos >= len(r.Fields) {
		return ""
	}
	return r.Fields[pos]
}

// Text joins the fields with sep.
func (r Row) Text(sep string) string { return strings.Join(r.Fields, sep) }

// Column describes one column. Width only ever grows.
type Column struct {
	Name     string
	Position int
	Width    int
}

// ColumnIndex finds a column by exact name.
func ColumnIndex(cols []Column, name string) (int, bool) {
	for i, c := range cols {
		if c.Name == name {
			return i, true
		}
	}
	return -1, false
}
