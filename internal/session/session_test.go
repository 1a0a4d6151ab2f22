package session

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "tabsense/internal/errors"
	"tabsense/internal/model"
	"tabsense/internal/nav"
	"tabsense/internal/source"
	"tabsense/internal/split"
)

const people = "id,name,score\n1,alice,10\n2,bob,4\n3,carol,9\n"

func open(t *testing.T, data string, opt Options) *Session {
	t.Helper()
	p := filepath.Join(t.TempDir(), "people.txt")
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	opt.Source.Path = p
	if opt.VisibleRows == 0 {
		opt.VisibleRows = 10
	}
	s, err := Open(context.Background(), opt)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	waitComplete(t, s)
	return s
}

func waitComplete(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Indexer().Done():
	case <-time.After(5 * time.Second):
		t.Fatal("indexing did not finish")
	}
	s.Tick()
}

func names(f Frame) []string {
	var out []string
	for _, r := range f.Rows {
		out = append(out, r.Cells[1])
	}
	return out
}

func TestEndToEndScenario(t *testing.T) {
	s := open(t, people, Options{Header: true})
	f := s.Frame()
	require.Len(t, f.Rows, 3)
	assert.Equal(t, 3, f.Status.Total)
	assert.True(t, f.Status.Complete)

	st := s.Do(nav.Command{Kind: nav.StartFilter})
	assert.Equal(t, nav.FilterEdit, st.Mode)
	s.Do(nav.Command{Kind: nav.Input, Text: "score>4"})
	st = s.Do(nav.Command{Kind: nav.Confirm})
	require.Equal(t, nav.Browse, st.Mode, st.Status)

	f = s.Frame()
	assert.Equal(t, []string{"alice", "carol"}, names(f))
	assert.Equal(t, 2, f.Status.Filtered)
	assert.Equal(t, "score>4", f.Status.Filter)

	st = s.Do(nav.Command{Kind: nav.Last})
	assert.Equal(t, 1, st.View.Cursor)
	row, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, "carol", row.Field(1))

	st = s.Do(nav.Command{Kind: nav.PageDown})
	assert.Equal(t, 1, st.View.Cursor, "paging past the last row does nothing")

	s.Do(nav.Command{Kind: nav.First})
	s.Do(nav.Command{Kind: nav.StartSearch})
	s.Do(nav.Command{Kind: nav.Input, Text: "ali"})
	st = s.Do(nav.Command{Kind: nav.Confirm})
	assert.Equal(t, 0, st.View.Cursor)
	row, _ = s.Current()
	assert.Equal(t, "alice", row.Field(1))

	st = s.Do(nav.Command{Kind: nav.SearchNext})
	assert.Equal(t, "not found: ali", st.Status)
	assert.Equal(t, 0, st.View.Cursor)
}

func TestFilterErrorKeepsPreviousFilter(t *testing.T) {
	s := open(t, people, Options{Header: true, Where: []string{"name!=bob"}})
	assert.Equal(t, 2, s.Frame().Status.Filtered)

	s.Do(nav.Command{Kind: nav.StartFilter})
	s.Do(nav.Command{Kind: nav.Input, Text: "=oops"})
	st := s.Do(nav.Command{Kind: nav.Confirm})
	assert.Equal(t, nav.FilterEdit, st.Mode)
	assert.NotEmpty(t, st.Status)
	assert.Equal(t, 2, s.Frame().Status.Filtered)

	s.Do(nav.Command{Kind: nav.Cancel})
	s.Do(nav.Command{Kind: nav.ClearFilter})
	f := s.Frame()
	assert.False(t, f.Status.Filtering)
	assert.Len(t, f.Rows, 3)
}

func TestOpenRejectsBadFilterFirst(t *testing.T) {
	_, err := Open(context.Background(), Options{Source: source.Options{Path: "/does/not/exist"}, Where: []string{">1"}})
	assert.Equal(t, apperr.ExitFilterSyntax, apperr.ExitCode(err))

	_, err = Open(context.Background(), Options{Source: source.Options{Path: "/does/not/exist"}})
	assert.Equal(t, apperr.ExitSourceOpen, apperr.ExitCode(err))
}

func TestUnknownColumnWarns(t *testing.T) {
	s := open(t, people, Options{Header: true, Where: []string{"age>3"}})
	f := s.Frame()
	assert.Equal(t, "unknown column: age", f.Status.Warning)
	assert.Empty(t, f.Rows)
	assert.Equal(t, 0, f.Status.Position)
}

func TestSelectAndScroll(t *testing.T) {
	s := open(t, people, Options{Header: true, Select: []string{"score", "#2", "missing"}})
	f := s.Frame()
	require.Len(t, f.Columns, 2)
	assert.Equal(t, "score", f.Columns[0].Name)
	assert.Equal(t, "name", f.Columns[1].Name)
	assert.Equal(t, []string{"10", "alice"}, f.Rows[0].Cells)

	s.Do(nav.Command{Kind: nav.Right})
	f = s.Frame()
	require.Len(t, f.Columns, 1)
	assert.Equal(t, []string{"alice"}, f.Rows[0].Cells)
}

func TestSetSelect(t *testing.T) {
	s := open(t, people, Options{Header: true})
	s.Do(nav.Command{Kind: nav.Right})
	s.Do(nav.Command{Kind: nav.Right})
	require.Equal(t, 2, s.State().View.ColStart)

	s.SetSelect([]string{"name"})
	assert.Zero(t, s.State().View.ColStart)
	f := s.Frame()
	require.Len(t, f.Columns, 1)
	assert.Equal(t, []string{"alice"}, f.Rows[0].Cells)
	assert.Equal(t, []string{"name"}, s.Selected())

	s.SetSelect(nil)
	assert.Equal(t, []string{"id", "name", "score"}, s.Selected())
	assert.NotContains(t, s.CommandLine(), "--select")
}

func TestPatternAndWhereCombine(t *testing.T) {
	s := open(t, people, Options{Header: true, Where: []string{"score>=4"}, Pattern: "o"})
	f := s.Frame()
	assert.Equal(t, []string{"bob", "carol"}, names(f))
	assert.Equal(t, "tabsense --where='score>=4' --where=o "+shellQuote(s.opt.Source.Path), s.CommandLine())
}

func TestDelimiterDetection(t *testing.T) {
	data := "a;b;c\n1;2;3\n4;5;6\n"
	s := open(t, data, Options{Header: true, Dialect: split.Dialect{Quote: '"'}})
	assert.Equal(t, ';', s.Dialect().Delimiter)
	assert.Equal(t, []string{"a", "b", "c"}, s.res.Header())
}

func TestFlawedRowInFrame(t *testing.T) {
	data := "a,b\n1,2\n3,\"x" + string(bytes.Repeat([]byte("y"), 40)) + "\n5,6\n"
	s := open(t, data, Options{Header: true, MaxRowBytes: 16})
	f := s.Frame()
	require.Len(t, f.Rows, 3)
	assert.False(t, f.Rows[0].Flawed)
	assert.True(t, f.Rows[1].Flawed)
	assert.Nil(t, f.Rows[1].Cells)
	assert.Contains(t, f.Rows[1].Raw, "yyy")
	assert.Equal(t, []string{"5", "6"}, f.Rows[2].Cells)
	assert.Equal(t, 1, f.Status.FlawedRows)
}

func TestUnterminatedQuoteKeepsLaterRows(t *testing.T) {
	data := "a,b\n1,x\n2,\"bad\n3,y\n4,z\n5,w\n"
	s := open(t, data, Options{Header: true, Dialect: split.Dialect{Delimiter: ',', Quote: '"'}})
	f := s.Frame()
	require.Len(t, f.Rows, 5)
	assert.True(t, f.Rows[1].Flawed)
	assert.Equal(t, `2,"bad`, f.Rows[1].Raw)
	assert.Equal(t, []string{"3", "y"}, f.Rows[2].Cells)
	assert.Equal(t, []string{"5", "w"}, f.Rows[4].Cells)
	assert.Equal(t, 1, f.Status.FlawedRows)
}

func confirmFilter(s *Session, text string) nav.State {
	s.Do(nav.Command{Kind: nav.StartFilter})
	s.Do(nav.Command{Kind: nav.Input, Text: text})
	return s.Do(nav.Command{Kind: nav.Confirm})
}

func TestFilterConfirmClampsCursor(t *testing.T) {
	var b strings.Builder
	b.WriteString("id,v\n")
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, "%d,%d\n", i, i)
	}
	s := open(t, b.String(), Options{Header: true})

	st := s.Do(nav.Command{Kind: nav.Last})
	require.Equal(t, 49, st.View.Cursor)
	st = confirmFilter(s, "v>45")
	require.Equal(t, nav.Browse, st.Mode, st.Status)
	assert.Equal(t, 5, s.Frame().Status.Filtered)
	assert.Equal(t, 4, st.View.Cursor)
	assert.LessOrEqual(t, st.View.Top, st.View.Cursor)

	s.Do(nav.Command{Kind: nav.ClearFilter})
	s.Do(nav.Command{Kind: nav.First})
	s.Do(nav.Command{Kind: nav.Down})
	s.Do(nav.Command{Kind: nav.Down})
	st = confirmFilter(s, "v>10")
	assert.Equal(t, 2, st.View.Cursor, "cursor stays when still in range")
}

func TestTickKeepsMessage(t *testing.T) {
	s := open(t, people, Options{Header: true})
	s.Do(nav.Command{Kind: nav.StartSearch})
	s.Do(nav.Command{Kind: nav.Input, Text: "zzz"})
	st := s.Do(nav.Command{Kind: nav.Confirm})
	require.Equal(t, "not found: zzz", st.Status)

	s.Tick()
	s.Tick()
	assert.Equal(t, "not found: zzz", s.Frame().Status.Message)

	st = s.Do(nav.Command{Kind: nav.Down})
	assert.Empty(t, st.Status)
}

func TestEachStreamsMatches(t *testing.T) {
	s := open(t, people, Options{Header: true, Where: []string{"score<10"}, Select: []string{"name"}})
	cols, err := s.Columns(context.Background())
	require.NoError(t, err)
	require.Len(t, cols, 1)

	var got []model.Row
	require.NoError(t, s.Each(context.Background(), func(r model.Row) error {
		got = append(got, r)
		return nil
	}))
	require.Len(t, got, 2)
	assert.Equal(t, []string{"bob"}, got[0].Fields)
	assert.Equal(t, []string{"carol"}, got[1].Fields)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, "plain.csv", shellQuote("plain.csv"))
	assert.Equal(t, "'a b'", shellQuote("a b"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.Equal(t, "''", shellQuote(""))
}
