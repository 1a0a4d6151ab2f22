package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{rows: 5, delimiter: "tab", seed: 1}, &buf))

	r := csv.NewReader(&buf)
	r.Comma = '\t'
	recs, err := r.ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 6)
	assert.Equal(t, columns, recs[0])
	assert.Equal(t, "5", recs[5][0])
}

func TestSameSeedSameTable(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, run(context.Background(), options{rows: 20, delimiter: ",", seed: 7}, &a))
	require.NoError(t, run(context.Background(), options{rows: 20, delimiter: ",", seed: 7}, &b))
	assert.Equal(t, a.String(), b.String())
}

func TestFlawedRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, run(context.Background(), options{rows: 4, delimiter: ";", flawedEach: 2, noHeader: true, seed: 3}, &buf))
	assert.Equal(t, 2, strings.Count(buf.String(), `"unterminated`))
}

func TestAppendsToFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "t.csv")
	require.NoError(t, run(context.Background(), options{rows: 1, delimiter: ",", out: p, seed: 1}, nil))
	require.NoError(t, run(context.Background(), options{rows: 1, delimiter: ",", out: p, noHeader: true, seed: 1}, nil))
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "id,ts,user"))
}

func TestParseDelimiter(t *testing.T) {
	d, err := parseDelimiter("tab")
	require.NoError(t, err)
	assert.Equal(t, '\t', d)
	_, err = parseDelimiter(`"`)
	assert.Error(t, err)
	_, err = parseDelimiter("ab")
	assert.Error(t, err)
}
