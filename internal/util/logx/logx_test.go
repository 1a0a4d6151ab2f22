package logx

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingKeepsFormattedLines(t *testing.T) {
	SetLevel(Info)
	Infof("indexed %d rows", 42)
	Debugf("hidden at info level")

	lines := Lines()
	require.NotEmpty(t, lines)
	last := lines[len(lines)-1]
	assert.Contains(t, last, "INFO")
	assert.Contains(t, last, "indexed 42 rows")
	assert.NotContains(t, Dump(), "hidden at info level")
}

func TestRingDropsOldest(t *testing.T) {
	SetLevel(Info)
	for i := 0; i < 520; i++ {
		Infof("line-%03d", i)
	}
	lines := Lines()
	assert.Len(t, lines, 500)
	assert.Contains(t, lines[len(lines)-1], "line-519")
	assert.NotContains(t, Dump(), "line-019")
}

func TestSetOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(bytes.NewBuffer(nil)) })
	Warnf("careful %s", "now")
	assert.Contains(t, buf.String(), fmt.Sprintf("msg=%q", "careful now"))
}

func TestEnabled(t *testing.T) {
	SetLevel(Warn)
	t.Cleanup(func() { SetLevel(Info) })
	assert.True(t, Enabled(Error))
	assert.False(t, Enabled(Debug))
}
