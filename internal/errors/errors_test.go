package errors

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"source open", NewSourceOpenError("x.csv", io.ErrUnexpectedEOF), ExitSourceOpen},
		{"filter syntax", NewFilterSyntaxError("=3", "missing column"), ExitFilterSyntax},
		{"wrapped filter syntax", fmt.Errorf("cli: %w", NewFilterSyntaxError("a<", "x")), ExitFilterSyntax},
		{"source read", NewSourceReadError("x.csv", io.ErrClosedPipe), ExitFailure},
		{"plain", io.EOF, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestIsByKind(t *testing.T) {
	err := fmt.Errorf("open: %w", NewSourceOpenError("missing.csv", io.EOF))
	assert.True(t, Is(err, ErrSourceOpen))
	assert.False(t, Is(err, ErrFilterSyntax))
	assert.True(t, Is(err, io.EOF), "underlying cause stays reachable")
	assert.Equal(t, SourceOpen, KindOf(err))
	assert.Contains(t, err.Error(), "missing.csv")
}
