package peg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceMapPosition(t *testing.T) {
	m := NewSourceMap("ab\ncdef\n\nx")

	tests := []struct {
		offset int
		line   int
		column int
	}{
		{0, 1, 1},
		{1, 1, 2},
		{2, 1, 3},  // the newline belongs to line 1
		{3, 2, 1},
		{6, 2, 4},
		{8, 3, 1},  // empty line
		{9, 4, 1},
		{10, 4, 2}, // one past the end clamps to the end
	}
	for _, tt := range tests {
		pos := m.Position(tt.offset)
		assert.Equal(t, tt.line, pos.Line, "offset %d", tt.offset)
		assert.Equal(t, tt.column, pos.Column, "offset %d", tt.offset)
	}
}

func TestSourceMapEdgeCases(t *testing.T) {
	empty := NewSourceMap("")
	assert.Equal(t, Position{Line: 1, Column: 1}, empty.Position(0))
	assert.Equal(t, Position{Line: 1, Column: 1}, empty.Position(-5))
	assert.Equal(t, Position{Line: 1, Column: 1}, empty.Position(100))

	crlf := NewSourceMap("ab\r\ncd")
	assert.Equal(t, Position{Line: 2, Column: 1}, crlf.Position(4))
	// the carriage return counts as a byte of line 1
	assert.Equal(t, Position{Line: 1, Column: 3}, crlf.Position(2))
}
