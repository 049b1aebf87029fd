package peg

import (
	"sort"
	"strings"
)

// Position is a 1-based line and column. Columns count bytes from the start
// of the line.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// SourceMap converts byte offsets into line/column positions for
// diagnostics. Building the map is O(n) in the source size; lookups are
// O(log lines).
type SourceMap struct {
	lineStarts []int
	size       int
}

// NewSourceMap indexes the line boundaries of the given source.
func NewSourceMap(source string) *SourceMap {
	starts := []int{0}
	for i := 0; i < len(source); {
		j := strings.IndexByte(source[i:], '\n')
		if j < 0 {
			break
		}
		i += j + 1
		starts = append(starts, i)
	}
	return &SourceMap{lineStarts: starts, size: len(source)}
}

// Position returns the line/column of a byte offset. Offsets past the end
// of the source are clamped to the end.
func (m *SourceMap) Position(offset int) Position {
	if offset < 0 {
		offset = 0
	}
	if offset > m.size {
		offset = m.size
	}
	line := sort.Search(len(m.lineStarts), func(i int) bool {
		return m.lineStarts[i] > offset
	})
	return Position{
		Line:   line,
		Column: offset - m.lineStarts[line-1] + 1,
	}
}
