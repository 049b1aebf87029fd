// Package peg implements a small PEG-style grammar engine.
//
// Grammars are plain data: a set of named rules whose bodies are built from
// expression values (sequence, ordered choice, repetition, lookahead,
// literals, and character classes). Matching an input against a grammar
// produces a tree of named rule nodes, each carrying the byte span it
// matched. The engine never copies matched text; nodes reference the input
// through their spans.
package peg

import "fmt"

// Span is a half-open byte range [Start, End) into the matched input.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// String returns the span in [start, end) notation.
func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// Node is a single match of a named rule.
//
// Token rules have no children; their matched text is recovered by slicing
// the input with Span. Silent rules never appear in the tree, but their
// named descendants do.
type Node struct {
	Rule     string
	Span     Span
	Children []*Node
}

// Text returns the text matched by the node.
func (n *Node) Text(source string) string {
	return source[n.Span.Start:n.Span.End]
}

// Child returns the first direct child matching the given rule name, or nil.
func (n *Node) Child(rule string) *Node {
	for _, c := range n.Children {
		if c.Rule == rule {
			return c
		}
	}
	return nil
}

// Find returns all direct children matching the given rule name.
func (n *Node) Find(rule string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Rule == rule {
			out = append(out, c)
		}
	}
	return out
}
