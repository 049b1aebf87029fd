package peg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// RuleMode controls how a rule's match appears in the parse tree.
type RuleMode int

const (
	// Normal rules produce a node containing their named descendants.
	Normal RuleMode = iota
	// Silent rules produce no node of their own; their named descendants
	// are hoisted into the enclosing node.
	Silent
	// Token rules produce a leaf node; anything matched inside is
	// flattened into the leaf's span.
	Token
)

// Rule is a single named grammar production.
type Rule struct {
	Name string
	Mode RuleMode
	Expr Expr
}

// Grammar is a compiled set of rules. A Grammar is immutable once built and
// safe for concurrent use.
type Grammar struct {
	rules map[string]*Rule
	start string
}

// NewGrammar compiles a rule set with the given start rule. Every Ref used
// by any rule body must resolve to a rule in the set.
func NewGrammar(start string, rules []*Rule) (*Grammar, error) {
	g := &Grammar{rules: make(map[string]*Rule, len(rules)), start: start}
	for _, r := range rules {
		if _, dup := g.rules[r.Name]; dup {
			return nil, errors.Errorf("duplicate rule %q", r.Name)
		}
		g.rules[r.Name] = r
	}
	if _, ok := g.rules[start]; !ok {
		return nil, errors.Errorf("start rule %q not defined", start)
	}
	for _, r := range rules {
		if err := checkRefs(g, r.Expr); err != nil {
			return nil, errors.Wrapf(err, "rule %q", r.Name)
		}
	}
	return g, nil
}

// MustGrammar is like NewGrammar but panics on error. It is intended for
// statically-defined grammar tables.
func MustGrammar(start string, rules []*Rule) *Grammar {
	g, err := NewGrammar(start, rules)
	if err != nil {
		panic(err)
	}
	return g
}

func checkRefs(g *Grammar, e Expr) error {
	switch v := e.(type) {
	case *refExpr:
		if _, ok := g.rules[v.name]; !ok {
			return errors.Errorf("undefined rule %q", v.name)
		}
	case *seqExpr:
		for _, item := range v.items {
			if err := checkRefs(g, item); err != nil {
				return err
			}
		}
	case *choiceExpr:
		for _, item := range v.items {
			if err := checkRefs(g, item); err != nil {
				return err
			}
		}
	case *repExpr:
		return checkRefs(g, v.item)
	case *optExpr:
		return checkRefs(g, v.item)
	case *lookExpr:
		return checkRefs(g, v.item)
	}
	return nil
}

// ParseError reports the deepest position the engine reached before giving
// up, along with the rules it was attempting to match there.
type ParseError struct {
	Offset   int
	Line     int
	Column   int
	Expected []string
}

func (e *ParseError) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("parse error at line %d, column %d", e.Line, e.Column)
	}
	return fmt.Sprintf("parse error at line %d, column %d: expected %s",
		e.Line, e.Column, strings.Join(e.Expected, ", "))
}

type state struct {
	input   string
	grammar *Grammar

	// failure bookkeeping
	farthest int
	expected map[string]struct{}
	quiet    int

	stack []string
}

func (st *state) fail(pos int) {
	if st.quiet > 0 {
		return
	}
	if pos < st.farthest {
		return
	}
	if pos > st.farthest {
		st.farthest = pos
		st.expected = make(map[string]struct{})
	}
	label := "input"
	if len(st.stack) > 0 {
		label = st.stack[len(st.stack)-1]
	}
	st.expected[label] = struct{}{}
}

// Parse matches the entire input against the grammar's start rule and
// returns the root node. Any unconsumed trailing input is a parse error.
func (g *Grammar) Parse(input string) (*Node, error) {
	st := &state{
		input:    input,
		grammar:  g,
		expected: make(map[string]struct{}),
	}

	var out []*Node
	end, ok := Ref(g.start).match(st, 0, &out)
	if ok && end < len(input) {
		st.fail(end)
		ok = false
	}
	if !ok {
		expected := make([]string, 0, len(st.expected))
		for name := range st.expected {
			expected = append(expected, name)
		}
		sort.Strings(expected)
		pos := NewSourceMap(input).Position(st.farthest)
		return nil, &ParseError{
			Offset:   st.farthest,
			Line:     pos.Line,
			Column:   pos.Column,
			Expected: expected,
		}
	}
	return out[0], nil
}
