package peg

import "strings"

// Expr is a single PEG expression. Expressions are immutable values; a
// compiled grammar may be shared freely between goroutines.
type Expr interface {
	match(st *state, pos int, out *[]*Node) (int, bool)
}

// Lit matches an exact literal string.
func Lit(s string) Expr { return &litExpr{lit: s} }

// ILit matches a literal string ignoring ASCII case.
func ILit(s string) Expr { return &litExpr{lit: s, fold: true} }

// Class matches a single byte satisfying pred. The name is descriptive
// only: a failed match is reported in the expected-rule set under the
// enclosing rule's name (or "input" outside any rule), never the class name.
func Class(name string, pred func(byte) bool) Expr {
	return &classExpr{name: name, pred: pred}
}

// Seq matches each expression in order, failing if any element fails.
func Seq(items ...Expr) Expr { return &seqExpr{items: items} }

// Choice tries each alternative in order and commits to the first match.
func Choice(items ...Expr) Expr { return &choiceExpr{items: items} }

// Star matches the expression zero or more times.
func Star(item Expr) Expr { return &repExpr{item: item} }

// Plus matches the expression one or more times.
func Plus(item Expr) Expr { return &repExpr{item: item, min: 1} }

// Opt matches the expression zero or one time.
func Opt(item Expr) Expr { return &optExpr{item: item} }

// Not is a negative lookahead: it succeeds, consuming nothing, when the
// expression does not match at the current position.
func Not(item Expr) Expr { return &lookExpr{item: item, negate: true} }

// And is a positive lookahead: it succeeds, consuming nothing, when the
// expression matches at the current position.
func And(item Expr) Expr { return &lookExpr{item: item} }

// Ref matches the named rule.
func Ref(name string) Expr { return &refExpr{name: name} }

// EOF matches only at the end of the input.
func EOF() Expr { return eofExpr{} }

type litExpr struct {
	lit  string
	fold bool
}

func (e *litExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	end := pos + len(e.lit)
	if end > len(st.input) {
		st.fail(pos)
		return pos, false
	}
	got := st.input[pos:end]
	if e.fold {
		if !strings.EqualFold(got, e.lit) {
			st.fail(pos)
			return pos, false
		}
	} else if got != e.lit {
		st.fail(pos)
		return pos, false
	}
	return end, true
}

type classExpr struct {
	name string
	pred func(byte) bool
}

func (e *classExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	if pos >= len(st.input) || !e.pred(st.input[pos]) {
		st.fail(pos)
		return pos, false
	}
	return pos + 1, true
}

type seqExpr struct {
	items []Expr
}

func (e *seqExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	mark := len(*out)
	cur := pos
	for _, item := range e.items {
		next, ok := item.match(st, cur, out)
		if !ok {
			*out = (*out)[:mark]
			return pos, false
		}
		cur = next
	}
	return cur, true
}

type choiceExpr struct {
	items []Expr
}

func (e *choiceExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	for _, item := range e.items {
		mark := len(*out)
		next, ok := item.match(st, pos, out)
		if ok {
			return next, true
		}
		*out = (*out)[:mark]
	}
	return pos, false
}

type repExpr struct {
	item Expr
	min  int
}

func (e *repExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	cur := pos
	count := 0
	for {
		mark := len(*out)
		next, ok := e.item.match(st, cur, out)
		if !ok {
			*out = (*out)[:mark]
			break
		}
		if next == cur {
			// zero-width match; stop to guarantee progress
			*out = (*out)[:mark]
			break
		}
		cur = next
		count++
	}
	if count < e.min {
		return pos, false
	}
	return cur, true
}

type optExpr struct {
	item Expr
}

func (e *optExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	mark := len(*out)
	next, ok := e.item.match(st, pos, out)
	if !ok {
		*out = (*out)[:mark]
		return pos, true
	}
	return next, true
}

type lookExpr struct {
	item   Expr
	negate bool
}

func (e *lookExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	var scratch []*Node
	st.quiet++
	_, ok := e.item.match(st, pos, &scratch)
	st.quiet--
	if ok == e.negate {
		if e.negate {
			st.fail(pos)
		}
		return pos, false
	}
	return pos, true
}

type refExpr struct {
	name string
}

func (e *refExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	rule := st.grammar.rules[e.name]
	st.stack = append(st.stack, rule.Name)
	defer func() { st.stack = st.stack[:len(st.stack)-1] }()

	switch rule.Mode {
	case Silent:
		return rule.Expr.match(st, pos, out)
	case Token:
		var scratch []*Node
		end, ok := rule.Expr.match(st, pos, &scratch)
		if !ok {
			return pos, false
		}
		*out = append(*out, &Node{Rule: rule.Name, Span: Span{Start: pos, End: end}})
		return end, true
	default:
		var children []*Node
		end, ok := rule.Expr.match(st, pos, &children)
		if !ok {
			return pos, false
		}
		*out = append(*out, &Node{
			Rule:     rule.Name,
			Span:     Span{Start: pos, End: end},
			Children: children,
		})
		return end, true
	}
}

type eofExpr struct{}

func (eofExpr) match(st *state, pos int, out *[]*Node) (int, bool) {
	if pos < len(st.input) {
		st.fail(pos)
		return pos, false
	}
	return pos, true
}
