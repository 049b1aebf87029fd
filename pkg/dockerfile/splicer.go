package dockerfile

import (
	"sort"
	"strings"

	"github.com/dockwright/dockwright/pkg/peg"
)

// Edit replaces the text under Span with Text.
type Edit struct {
	Span Span   `json:"span"`
	Text string `json:"text"`
}

// Outcome classifies how an edit batch affected a translated span.
type Outcome int

const (
	// OutcomeUnchanged: the span has the same position in the output, either
	// because no edit moved it or because the edits' length changes cancel.
	OutcomeUnchanged Outcome = iota
	// OutcomeShifted: the span survives at a translated position.
	OutcomeShifted
	// OutcomeInvalidated: the span fell inside a replaced range; the caller
	// must re-parse to obtain fresh spans.
	OutcomeInvalidated
)

// String returns the outcome's name.
func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeShifted:
		return "shifted"
	case OutcomeInvalidated:
		return "invalidated"
	default:
		return "unknown"
	}
}

type appliedEdit struct {
	span  Span
	delta int
}

// Translator maps spans of the original source onto the spliced output.
type Translator struct {
	edits []appliedEdit
	smap  *peg.SourceMap
}

// Splice applies a batch of edits to source and returns the new text plus
// a Translator for re-basing spans of the original.
//
// Edit spans must lie within the source and must not overlap; edits
// touching at a boundary are applied in source order.
func Splice(source string, edits []Edit) (string, *Translator, error) {
	smap := peg.NewSourceMap(source)
	errAt := func(kind ErrorKind, span Span, msg string) error {
		pos := smap.Position(span.Start)
		return &Error{Kind: kind, Span: span, Line: pos.Line, Column: pos.Column, Message: msg}
	}

	sorted := make([]Edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Span.Start != sorted[j].Span.Start {
			return sorted[i].Span.Start < sorted[j].Span.Start
		}
		return sorted[i].Span.End < sorted[j].Span.End
	})

	for i, e := range sorted {
		if e.Span.Start < 0 || e.Span.End > len(source) || e.Span.Start > e.Span.End {
			return "", nil, errAt(ErrEditOutOfBounds, e.Span, "edit span exceeds source")
		}
		if i > 0 && sorted[i-1].Span.End > e.Span.Start {
			return "", nil, errAt(ErrOverlappingEdits, e.Span, "edit spans overlap")
		}
	}

	var sb strings.Builder
	tr := &Translator{smap: smap}
	last := 0
	for _, e := range sorted {
		sb.WriteString(source[last:e.Span.Start])
		sb.WriteString(e.Text)
		last = e.Span.End
		tr.edits = append(tr.edits, appliedEdit{
			span:  e.Span,
			delta: len(e.Text) - e.Span.Len(),
		})
	}
	sb.WriteString(source[last:])

	return sb.String(), tr, nil
}

// Translate re-bases a span of the original source onto the spliced
// output. Spans fully inside a replaced range are invalidated; spans
// overlapping an edit boundary without containing the edit are an error.
func (t *Translator) Translate(span Span) (Span, Outcome, error) {
	start, end := span.Start, span.End

	for _, e := range t.edits {
		switch {
		case e.span.End <= span.Start:
			// entirely before the span
			start += e.delta
			end += e.delta
		case e.span.Start >= span.End:
			// entirely after the span
		case span.Start >= e.span.Start && span.End <= e.span.End:
			// span inside the replaced range
			return Span{}, OutcomeInvalidated, nil
		case e.span.Start >= span.Start && e.span.End <= span.End:
			// edit contained in the span: only the end moves
			end += e.delta
		default:
			pos := t.smap.Position(span.Start)
			return Span{}, 0, &Error{
				Kind:    ErrOverlappingEdits,
				Span:    span,
				Line:    pos.Line,
				Column:  pos.Column,
				Message: "span overlaps an edit boundary",
			}
		}
	}

	if start == span.Start && end == span.End {
		return span, OutcomeUnchanged, nil
	}
	return Span{Start: start, End: end}, OutcomeShifted, nil
}

type spliceOffset struct {
	position int
	offset   int
}

// Splicer applies edits one at a time, adjusting each span for the
// accumulated offsets of earlier splices. Spans handed to Splice must come
// from the originally parsed source.
type Splicer struct {
	// Content is the current text; it starts as the parsed source and is
	// rebuilt by every splice.
	Content string

	offsets []spliceOffset
}

// NewSplicer creates a sequential splicer over source text.
func NewSplicer(source string) *Splicer {
	return &Splicer{Content: source}
}

// adjust shifts a span of the original source past all applied splices.
func (s *Splicer) adjust(span Span) Span {
	start, end := span.Start, span.End
	for _, o := range s.offsets {
		if o.position < start {
			start += o.offset
			end += o.offset
		} else if o.position < end {
			end += o.offset
		}
	}
	return Span{Start: start, End: end}
}

// Splice replaces the text under a span of the originally parsed source.
func (s *Splicer) Splice(span Span, replacement string) error {
	adjusted := s.adjust(span)
	if adjusted.Start < 0 || adjusted.End > len(s.Content) || adjusted.Start > adjusted.End {
		pos := peg.NewSourceMap(s.Content).Position(min(adjusted.Start, len(s.Content)))
		return &Error{
			Kind:    ErrEditOutOfBounds,
			Span:    span,
			Line:    pos.Line,
			Column:  pos.Column,
			Message: "splice span exceeds content",
		}
	}

	s.offsets = append(s.offsets, spliceOffset{
		position: adjusted.Start,
		offset:   len(replacement) - adjusted.Len(),
	})
	s.Content = s.Content[:adjusted.Start] + replacement + s.Content[adjusted.End:]
	return nil
}
