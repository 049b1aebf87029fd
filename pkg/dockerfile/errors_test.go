package dockerfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindString(t *testing.T) {
	kinds := map[ErrorKind]string{
		ErrSyntax:            "SyntaxError",
		ErrUnterminatedQuote: "UnterminatedQuote",
		ErrInvalidEscape:     "InvalidEscape",
		ErrInvalidExecForm:   "InvalidExecForm",
		ErrMissingArgument:   "MissingArgument",
		ErrInvalidFlag:       "InvalidFlag",
		ErrOverlappingEdits:  "OverlappingEdits",
		ErrEditOutOfBounds:   "EditOutOfBounds",
	}
	for kind, want := range kinds {
		assert.Equal(t, want, kind.String())
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Kind:    ErrMissingArgument,
		Span:    Span{Start: 5, End: 5},
		Line:    2,
		Column:  1,
		Message: "FROM requires an image reference",
	}
	assert.Equal(t,
		"MissingArgument at line 2, column 1: FROM requires an image reference",
		err.Error())

	serr := &Error{Kind: ErrSyntax, Line: 1, Column: 3, Message: "invalid instruction", Expected: []string{"from", "misc"}}
	assert.Contains(t, serr.Error(), "expected from, misc")
}

func TestParseErrorsCarrySpans(t *testing.T) {
	for _, input := range []string{
		"FROM",
		"COPY /only-one",
		`SHELL not-an-array`,
		"FROM a\nENV x=\"unterminated",
	} {
		_, err := Parse(input)
		if assert.Error(t, err, "input %q", input) {
			perr := err.(*Error)
			assert.GreaterOrEqual(t, perr.Span.Start, 0)
			assert.Greater(t, perr.Line, 0)
			assert.Greater(t, perr.Column, 0)
		}
	}
}
