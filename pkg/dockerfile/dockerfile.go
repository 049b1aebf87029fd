package dockerfile

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/dockwright/dockwright/pkg/peg"
)

// Dockerfile is a parsed build file: the ordered list of all instructions,
// with the ARG instructions preceding the first FROM broken out as global
// args. Stages are derived on demand with Stages.
//
// A Dockerfile is immutable after parsing. Edits are expressed through the
// splicer, which produces a new source string for re-parsing.
type Dockerfile struct {
	// Content is the parsed source text. Instruction spans index into it.
	Content string

	// Escape is the effective escape character, either from an `# escape=`
	// directive or the default backslash.
	Escape byte

	// GlobalArgs lists the ARG instructions appearing before the first
	// FROM. They are also present in Instructions.
	GlobalArgs []*ArgInstruction

	// Instructions is the flat ordered instruction list.
	Instructions []Instruction

	smap *peg.SourceMap
}

// Parse parses Dockerfile source text.
//
// A leading byte-order mark is stripped; spans index into the stripped
// source, which Content retains. All failures are reported as *Error.
func Parse(input string) (*Dockerfile, error) {
	input = strings.TrimPrefix(input, "\uFEFF")
	escape := detectEscape(input)
	smap := peg.NewSourceMap(input)

	root, err := grammarFor(escape).Parse(input)
	if err != nil {
		perr := err.(*peg.ParseError)
		return nil, &Error{
			Kind:     ErrSyntax,
			Span:     Span{Start: perr.Offset, End: perr.Offset},
			Line:     perr.Line,
			Column:   perr.Column,
			Message:  "invalid instruction",
			Expected: perr.Expected,
		}
	}

	d := &decoder{source: input, smap: smap, escape: escape}
	df := &Dockerfile{Content: input, Escape: escape, smap: smap}

	fromIndex := 0
	fromFound := false
	for _, node := range root.Children {
		ins, derr := d.decodeInstruction(node)
		if derr != nil {
			return nil, derr
		}

		switch v := ins.(type) {
		case *FromInstruction:
			v.Index = fromIndex
			fromIndex++
			fromFound = true
		case *ArgInstruction:
			if !fromFound {
				df.GlobalArgs = append(df.GlobalArgs, v)
			}
		default:
			if !fromFound {
				return nil, d.errAt(ErrSyntax, node.Rule, ins.GetSpan(),
					"%s instruction before the first FROM", ins.GetCmd())
			}
		}
		df.Instructions = append(df.Instructions, ins)
	}

	return df, nil
}

// ParseBytes parses Dockerfile source bytes.
func ParseBytes(content []byte) (*Dockerfile, error) {
	return Parse(string(content))
}

// FromReader reads and parses a Dockerfile.
func FromReader(r io.Reader) (*Dockerfile, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading dockerfile")
	}
	return Parse(string(content))
}

// Position converts a byte offset of Content into a line/column pair.
func (d *Dockerfile) Position(offset int) peg.Position {
	return d.smap.Position(offset)
}

// Stages splits the Dockerfile into its build stages.
func (d *Dockerfile) Stages() *Stages {
	return NewStages(d)
}

// Splicer creates a sequential splicer over the Dockerfile's content.
func (d *Dockerfile) Splicer() *Splicer {
	return &Splicer{Content: d.Content}
}
