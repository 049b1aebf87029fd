package dockerfile

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dockwright/dockwright/pkg/peg"
)

// Flag names must be lowercase words, dashes allowed after the first
// character. Unknown names are accepted; malformed ones are not.
var flagNameRe = regexp.MustCompile(`^[a-z][a-z-]*$`)

// decoder converts parse-tree fragments into typed instruction values.
type decoder struct {
	source string
	smap   *peg.SourceMap
	escape byte
}

func (d *decoder) text(n *peg.Node) string {
	return n.Text(d.source)
}

func (d *decoder) spanned(n *peg.Node) SpannedString {
	return SpannedString{Span: n.Span, Value: d.text(n)}
}

func (d *decoder) errAt(kind ErrorKind, rule string, span Span, format string, args ...interface{}) *Error {
	pos := d.smap.Position(span.Start)
	return &Error{
		Kind:    kind,
		Rule:    rule,
		Span:    span,
		Line:    pos.Line,
		Column:  pos.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

// keyword returns the instruction's keyword token in canonical uppercase
// form; the span still covers the original casing.
func (d *decoder) keyword(n *peg.Node) SpannedString {
	for _, c := range n.Children {
		if strings.HasSuffix(c.Rule, "_kw") {
			return SpannedString{Span: c.Span, Value: strings.ToUpper(d.text(c))}
		}
	}
	return SpannedString{}
}

func (d *decoder) decodeInstruction(n *peg.Node) (Instruction, *Error) {
	switch n.Rule {
	case "from":
		return d.decodeFrom(n)
	case "arg":
		return d.decodeArg(n)
	case "env":
		return d.decodeEnv(n)
	case "label":
		return d.decodeLabel(n)
	case "run":
		return d.decodeRun(n)
	case "cmd":
		return d.decodeCmd(n)
	case "entrypoint":
		return d.decodeEntrypoint(n)
	case "shell":
		return d.decodeShell(n)
	case "copy":
		return d.decodeCopy(n)
	case "add":
		return d.decodeAdd(n)
	case "expose":
		return d.decodeExpose(n)
	case "user":
		return d.decodeUser(n)
	case "workdir":
		return d.decodeWorkdir(n)
	case "volume":
		return d.decodeVolume(n)
	case "stopsignal":
		return d.decodeStopsignal(n)
	case "healthcheck":
		return d.decodeHealthcheck(n)
	case "misc":
		return d.decodeMisc(n)
	default:
		return nil, d.errAt(ErrSyntax, n.Rule, n.Span, "unexpected rule %q", n.Rule)
	}
}

func (d *decoder) decodeFrom(n *peg.Node) (Instruction, *Error) {
	ins := &FromInstruction{Span: n.Span, Keyword: d.keyword(n)}

	img := n.Child("from_image")
	if img == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "FROM requires an image reference")
	}
	ins.Image = d.spanned(img)
	ins.ImageParsed = ParseImageRef(ins.Image.Value)

	if alias := n.Child("from_alias"); alias != nil {
		s := d.spanned(alias)
		ins.Alias = &s
	}
	return ins, nil
}

func (d *decoder) decodeArg(n *peg.Node) (Instruction, *Error) {
	ins := &ArgInstruction{Span: n.Span, Keyword: d.keyword(n)}

	name := n.Child("arg_name")
	if name == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "ARG requires a name")
	}
	ins.Name = d.spanned(name)

	for _, c := range n.Children {
		switch c.Rule {
		case "dquoted", "squoted", "unquoted":
			v, err := d.value(c)
			if err != nil {
				return nil, err
			}
			ins.Value = &v
		}
	}
	return ins, nil
}

func (d *decoder) decodeEnv(n *peg.Node) (Instruction, *Error) {
	ins := &EnvInstruction{Span: n.Span, Keyword: d.keyword(n)}

	if pairs := n.Find("env_pair"); len(pairs) > 0 {
		for _, p := range pairs {
			kv, err := d.decodePair(p, "env_name")
			if err != nil {
				return nil, err
			}
			ins.Vars = append(ins.Vars, kv)
		}
		return ins, nil
	}

	single := n.Child("env_single")
	if single == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "ENV requires a key and a value")
	}
	kv, err := d.decodeSingle(single, "env_name")
	if err != nil {
		return nil, err
	}
	ins.Vars = []KeyValue{kv}
	return ins, nil
}

func (d *decoder) decodeLabel(n *peg.Node) (Instruction, *Error) {
	ins := &LabelInstruction{Span: n.Span, Keyword: d.keyword(n)}

	if pairs := n.Find("label_pair"); len(pairs) > 0 {
		for _, p := range pairs {
			kv, err := d.decodePair(p, "label_name")
			if err != nil {
				return nil, err
			}
			ins.Labels = append(ins.Labels, kv)
		}
		return ins, nil
	}

	single := n.Child("label_single")
	if single == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "LABEL requires a key and a value")
	}
	kv, err := d.decodeSingle(single, "label_name")
	if err != nil {
		return nil, err
	}
	ins.Labels = []KeyValue{kv}
	return ins, nil
}

// decodePair decodes a KEY=VALUE pair node: the key (first child) followed
// by a bare or quoted value (second child).
func (d *decoder) decodePair(n *peg.Node, nameRule string) (KeyValue, *Error) {
	if len(n.Children) < 2 {
		return KeyValue{}, d.errAt(ErrSyntax, n.Rule, n.Span, "malformed key/value pair")
	}
	key, err := d.keyString(n.Children[0], nameRule)
	if err != nil {
		return KeyValue{}, err
	}
	value, err := d.value(n.Children[1])
	if err != nil {
		return KeyValue{}, err
	}
	return KeyValue{Span: n.Span, Key: key, Value: value}, nil
}

// decodeSingle decodes a single-pair node: KEY then the raw remainder of
// the logical line (or a quoted string spanning it).
func (d *decoder) decodeSingle(n *peg.Node, nameRule string) (KeyValue, *Error) {
	if len(n.Children) < 2 {
		return KeyValue{}, d.errAt(ErrMissingArgument, n.Rule, n.Span, "missing value")
	}
	key, err := d.keyString(n.Children[0], nameRule)
	if err != nil {
		return KeyValue{}, err
	}

	vnode := n.Children[1]
	var value SpannedString
	if vnode.Rule == "breakable" {
		raw := d.cleanLineBreaks(d.text(vnode))
		value = SpannedString{Span: vnode.Span, Value: strings.TrimRight(raw, " \t")}
	} else {
		value, err = d.value(vnode)
		if err != nil {
			return KeyValue{}, err
		}
	}
	return KeyValue{Span: n.Span, Key: key, Value: value}, nil
}

func (d *decoder) keyString(n *peg.Node, nameRule string) (SpannedString, *Error) {
	switch n.Rule {
	case "dquoted", "squoted":
		return d.value(n)
	case nameRule:
		return d.spanned(n), nil
	default:
		return SpannedString{}, d.errAt(ErrSyntax, n.Rule, n.Span, "unexpected token %q", n.Rule)
	}
}

// value unescapes a bare or quoted value token.
func (d *decoder) value(n *peg.Node) (SpannedString, *Error) {
	raw := d.text(n)
	switch n.Rule {
	case "dquoted":
		v, err := d.unquote(raw, '"', n.Span)
		if err != nil {
			return SpannedString{}, err
		}
		return SpannedString{Span: n.Span, Value: v}, nil
	case "squoted":
		v, err := d.unquote(raw, '\'', n.Span)
		if err != nil {
			return SpannedString{}, err
		}
		return SpannedString{Span: n.Span, Value: v}, nil
	case "unquoted":
		return SpannedString{Span: n.Span, Value: d.unescapeBare(raw)}, nil
	default:
		return SpannedString{}, d.errAt(ErrSyntax, n.Rule, n.Span, "unexpected token %q", n.Rule)
	}
}

func (d *decoder) decodeRun(n *peg.Node) (Instruction, *Error) {
	ins := &RunInstruction{Span: n.Span, Keyword: d.keyword(n)}
	shell, exec, err := d.commandBody(n)
	if err != nil {
		return nil, err
	}
	if shell == nil && exec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "RUN requires a command")
	}
	ins.Shell, ins.Exec = shell, exec
	return ins, nil
}

func (d *decoder) decodeCmd(n *peg.Node) (Instruction, *Error) {
	ins := &CmdInstruction{Span: n.Span, Keyword: d.keyword(n)}
	shell, exec, err := d.commandBody(n)
	if err != nil {
		return nil, err
	}
	if shell == nil && exec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "CMD requires a command")
	}
	ins.Shell, ins.Exec = shell, exec
	return ins, nil
}

func (d *decoder) decodeEntrypoint(n *peg.Node) (Instruction, *Error) {
	ins := &EntrypointInstruction{Span: n.Span, Keyword: d.keyword(n)}
	shell, exec, err := d.commandBody(n)
	if err != nil {
		return nil, err
	}
	if shell == nil && exec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "ENTRYPOINT requires a command")
	}
	ins.Shell, ins.Exec = shell, exec
	return ins, nil
}

func (d *decoder) decodeShell(n *peg.Node) (Instruction, *Error) {
	ins := &ShellInstruction{Span: n.Span, Keyword: d.keyword(n)}
	shell, exec, err := d.commandBody(n)
	if err != nil {
		return nil, err
	}
	if shell != nil {
		return nil, d.errAt(ErrInvalidExecForm, n.Rule, shell.Span,
			"SHELL requires the exec (JSON array) form")
	}
	if exec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "SHELL requires a command")
	}
	ins.Exec = *exec
	return ins, nil
}

// commandBody extracts a RUN-style body: exec form if the argument parses
// as a JSON string array, shell form otherwise, or neither when absent.
func (d *decoder) commandBody(n *peg.Node) (*ShellForm, *ExecForm, *Error) {
	if ef := n.Child("exec_form"); ef != nil {
		exec := &ExecForm{Span: ef.Span}
		for _, s := range ef.Find("exec_str") {
			v, err := d.execString(s)
			if err != nil {
				return nil, nil, err
			}
			exec.Args = append(exec.Args, SpannedString{Span: s.Span, Value: v})
		}
		return nil, exec, nil
	}
	if sf := n.Child("shell_form"); sf != nil {
		return &ShellForm{Span: sf.Span, Command: d.cleanLineBreaks(d.text(sf))}, nil, nil
	}
	return nil, nil, nil
}

func (d *decoder) decodeCopy(n *peg.Node) (Instruction, *Error) {
	ins := &CopyInstruction{Span: n.Span, Keyword: d.keyword(n)}
	flags, err := d.flags(n)
	if err != nil {
		return nil, err
	}
	sources, dest, err := d.paths(n)
	if err != nil {
		return nil, err
	}
	ins.Flags, ins.Sources, ins.Destination = flags, sources, dest
	return ins, nil
}

func (d *decoder) decodeAdd(n *peg.Node) (Instruction, *Error) {
	ins := &AddInstruction{Span: n.Span, Keyword: d.keyword(n)}
	flags, err := d.flags(n)
	if err != nil {
		return nil, err
	}
	sources, dest, err := d.paths(n)
	if err != nil {
		return nil, err
	}
	ins.Flags, ins.Sources, ins.Destination = flags, sources, dest
	return ins, nil
}

// flags decodes the node's --name=value children and validates their
// names. Unknown names are retained.
func (d *decoder) flags(n *peg.Node) ([]Flag, *Error) {
	var flags []Flag
	for _, f := range n.Find("flag") {
		name := f.Child("flag_name")
		if name == nil {
			return nil, d.errAt(ErrInvalidFlag, f.Rule, f.Span, "flag requires a name")
		}
		if !flagNameRe.MatchString(d.text(name)) {
			return nil, d.errAt(ErrInvalidFlag, f.Rule, name.Span,
				"invalid flag name %q", d.text(name))
		}
		var value *SpannedString
		for _, c := range f.Children {
			switch c.Rule {
			case "dquoted", "squoted", "unquoted":
				v, err := d.value(c)
				if err != nil {
					return nil, err
				}
				value = &v
			}
		}
		if value == nil {
			return nil, d.errAt(ErrInvalidFlag, f.Rule, f.Span,
				"flag %q requires a value", d.text(name))
		}
		flags = append(flags, Flag{Span: f.Span, Name: d.spanned(name), Value: *value})
	}
	return flags, nil
}

// paths collects the node's path tokens; the final token is the
// destination, everything before it a source.
func (d *decoder) paths(n *peg.Node) ([]SpannedString, SpannedString, *Error) {
	var paths []SpannedString
	for _, c := range n.Children {
		switch c.Rule {
		case "dquoted":
			v, err := d.value(c)
			if err != nil {
				return nil, SpannedString{}, err
			}
			paths = append(paths, v)
		case "path_token":
			paths = append(paths, d.spanned(c))
		}
	}
	if len(paths) < 2 {
		return nil, SpannedString{}, d.errAt(ErrMissingArgument, n.Rule, n.Span,
			"requires at least one source and a destination")
	}
	return paths[:len(paths)-1], paths[len(paths)-1], nil
}

func (d *decoder) decodeExpose(n *peg.Node) (Instruction, *Error) {
	ins := &ExposeInstruction{Span: n.Span, Keyword: d.keyword(n)}
	for _, p := range n.Find("expose_port") {
		raw := d.text(p)
		port := Port{Span: p.Span, Raw: raw, Port: raw}
		if i := strings.IndexByte(raw, '/'); i >= 0 {
			port.Port, port.Proto = raw[:i], raw[i+1:]
		}
		ins.Ports = append(ins.Ports, port)
	}
	if len(ins.Ports) == 0 {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "EXPOSE requires at least one port")
	}
	return ins, nil
}

func (d *decoder) decodeUser(n *peg.Node) (Instruction, *Error) {
	ins := &UserInstruction{Span: n.Span, Keyword: d.keyword(n)}
	spec := n.Child("user_spec")
	if spec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "USER requires a user")
	}
	raw := d.text(spec)
	if i := strings.IndexByte(raw, ':'); i >= 0 {
		ins.User = SpannedString{
			Span:  Span{Start: spec.Span.Start, End: spec.Span.Start + i},
			Value: raw[:i],
		}
		group := SpannedString{
			Span:  Span{Start: spec.Span.Start + i + 1, End: spec.Span.End},
			Value: raw[i+1:],
		}
		ins.Group = &group
	} else {
		ins.User = d.spanned(spec)
	}
	return ins, nil
}

func (d *decoder) decodeWorkdir(n *peg.Node) (Instruction, *Error) {
	ins := &WorkdirInstruction{Span: n.Span, Keyword: d.keyword(n)}
	path := n.Child("workdir_path")
	if path == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "WORKDIR requires a path")
	}
	raw := d.cleanLineBreaks(d.text(path))
	ins.Path = SpannedString{Span: path.Span, Value: strings.TrimRight(raw, " \t")}
	return ins, nil
}

func (d *decoder) decodeVolume(n *peg.Node) (Instruction, *Error) {
	ins := &VolumeInstruction{Span: n.Span, Keyword: d.keyword(n)}
	for _, c := range n.Children {
		switch c.Rule {
		case "dquoted":
			v, err := d.value(c)
			if err != nil {
				return nil, err
			}
			ins.Paths = append(ins.Paths, v)
		case "path_token":
			ins.Paths = append(ins.Paths, d.spanned(c))
		}
	}
	if len(ins.Paths) == 0 {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "VOLUME requires at least one path")
	}
	return ins, nil
}

func (d *decoder) decodeStopsignal(n *peg.Node) (Instruction, *Error) {
	ins := &StopsignalInstruction{Span: n.Span, Keyword: d.keyword(n)}
	sig := n.Child("signal")
	if sig == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "STOPSIGNAL requires a signal")
	}
	ins.Signal = d.spanned(sig)
	return ins, nil
}

func (d *decoder) decodeHealthcheck(n *peg.Node) (Instruction, *Error) {
	ins := &HealthcheckInstruction{Span: n.Span, Keyword: d.keyword(n)}

	if n.Child("hc_none") != nil {
		ins.None = true
		return ins, nil
	}
	if n.Child("cmd_kw") == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "HEALTHCHECK requires NONE or CMD")
	}

	opts, err := d.flags(n)
	if err != nil {
		return nil, err
	}
	ins.Options = opts

	shell, exec, err := d.commandBody(n)
	if err != nil {
		return nil, err
	}
	if shell == nil && exec == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span, "HEALTHCHECK CMD requires a command")
	}
	ins.Shell, ins.Exec = shell, exec
	return ins, nil
}

func (d *decoder) decodeMisc(n *peg.Node) (Instruction, *Error) {
	kw := n.Child("misc_kw")
	if kw == nil {
		return nil, d.errAt(ErrSyntax, n.Rule, n.Span, "missing instruction keyword")
	}
	ins := &MiscInstruction{
		Span:    n.Span,
		Keyword: SpannedString{Span: kw.Span, Value: strings.ToUpper(d.text(kw))},
	}
	args := n.Child("misc_args")
	if args == nil {
		return nil, d.errAt(ErrMissingArgument, n.Rule, n.Span,
			"%s requires arguments", ins.Keyword.Value)
	}
	ins.Arguments = SpannedString{Span: args.Span, Value: d.cleanLineBreaks(d.text(args))}
	return ins, nil
}

// unquote removes the surrounding quotes and resolves escapes. Escaped
// line breaks are elided; \n, \r, and \t translate; any other escaped
// character passes through verbatim.
func (d *decoder) unquote(s string, quote byte, span Span) (string, *Error) {
	if len(s) == 0 || s[0] != quote {
		return "", d.errAt(ErrUnterminatedQuote, "", span, "malformed quoted string")
	}
	var sb strings.Builder
	closed := false
	i := 1
	for i < len(s) {
		c := s[i]
		if c == d.escape {
			if i+1 >= len(s) {
				break
			}
			next := s[i+1]
			switch {
			case next == '\n':
				i += 2
				continue
			case next == '\r' && i+2 < len(s) && s[i+2] == '\n':
				i += 3
				continue
			case next == 'n':
				sb.WriteByte('\n')
			case next == 'r':
				sb.WriteByte('\r')
			case next == 't':
				sb.WriteByte('\t')
			default:
				sb.WriteByte(next)
			}
			i += 2
			continue
		}
		if c == quote {
			closed = true
			break
		}
		sb.WriteByte(c)
		i++
	}
	if !closed {
		return "", d.errAt(ErrUnterminatedQuote, "", span, "missing closing %q", string(quote))
	}
	return sb.String(), nil
}

// unescapeBare resolves escape pairs in a bare value: the escape character
// drops and the following character is kept verbatim.
func (d *decoder) unescapeBare(s string) string {
	if !strings.Contains(s, string(d.escape)) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == d.escape && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// execString unescapes one exec-form string. Only the JSON escapes \",
// \\, \n, \r, and \t are allowed.
func (d *decoder) execString(n *peg.Node) (string, *Error) {
	s := d.text(n)
	var sb strings.Builder
	for i := 1; i < len(s)-1; i++ {
		c := s[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case '"':
			sb.WriteByte('"')
		case '\\':
			sb.WriteByte('\\')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		default:
			span := Span{Start: n.Span.Start + i - 1, End: n.Span.Start + i + 1}
			return "", d.errAt(ErrInvalidEscape, n.Rule, span,
				"invalid escape sequence %q", s[i-1:i+1])
		}
	}
	return sb.String(), nil
}

// cleanLineBreaks removes escaped line breaks from raw instruction text. A
// dangling escape at end of input is dropped.
func (d *decoder) cleanLineBreaks(s string) string {
	if !strings.Contains(s, string(d.escape)) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == d.escape {
			if i+1 < len(s) && s[i+1] == '\n' {
				i++
				continue
			}
			if i+2 < len(s) && s[i+1] == '\r' && s[i+2] == '\n' {
				i += 2
				continue
			}
			if i+1 == len(s) {
				break
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
