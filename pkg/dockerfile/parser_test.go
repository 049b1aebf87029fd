package dockerfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, input string) *Dockerfile {
	t.Helper()
	d, err := Parse(input)
	require.NoError(t, err)
	return d
}

// stagePrefix opens a build stage. Only ARG may precede the first FROM, so
// other instructions are parsed after it.
const stagePrefix = "FROM scratch\n"

// parseOne parses a single instruction. Instructions other than FROM and
// ARG are parsed after stagePrefix, which shifts their spans by
// len(stagePrefix).
func parseOne[T Instruction](t *testing.T, input string) T {
	t.Helper()
	want := 1
	var zero T
	switch any(zero).(type) {
	case *FromInstruction, *ArgInstruction:
	default:
		input = stagePrefix + input
		want = 2
	}
	d := mustParse(t, input)
	require.Len(t, d.Instructions, want)
	ins, ok := d.Instructions[want-1].(T)
	require.True(t, ok, "instruction is %T", d.Instructions[want-1])
	return ins
}

func errKind(t *testing.T, input string) ErrorKind {
	t.Helper()
	_, err := Parse(input)
	require.Error(t, err)
	perr, ok := err.(*Error)
	require.True(t, ok, "error is %T: %v", err, err)
	require.Greater(t, perr.Line, 0)
	require.Greater(t, perr.Column, 0)
	return perr.Kind
}

func TestParseFrom(t *testing.T) {
	from := parseOne[*FromInstruction](t, "FROM alpine:3.10")

	assert.Equal(t, Span{Start: 0, End: 16}, from.Span)
	assert.Equal(t, Span{Start: 0, End: 4}, from.Keyword.Span)
	assert.Equal(t, "FROM", from.Keyword.Value)
	assert.Equal(t, SpannedString{Span: Span{Start: 5, End: 16}, Value: "alpine:3.10"}, from.Image)
	assert.Equal(t, ImageRef{Image: "alpine", Tag: "3.10"}, from.ImageParsed)
	assert.Equal(t, 0, from.Index)
	assert.Nil(t, from.Alias)
}

func TestParseFromWithAlias(t *testing.T) {
	from := parseOne[*FromInstruction](t, "FROM golang:1.22 AS builder")

	require.NotNil(t, from.Alias)
	assert.Equal(t, "builder", from.Alias.Value)
	assert.Equal(t, Span{Start: 20, End: 27}, from.Alias.Span)
}

func TestParseFromRegistryWithPort(t *testing.T) {
	from := parseOne[*FromInstruction](t, "FROM foo:443/bar")

	assert.Equal(t, ImageRef{Registry: "foo:443", Image: "bar"}, from.ImageParsed)
}

func TestParseFromErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
	}{
		{"missing image", "FROM", ErrMissingArgument},
		{"missing alias", "FROM alpine:3.10 as", ErrSyntax},
		{"two froms on one line", "from alpine:3.10 from example", ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errKind(t, tt.input))
		})
	}
}

func TestKeywordCaseInsensitive(t *testing.T) {
	for _, input := range []string{"from alpine", "From alpine", "FROM alpine"} {
		from := parseOne[*FromInstruction](t, input)
		assert.Equal(t, "FROM", from.Keyword.Value)
		assert.Equal(t, "FROM", from.GetCmd())
		// original casing is recoverable through the keyword span
		d := mustParse(t, input)
		kw := d.Content[from.Keyword.Span.Start:from.Keyword.Span.End]
		assert.Equal(t, input[:4], kw)
	}
}

func TestParseArg(t *testing.T) {
	tests := []struct {
		name  string
		input string
		arg   string
		value *string
	}{
		{"bare", "ARG VERSION", "VERSION", nil},
		{"with default", "ARG VERSION=1.2", "VERSION", ptr("1.2")},
		{"empty default", "ARG VERSION=", "VERSION", ptr("")},
		{"quoted default", `ARG GREETING="hello world"`, "GREETING", ptr("hello world")},
		{"single quoted", `ARG GREETING='hi'`, "GREETING", ptr("hi")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			arg := parseOne[*ArgInstruction](t, tt.input)
			assert.Equal(t, tt.arg, arg.Name.Value)
			if tt.value == nil {
				assert.Nil(t, arg.Value)
			} else {
				require.NotNil(t, arg.Value)
				assert.Equal(t, *tt.value, arg.Value.Value)
			}
		})
	}
}

func ptr(s string) *string { return &s }

func TestParseEnvPairs(t *testing.T) {
	env := parseOne[*EnvInstruction](t, "ENV foo=bar baz=qux")

	require.Len(t, env.Vars, 2)
	assert.Equal(t, "foo", env.Vars[0].Key.Value)
	assert.Equal(t, "bar", env.Vars[0].Value.Value)
	assert.Equal(t, "baz", env.Vars[1].Key.Value)
	assert.Equal(t, "qux", env.Vars[1].Value.Value)
}

func TestParseEnvSingle(t *testing.T) {
	env := parseOne[*EnvInstruction](t, "ENV foo bar baz   qux")

	require.Len(t, env.Vars, 1)
	assert.Equal(t, "foo", env.Vars[0].Key.Value)
	// internal spacing is preserved verbatim
	assert.Equal(t, "bar baz   qux", env.Vars[0].Value.Value)
}

func TestParseEnvSpans(t *testing.T) {
	env := parseOne[*EnvInstruction](t, "env foo=bar")
	off := len(stagePrefix)

	assert.Equal(t, Span{Start: off + 0, End: off + 11}, env.Span)
	require.Len(t, env.Vars, 1)
	assert.Equal(t, Span{Start: off + 4, End: off + 11}, env.Vars[0].Span)
	assert.Equal(t, Span{Start: off + 4, End: off + 7}, env.Vars[0].Key.Span)
	assert.Equal(t, Span{Start: off + 8, End: off + 11}, env.Vars[0].Value.Span)
}

func TestParseEnvQuoting(t *testing.T) {
	tests := []struct {
		name  string
		input string
		key   string
		value string
	}{
		{"double quoted", `ENV FOO_BAR="baz"`, "FOO_BAR", "baz"},
		{"single quoted", `ENV foo='bar'`, "foo", "bar"},
		{"escaped double quote", `ENV foo="bar\"baz"`, "foo", `bar"baz`},
		{"escaped single quote", `ENV foo='bar\'baz'`, "foo", "bar'baz"},
		{"quoted with spaces", `ENV greeting="hello world"`, "greeting", "hello world"},
		{"quoted single mode", `ENV FOO_BAR "baz"`, "FOO_BAR", "baz"},
		{"escaped space in bare", `ENV foo=bar\ baz`, "foo", "bar baz"},
		{"empty value", "ENV foo=", "foo", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := parseOne[*EnvInstruction](t, tt.input)
			require.Len(t, env.Vars, 1)
			assert.Equal(t, tt.key, env.Vars[0].Key.Value)
			assert.Equal(t, tt.value, env.Vars[0].Value.Value)
		})
	}
}

func TestParseEnvErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
	}{
		{"no arguments", "ENV", ErrMissingArgument},
		{"missing value", "ENV foo", ErrMissingArgument},
		{"unquoted trailing text", `ENV foo="bar"bar`, ErrSyntax},
		{"unterminated quote", `ENV foo="bar`, ErrUnterminatedQuote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errKind(t, tt.input))
		})
	}
}

func TestParseEnvMultiline(t *testing.T) {
	env := parseOne[*EnvInstruction](t, "env foo=a \\\n  bar=b \\\n  baz=c \\\n")

	require.Len(t, env.Vars, 3)
	assert.Equal(t, "a", env.Vars[0].Value.Value)
	assert.Equal(t, "b", env.Vars[1].Value.Value)
	assert.Equal(t, "c", env.Vars[2].Value.Value)
}

func TestParseLabel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][2]string
	}{
		{"basic", "LABEL foo=bar", [][2]string{{"foo", "bar"}}},
		{"dotted name", "LABEL foo.bar=baz", [][2]string{{"foo.bar", "baz"}}},
		{"quoted name and value", `LABEL "foo.bar"="baz qux"`, [][2]string{{"foo.bar", "baz qux"}}},
		{"multiple", `LABEL foo=bar baz="qux" "quux quuz"="corge grault"`, [][2]string{
			{"foo", "bar"}, {"baz", "qux"}, {"quux quuz", "corge grault"},
		}},
		{"continuation", "LABEL foo=bar \\\n      baz=qux", [][2]string{
			{"foo", "bar"}, {"baz", "qux"},
		}},
		{"single mode", "LABEL maintainer some body <somebody@example.com>", [][2]string{
			{"maintainer", "some body <somebody@example.com>"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label := parseOne[*LabelInstruction](t, tt.input)
			require.Len(t, label.Labels, len(tt.want))
			for i, kv := range tt.want {
				assert.Equal(t, kv[0], label.Labels[i].Key.Value)
				assert.Equal(t, kv[1], label.Labels[i].Value.Value)
			}
		})
	}
}

func TestParseRunShellForm(t *testing.T) {
	run := parseOne[*RunInstruction](t, `RUN echo "hello world"`)

	require.NotNil(t, run.Shell)
	assert.Nil(t, run.Exec)
	assert.Equal(t, `echo "hello world"`, run.Shell.Command)
	off := len(stagePrefix)
	assert.Equal(t, Span{Start: off + 4, End: off + 22}, run.Shell.Span)
}

func TestParseRunExecForm(t *testing.T) {
	run := parseOne[*RunInstruction](t, `RUN ["foo", "bar", "echo \"hello\""]`)

	require.NotNil(t, run.Exec)
	assert.Nil(t, run.Shell)
	require.Len(t, run.Exec.Args, 3)
	assert.Equal(t, "foo", run.Exec.Args[0].Value)
	assert.Equal(t, "bar", run.Exec.Args[1].Value)
	assert.Equal(t, `echo "hello"`, run.Exec.Args[2].Value)
}

func TestParseRunMultiline(t *testing.T) {
	run := parseOne[*RunInstruction](t, "run echo \\\n        \"hello world\"")

	require.NotNil(t, run.Shell)
	assert.Equal(t, "echo         \"hello world\"", run.Shell.Command)
}

func TestParseRunExecMultiline(t *testing.T) {
	run := parseOne[*RunInstruction](t, "run [\\\n  \"echo\", \\\n  \"hello world\"\\\n]")

	require.NotNil(t, run.Exec)
	require.Len(t, run.Exec.Args, 2)
	assert.Equal(t, "echo", run.Exec.Args[0].Value)
	assert.Equal(t, "hello world", run.Exec.Args[1].Value)
}

func TestExecFormDetection(t *testing.T) {
	// a body that does not parse as a JSON string array falls back to
	// shell form
	tests := []struct {
		name  string
		input string
		exec  bool
	}{
		{"valid array", `CMD ["a", "b"]`, true},
		{"empty array", `CMD []`, true},
		{"missing comma", `CMD ["a" "b"]`, false},
		{"unquoted element", `CMD [a, b]`, false},
		{"unterminated array", `CMD ["a"`, false},
		{"trailing text", `CMD ["a"] && echo b`, false},
		{"plain shell", `CMD echo hi`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := parseOne[*CmdInstruction](t, tt.input)
			if tt.exec {
				assert.NotNil(t, cmd.Exec)
				assert.Nil(t, cmd.Shell)
			} else {
				assert.NotNil(t, cmd.Shell)
				assert.Nil(t, cmd.Exec)
			}
		})
	}
}

func TestParseShellInstruction(t *testing.T) {
	shell := parseOne[*ShellInstruction](t, `SHELL ["/bin/bash", "-c"]`)

	require.Len(t, shell.Exec.Args, 2)
	assert.Equal(t, "/bin/bash", shell.Exec.Args[0].Value)

	assert.Equal(t, ErrInvalidExecForm, errKind(t, "SHELL /bin/sh -c"))
	assert.Equal(t, ErrMissingArgument, errKind(t, "SHELL"))
}

func TestParseExecEscapes(t *testing.T) {
	run := parseOne[*RunInstruction](t, `RUN ["a\nb\tc\\d"]`)
	require.NotNil(t, run.Exec)
	assert.Equal(t, "a\nb\tc\\d", run.Exec.Args[0].Value)

	assert.Equal(t, ErrInvalidEscape, errKind(t, `RUN ["a\qb"]`))
}

func TestParseCopy(t *testing.T) {
	copy := parseOne[*CopyInstruction](t, "COPY --from=builder /a /b /dst/")

	require.Len(t, copy.Flags, 1)
	assert.Equal(t, "from", copy.Flags[0].Name.Value)
	assert.Equal(t, "builder", copy.Flags[0].Value.Value)

	require.Len(t, copy.Sources, 2)
	assert.Equal(t, "/a", copy.Sources[0].Value)
	assert.Equal(t, "/b", copy.Sources[1].Value)
	// the trailing slash is meaningful and preserved
	assert.Equal(t, "/dst/", copy.Destination.Value)
}

func TestParseCopyVariants(t *testing.T) {
	t.Run("quoted path", func(t *testing.T) {
		copy := parseOne[*CopyInstruction](t, `COPY "my file.txt" /app/`)
		require.Len(t, copy.Sources, 1)
		assert.Equal(t, "my file.txt", copy.Sources[0].Value)
	})

	t.Run("unknown flag retained", func(t *testing.T) {
		copy := parseOne[*CopyInstruction](t, "COPY --link=true a b")
		require.Len(t, copy.Flags, 1)
		assert.Equal(t, "link", copy.Flags[0].Name.Value)
	})

	t.Run("continuation", func(t *testing.T) {
		copy := parseOne[*CopyInstruction](t, "copy foo \\\nbar")
		require.Len(t, copy.Sources, 1)
		assert.Equal(t, "foo", copy.Sources[0].Value)
		assert.Equal(t, "bar", copy.Destination.Value)
	})
}

func TestParseCopyErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  ErrorKind
	}{
		{"single path", "COPY /a", ErrMissingArgument},
		{"no paths", "COPY", ErrMissingArgument},
		{"flag without value", "COPY --from a b", ErrInvalidFlag},
		{"uppercase flag name", "COPY --Chown=x a b", ErrInvalidFlag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, errKind(t, tt.input))
		})
	}
}

func TestParseAdd(t *testing.T) {
	add := parseOne[*AddInstruction](t, "ADD --chown=app:app src.tar /opt/")

	require.Len(t, add.Flags, 1)
	assert.Equal(t, "chown", add.Flags[0].Name.Value)
	assert.Equal(t, "app:app", add.Flags[0].Value.Value)
	assert.Equal(t, "/opt/", add.Destination.Value)
}

func TestParseExpose(t *testing.T) {
	expose := parseOne[*ExposeInstruction](t, "EXPOSE 80 8443/tcp ${PORT}")

	require.Len(t, expose.Ports, 3)
	assert.Equal(t, "80", expose.Ports[0].Port)
	assert.Equal(t, "", expose.Ports[0].Proto)
	assert.Equal(t, "8443", expose.Ports[1].Port)
	assert.Equal(t, "tcp", expose.Ports[1].Proto)
	// variable references pass through unevaluated
	assert.Equal(t, "${PORT}", expose.Ports[2].Raw)

	assert.Equal(t, ErrMissingArgument, errKind(t, "EXPOSE"))
}

func TestParseUser(t *testing.T) {
	user := parseOne[*UserInstruction](t, "USER app:wheel")
	assert.Equal(t, "app", user.User.Value)
	require.NotNil(t, user.Group)
	assert.Equal(t, "wheel", user.Group.Value)

	user = parseOne[*UserInstruction](t, "USER ${APP_UID}")
	assert.Equal(t, "${APP_UID}", user.User.Value)
	assert.Nil(t, user.Group)
}

func TestParseWorkdirVolumeStopsignal(t *testing.T) {
	wd := parseOne[*WorkdirInstruction](t, "WORKDIR /srv/app")
	assert.Equal(t, "/srv/app", wd.Path.Value)

	vol := parseOne[*VolumeInstruction](t, "VOLUME /data /logs")
	require.Len(t, vol.Paths, 2)
	assert.Equal(t, "/data", vol.Paths[0].Value)
	assert.Equal(t, "/logs", vol.Paths[1].Value)

	sig := parseOne[*StopsignalInstruction](t, "STOPSIGNAL SIGTERM")
	assert.Equal(t, "SIGTERM", sig.Signal.Value)

	assert.Equal(t, ErrMissingArgument, errKind(t, "WORKDIR"))
	assert.Equal(t, ErrMissingArgument, errKind(t, "VOLUME"))
	assert.Equal(t, ErrMissingArgument, errKind(t, "STOPSIGNAL"))
}

func TestParseHealthcheck(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		hc := parseOne[*HealthcheckInstruction](t, "HEALTHCHECK NONE")
		assert.True(t, hc.None)
	})

	t.Run("cmd with options", func(t *testing.T) {
		hc := parseOne[*HealthcheckInstruction](t,
			"HEALTHCHECK --interval=30s --retries=3 CMD curl -f http://localhost/")
		assert.False(t, hc.None)
		require.Len(t, hc.Options, 2)
		assert.Equal(t, "interval", hc.Options[0].Name.Value)
		assert.Equal(t, "30s", hc.Options[0].Value.Value)
		assert.Equal(t, "retries", hc.Options[1].Name.Value)
		require.NotNil(t, hc.Shell)
		assert.Equal(t, "curl -f http://localhost/", hc.Shell.Command)
	})

	t.Run("cmd exec form", func(t *testing.T) {
		hc := parseOne[*HealthcheckInstruction](t, `HEALTHCHECK CMD ["curl", "-f", "http://localhost/"]`)
		require.NotNil(t, hc.Exec)
		assert.Len(t, hc.Exec.Args, 3)
	})

	t.Run("unknown option retained", func(t *testing.T) {
		hc := parseOne[*HealthcheckInstruction](t, "HEALTHCHECK --start-interval=5s CMD true")
		require.Len(t, hc.Options, 1)
		assert.Equal(t, "start-interval", hc.Options[0].Name.Value)
	})

	t.Run("errors", func(t *testing.T) {
		assert.Equal(t, ErrMissingArgument, errKind(t, "HEALTHCHECK CMD"))
		assert.Equal(t, ErrMissingArgument, errKind(t, "HEALTHCHECK"))
		// NONE accepts no trailing tokens
		assert.Equal(t, ErrSyntax, errKind(t, "HEALTHCHECK NONE true"))
	})
}

func TestParseMisc(t *testing.T) {
	misc := parseOne[*MiscInstruction](t, "ONBUILD RUN echo hi")

	assert.Equal(t, "ONBUILD", misc.Keyword.Value)
	assert.Equal(t, "ONBUILD", misc.GetCmd())
	assert.Equal(t, "RUN echo hi", misc.Arguments.Value)

	misc = parseOne[*MiscInstruction](t, "maintainer somebody <somebody@example.com>")
	assert.Equal(t, "MAINTAINER", misc.Keyword.Value)

	assert.Equal(t, ErrMissingArgument, errKind(t, "ONBUILD"))
}

func TestGlobalArgs(t *testing.T) {
	d := mustParse(t, strings.Join([]string{
		"ARG VERSION=3.10",
		"ARG REGISTRY",
		"FROM alpine:${VERSION}",
		"ARG IN_STAGE",
		"RUN true",
	}, "\n"))

	require.Len(t, d.GlobalArgs, 2)
	assert.Equal(t, "VERSION", d.GlobalArgs[0].Name.Value)
	assert.Equal(t, "REGISTRY", d.GlobalArgs[1].Name.Value)
	assert.Len(t, d.Instructions, 5)
}

func TestInstructionBeforeFrom(t *testing.T) {
	_, err := Parse("RUN echo hi\nFROM alpine")
	require.Error(t, err)
	perr := err.(*Error)
	assert.Equal(t, ErrSyntax, perr.Kind)
	assert.Contains(t, perr.Message, "before the first FROM")
}

func TestZeroFromIsValid(t *testing.T) {
	d := mustParse(t, "# nothing but args\nARG VERSION\n")
	assert.Len(t, d.GlobalArgs, 1)
	assert.Empty(t, d.Stages().Stages)

	d = mustParse(t, "")
	assert.Empty(t, d.Instructions)
}

func TestCommentsAndBlankLines(t *testing.T) {
	d := mustParse(t, strings.Join([]string{
		"# build file",
		"",
		"FROM alpine",
		"  # indented comment",
		"RUN echo hi",
		"",
	}, "\n"))

	// comments and blank lines leave no instruction behind
	require.Len(t, d.Instructions, 2)
	assert.Equal(t, "FROM", d.Instructions[0].GetCmd())
	assert.Equal(t, "RUN", d.Instructions[1].GetCmd())
}

func TestContinuationTransparency(t *testing.T) {
	folded := mustParse(t, stagePrefix+"COPY foo \\\n  bar /dst")
	flat := mustParse(t, stagePrefix+"COPY foo bar /dst")

	f := folded.Instructions[1].(*CopyInstruction)
	g := flat.Instructions[1].(*CopyInstruction)

	require.Len(t, f.Sources, len(g.Sources))
	for i := range f.Sources {
		assert.Equal(t, g.Sources[i].Value, f.Sources[i].Value)
	}
	assert.Equal(t, g.Destination.Value, f.Destination.Value)
}

func TestEscapeDirective(t *testing.T) {
	d := mustParse(t, "# escape=`\n"+stagePrefix+"RUN echo hello `\n  world")
	assert.Equal(t, byte('`'), d.Escape)

	run := d.Instructions[1].(*RunInstruction)
	require.NotNil(t, run.Shell)
	assert.Equal(t, "echo hello   world", run.Shell.Command)
}

func TestEscapeDirectiveAfterBlankLineIgnored(t *testing.T) {
	d := mustParse(t, "\n# escape=`\nFROM alpine")
	assert.Equal(t, byte('\\'), d.Escape)
}

func TestUnknownDirectiveIgnored(t *testing.T) {
	d := mustParse(t, "# syntax=docker/dockerfile:1\nFROM alpine")
	assert.Equal(t, byte('\\'), d.Escape)
	assert.Len(t, d.Instructions, 1)
}

func TestByteOrderMarkStripped(t *testing.T) {
	d := mustParse(t, "\uFEFF"+"FROM alpine")
	from := d.Instructions[0].(*FromInstruction)
	assert.Equal(t, Span{Start: 0, End: 11}, from.Span)
	assert.Equal(t, "FROM alpine", d.Content)
}

func TestCRLFLineEndings(t *testing.T) {
	d := mustParse(t, "FROM alpine\r\nRUN echo hi\r\n")

	require.Len(t, d.Instructions, 2)
	from := d.Instructions[0].(*FromInstruction)
	assert.Equal(t, "alpine", from.Image.Value)
	run := d.Instructions[1].(*RunInstruction)
	require.NotNil(t, run.Shell)
	assert.Equal(t, "echo hi", run.Shell.Command)
}

func TestTrailingEscapeAtEOF(t *testing.T) {
	// a dangling continuation at end of file is silently truncated
	run := parseOne[*RunInstruction](t, "RUN echo hi \\")
	require.NotNil(t, run.Shell)
	assert.Equal(t, "echo hi ", run.Shell.Command)
}

func TestSpanContainment(t *testing.T) {
	d := mustParse(t, strings.Join([]string{
		"ARG VERSION=3.19",
		"FROM alpine:${VERSION} AS base",
		"ENV a=1 b=2",
		"LABEL org.example.vendor=dockwright",
		"COPY --chmod=0644 a b /dst/",
		"EXPOSE 80/tcp",
		"HEALTHCHECK --interval=5s CMD true",
		`ENTRYPOINT ["/bin/app"]`,
	}, "\n"))

	prevStart := 0
	for _, ins := range d.Instructions {
		span := ins.GetSpan()
		assert.GreaterOrEqual(t, span.Start, prevStart)
		prevStart = span.Start

		kw := ins.GetKeywordSpan()
		assert.GreaterOrEqual(t, kw.Start, span.Start)
		assert.LessOrEqual(t, kw.End, span.End)
	}

	env := d.Instructions[2].(*EnvInstruction)
	for _, v := range env.Vars {
		assert.GreaterOrEqual(t, v.Span.Start, env.Span.Start)
		assert.LessOrEqual(t, v.Span.End, env.Span.End)
		assert.GreaterOrEqual(t, v.Key.Span.Start, v.Span.Start)
		assert.LessOrEqual(t, v.Value.Span.End, v.Span.End)
	}
}

func TestPosition(t *testing.T) {
	d := mustParse(t, "FROM alpine\nRUN echo hi\n")

	run := d.Instructions[1].(*RunInstruction)
	pos := d.Position(run.Span.Start)
	assert.Equal(t, 2, pos.Line)
	assert.Equal(t, 1, pos.Column)
}

func TestSyntaxErrorReportsExpectations(t *testing.T) {
	_, err := Parse("FROM alpine\n!!!\n")
	require.Error(t, err)
	perr := err.(*Error)
	assert.Equal(t, ErrSyntax, perr.Kind)
	assert.Equal(t, 2, perr.Line)
	assert.NotEmpty(t, perr.Expected)
}

func TestFromReader(t *testing.T) {
	d, err := FromReader(strings.NewReader("FROM alpine:3.19\n"))
	require.NoError(t, err)
	assert.Len(t, d.Instructions, 1)
}

func TestParseBytes(t *testing.T) {
	d, err := ParseBytes([]byte("FROM alpine\n"))
	require.NoError(t, err)
	assert.Len(t, d.Instructions, 1)
}
