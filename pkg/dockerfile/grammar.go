package dockerfile

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dockwright/dockwright/pkg/peg"
)

// DefaultEscape is the escape character used when no `# escape=` directive
// is present.
const DefaultEscape = '\\'

// The grammar is data: one table of named rules, compiled once per escape
// character on first use and shared by all parses afterwards.
var (
	grammarBackslash = sync.OnceValue(func() *peg.Grammar { return buildGrammar('\\') })
	grammarBacktick  = sync.OnceValue(func() *peg.Grammar { return buildGrammar('`') })
)

func grammarFor(escape byte) *peg.Grammar {
	if escape == '`' {
		return grammarBacktick()
	}
	return grammarBackslash()
}

func isWS(b byte) bool      { return b == ' ' || b == '\t' }
func isAlphaCh(b byte) bool { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isDigitCh(b byte) bool { return b >= '0' && b <= '9' }
func isAlnumCh(b byte) bool { return isAlphaCh(b) || isDigitCh(b) }
func isWordCh(b byte) bool  { return isAlnumCh(b) || b == '_' }
func isNotNL(b byte) bool   { return b != '\n' && b != '\r' }
func isTokenCh(b byte) bool { return !isWS(b) && isNotNL(b) }
func isAliasCh(b byte) bool { return isWordCh(b) || b == '.' || b == '-' }
func isNameStart(b byte) bool {
	return isAlphaCh(b) || b == '_'
}

// buildGrammar assembles the instruction grammar for one escape character.
func buildGrammar(escape byte) *peg.Grammar {
	esc := string(escape)

	wsChar := peg.Class("whitespace", isWS)
	wordChar := peg.Class("word character", isWordCh)
	nl := peg.Choice(peg.Lit("\r\n"), peg.Lit("\n"))
	lineEnd := peg.Choice(nl, peg.EOF())
	lineCont := peg.Seq(peg.Lit(esc), peg.Choice(peg.Lit("\r\n"), peg.Lit("\n")))

	// escaped character other than a line break; used inside quoted and
	// bare values
	escPair := peg.Seq(peg.Lit(esc), peg.Class("escaped character", isNotNL))

	// lookahead asserting the logical line ends here
	laLineEnd := peg.And(peg.Seq(peg.Star(wsChar), lineEnd))

	quoted := func(quote byte) peg.Expr {
		plain := peg.Class("string character", func(b byte) bool {
			return b != quote && b != escape && isNotNL(b)
		})
		return peg.Seq(
			peg.Lit(string(quote)),
			peg.Star(peg.Choice(lineCont, escPair, plain)),
			peg.Opt(peg.Lit(string(quote))),
		)
	}

	// bare (unquoted) value: no whitespace, no unescaped quotes
	barePlain := peg.Class("value character", func(b byte) bool {
		return isTokenCh(b) && b != '"' && b != '\'' && b != escape
	})

	kw := func(name, word string) *peg.Rule {
		return &peg.Rule{Name: name, Mode: peg.Token, Expr: peg.Seq(peg.ILit(word), peg.Not(wordChar))}
	}

	breakableText := peg.Plus(peg.Choice(lineCont, peg.Class("character", isNotNL)))

	rules := []*peg.Rule{
		{Name: "dockerfile", Expr: peg.Seq(
			peg.Star(peg.Choice(peg.Ref("blank_line"), peg.Ref("comment_line"), peg.Ref("step"))),
			peg.Opt(peg.Plus(wsChar)),
			peg.EOF(),
		)},
		{Name: "blank_line", Mode: peg.Silent, Expr: peg.Seq(peg.Star(wsChar), nl)},
		{Name: "comment_line", Mode: peg.Silent, Expr: peg.Seq(
			peg.Star(wsChar), peg.Lit("#"),
			peg.Star(peg.Class("comment character", isNotNL)),
			lineEnd,
		)},
		// the trailing part tolerates a dangling continuation before the
		// line break (Docker accepts empty line continuations)
		{Name: "step", Mode: peg.Silent, Expr: peg.Seq(
			peg.Star(wsChar), peg.Ref("instruction"),
			peg.Star(peg.Choice(wsChar, lineCont)), lineEnd,
		)},
		{Name: "instruction", Mode: peg.Silent, Expr: peg.Choice(
			peg.Ref("from"), peg.Ref("arg"), peg.Ref("env"), peg.Ref("label"),
			peg.Ref("run"), peg.Ref("cmd"), peg.Ref("entrypoint"), peg.Ref("shell"),
			peg.Ref("copy"), peg.Ref("add"), peg.Ref("expose"), peg.Ref("user"),
			peg.Ref("workdir"), peg.Ref("volume"), peg.Ref("stopsignal"),
			peg.Ref("healthcheck"), peg.Ref("misc"),
		)},

		// breakable whitespace inside an instruction
		{Name: "sp", Mode: peg.Silent, Expr: peg.Plus(peg.Choice(wsChar, lineCont))},

		// shared tokens
		{Name: "dquoted", Mode: peg.Token, Expr: quoted('"')},
		{Name: "squoted", Mode: peg.Token, Expr: quoted('\'')},
		{Name: "unquoted", Mode: peg.Token, Expr: peg.Star(peg.Choice(escPair, barePlain))},
		{Name: "value", Mode: peg.Silent, Expr: peg.Choice(
			peg.Ref("dquoted"), peg.Ref("squoted"), peg.Ref("unquoted"),
		)},
		{Name: "single_value", Mode: peg.Silent, Expr: peg.Choice(
			peg.Seq(peg.Ref("dquoted"), laLineEnd),
			peg.Seq(peg.Ref("squoted"), laLineEnd),
			peg.Ref("breakable"),
		)},
		{Name: "breakable", Mode: peg.Token, Expr: breakableText},
		{Name: "path", Mode: peg.Silent, Expr: peg.Choice(peg.Ref("dquoted"), peg.Ref("path_token"))},
		{Name: "path_token", Mode: peg.Token, Expr: peg.Plus(peg.Class("path character", isTokenCh))},

		// keywords
		kw("from_kw", "FROM"),
		kw("arg_kw", "ARG"),
		kw("env_kw", "ENV"),
		kw("label_kw", "LABEL"),
		kw("run_kw", "RUN"),
		kw("cmd_kw", "CMD"),
		kw("entrypoint_kw", "ENTRYPOINT"),
		kw("shell_kw", "SHELL"),
		kw("copy_kw", "COPY"),
		kw("add_kw", "ADD"),
		kw("expose_kw", "EXPOSE"),
		kw("user_kw", "USER"),
		kw("workdir_kw", "WORKDIR"),
		kw("volume_kw", "VOLUME"),
		kw("stopsignal_kw", "STOPSIGNAL"),
		kw("healthcheck_kw", "HEALTHCHECK"),
		kw("as_kw", "AS"),
		{Name: "known_kw", Mode: peg.Silent, Expr: peg.Choice(
			peg.Ref("from_kw"), peg.Ref("arg_kw"), peg.Ref("env_kw"), peg.Ref("label_kw"),
			peg.Ref("run_kw"), peg.Ref("cmd_kw"), peg.Ref("entrypoint_kw"), peg.Ref("shell_kw"),
			peg.Ref("copy_kw"), peg.Ref("add_kw"), peg.Ref("expose_kw"), peg.Ref("user_kw"),
			peg.Ref("workdir_kw"), peg.Ref("volume_kw"), peg.Ref("stopsignal_kw"),
			peg.Ref("healthcheck_kw"),
		)},

		// FROM image-ref [AS alias]
		{Name: "from", Expr: peg.Seq(peg.Ref("from_kw"), peg.Opt(peg.Seq(
			peg.Ref("sp"), peg.Ref("from_image"),
			peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("as_kw"), peg.Ref("sp"), peg.Ref("from_alias"))),
		)))},
		{Name: "from_image", Mode: peg.Token, Expr: peg.Plus(peg.Class("image reference", isTokenCh))},
		{Name: "from_alias", Mode: peg.Token, Expr: peg.Seq(
			peg.Class("alias", isWordCh), peg.Star(peg.Class("alias", isAliasCh)),
		)},

		// ARG NAME[=VALUE]
		{Name: "arg", Expr: peg.Seq(peg.Ref("arg_kw"), peg.Opt(peg.Seq(
			peg.Ref("sp"), peg.Ref("arg_name"),
			peg.Opt(peg.Seq(peg.Lit("="), peg.Ref("value"))),
		)))},
		{Name: "arg_name", Mode: peg.Token, Expr: peg.Seq(
			peg.Class("argument name", isNameStart), peg.Star(wordChar),
		)},

		// ENV in single-pair or multi-pair mode
		{Name: "env", Expr: peg.Seq(peg.Ref("env_kw"), peg.Opt(peg.Seq(
			peg.Ref("sp"), peg.Choice(peg.Ref("env_pairs"), peg.Ref("env_single")),
		)))},
		{Name: "env_pairs", Mode: peg.Silent, Expr: peg.Seq(
			peg.Ref("env_pair"), peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("env_pair"))),
		)},
		{Name: "env_pair", Expr: peg.Seq(peg.Ref("env_name"), peg.Lit("="), peg.Ref("value"))},
		{Name: "env_name", Mode: peg.Token, Expr: peg.Seq(
			peg.Class("variable name", isNameStart), peg.Star(wordChar),
		)},
		{Name: "env_single", Expr: peg.Seq(peg.Ref("env_name"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("single_value"))))},

		// LABEL in single-pair or multi-pair mode; names may be quoted
		{Name: "label", Expr: peg.Seq(peg.Ref("label_kw"), peg.Opt(peg.Seq(
			peg.Ref("sp"), peg.Choice(peg.Ref("label_pairs"), peg.Ref("label_single")),
		)))},
		{Name: "label_pairs", Mode: peg.Silent, Expr: peg.Seq(
			peg.Ref("label_pair"), peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("label_pair"))),
		)},
		{Name: "label_pair", Expr: peg.Seq(peg.Ref("label_key"), peg.Lit("="), peg.Ref("value"))},
		{Name: "label_key", Mode: peg.Silent, Expr: peg.Choice(
			peg.Ref("dquoted"), peg.Ref("squoted"), peg.Ref("label_name"),
		)},
		{Name: "label_name", Mode: peg.Token, Expr: peg.Plus(peg.Class("label name", func(b byte) bool {
			return isTokenCh(b) && b != '=' && b != '"' && b != '\'' && b != escape
		}))},
		{Name: "label_single", Expr: peg.Seq(peg.Ref("label_key"), peg.Ref("sp"), peg.Ref("single_value"))},

		// RUN / CMD / ENTRYPOINT / SHELL bodies: exec form wins when the
		// argument is a well-formed JSON string array, shell form otherwise
		{Name: "run", Expr: peg.Seq(peg.Ref("run_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("command_body"))))},
		{Name: "cmd", Expr: peg.Seq(peg.Ref("cmd_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("command_body"))))},
		{Name: "entrypoint", Expr: peg.Seq(peg.Ref("entrypoint_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("command_body"))))},
		{Name: "shell", Expr: peg.Seq(peg.Ref("shell_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("command_body"))))},
		{Name: "command_body", Mode: peg.Silent, Expr: peg.Choice(peg.Ref("exec_form"), peg.Ref("shell_form"))},
		{Name: "shell_form", Mode: peg.Token, Expr: breakableText},
		{Name: "exec_form", Expr: peg.Seq(
			peg.Lit("["), peg.Ref("exec_ws"),
			peg.Opt(peg.Seq(
				peg.Ref("exec_str"),
				peg.Star(peg.Seq(peg.Ref("exec_ws"), peg.Lit(","), peg.Ref("exec_ws"), peg.Ref("exec_str"))),
				peg.Ref("exec_ws"),
			)),
			peg.Lit("]"), laLineEnd,
		)},
		{Name: "exec_ws", Mode: peg.Silent, Expr: peg.Star(peg.Choice(wsChar, lineCont))},
		// exec strings always use backslash escapes, regardless of the
		// directive escape character
		{Name: "exec_str", Mode: peg.Token, Expr: peg.Seq(
			peg.Lit(`"`),
			peg.Star(peg.Choice(
				peg.Seq(peg.Lit(`\`), peg.Class("escape", isNotNL)),
				peg.Class("string character", func(b byte) bool {
					return b != '"' && b != '\\' && isNotNL(b)
				}),
			)),
			peg.Lit(`"`),
		)},

		// COPY / ADD: leading --flag=value tokens, then paths
		{Name: "copy", Expr: peg.Seq(peg.Ref("copy_kw"),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("flag"))),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("path"))),
		)},
		{Name: "add", Expr: peg.Seq(peg.Ref("add_kw"),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("flag"))),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("path"))),
		)},
		{Name: "flag", Expr: peg.Seq(
			peg.Lit("--"), peg.Ref("flag_name"),
			peg.Opt(peg.Seq(peg.Lit("="), peg.Ref("value"))),
		)},
		{Name: "flag_name", Mode: peg.Token, Expr: peg.Plus(peg.Class("flag name", func(b byte) bool {
			return isTokenCh(b) && b != '='
		}))},

		// EXPOSE PORT[/PROTO]...
		{Name: "expose", Expr: peg.Seq(peg.Ref("expose_kw"),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("expose_port"))),
		)},
		{Name: "expose_port", Mode: peg.Token, Expr: peg.Plus(peg.Class("port", isTokenCh))},

		// USER user[:group]
		{Name: "user", Expr: peg.Seq(peg.Ref("user_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("user_spec"))))},
		{Name: "user_spec", Mode: peg.Token, Expr: peg.Plus(peg.Class("user", isTokenCh))},

		// WORKDIR, VOLUME, STOPSIGNAL
		{Name: "workdir", Expr: peg.Seq(peg.Ref("workdir_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("workdir_path"))))},
		{Name: "workdir_path", Mode: peg.Token, Expr: breakableText},
		{Name: "volume", Expr: peg.Seq(peg.Ref("volume_kw"),
			peg.Star(peg.Seq(peg.Ref("sp"), peg.Ref("path"))),
		)},
		{Name: "stopsignal", Expr: peg.Seq(peg.Ref("stopsignal_kw"), peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("signal"))))},
		{Name: "signal", Mode: peg.Token, Expr: peg.Plus(peg.Class("signal", isTokenCh))},

		// HEALTHCHECK NONE | [options] CMD body
		{Name: "healthcheck", Expr: peg.Seq(peg.Ref("healthcheck_kw"), peg.Opt(peg.Seq(
			peg.Ref("sp"), peg.Choice(peg.Ref("hc_none"), peg.Ref("hc_command")),
		)))},
		{Name: "hc_none", Mode: peg.Token, Expr: peg.Seq(peg.ILit("NONE"), peg.Not(wordChar))},
		{Name: "hc_command", Mode: peg.Silent, Expr: peg.Seq(
			peg.Star(peg.Seq(peg.Ref("flag"), peg.Ref("sp"))),
			peg.Ref("cmd_kw"),
			peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("command_body"))),
		)},

		// catch-all for unrecognized instruction keywords
		{Name: "misc", Expr: peg.Seq(
			peg.Not(peg.Ref("known_kw")),
			peg.Ref("misc_kw"),
			peg.Opt(peg.Seq(peg.Ref("sp"), peg.Ref("misc_args"))),
		)},
		{Name: "misc_kw", Mode: peg.Token, Expr: peg.Seq(
			peg.Class("instruction", isAlphaCh), peg.Star(peg.Class("instruction", isAlnumCh)),
		)},
		{Name: "misc_args", Mode: peg.Token, Expr: breakableText},
	}

	return peg.MustGrammar("dockerfile", rules)
}

// directivePattern matches a `# key=value` parser directive line.
var directivePattern = regexp.MustCompile(`^#[ \t]*([a-zA-Z][a-zA-Z0-9]*)[ \t]*=[ \t]*(\S+)[ \t]*$`)

// detectEscape scans the contiguous run of parser directives at the very
// top of the source and returns the effective escape character. Unknown
// directives are ignored; the run ends at the first line that is not a
// directive-shaped comment, including blank lines. A directive appearing
// after that point is an ordinary comment.
func detectEscape(source string) byte {
	escape := byte(DefaultEscape)
	for len(source) > 0 {
		line := source
		if i := strings.IndexByte(source, '\n'); i >= 0 {
			line = source[:i]
			source = source[i+1:]
		} else {
			source = ""
		}
		line = strings.TrimSuffix(line, "\r")

		m := directivePattern.FindStringSubmatch(line)
		if m == nil {
			break
		}
		if strings.EqualFold(m[1], "escape") && (m[2] == `\` || m[2] == "`") {
			escape = m[2][0]
		}
	}
	return escape
}
