// Package dockerfile parses Dockerfiles into typed instructions with full
// source-span bookkeeping, and splices targeted edits back into the source
// text without disturbing unrelated formatting.
package dockerfile

import (
	"fmt"
	"strings"

	"github.com/dockwright/dockwright/pkg/peg"
)

// Span is a half-open byte range into the parsed source.
type Span = peg.Span

// SpannedString is a string value together with the span it was parsed
// from. For quoted or escaped input the value is the unescaped content
// while the span still covers the raw text, quotes included.
type SpannedString struct {
	Span  Span   `json:"span"`
	Value string `json:"value"`
}

// String returns the string value.
func (s SpannedString) String() string { return s.Value }

// KeyValue is a single key/value pair of an ENV or LABEL instruction.
type KeyValue struct {
	Span  Span          `json:"span"`
	Key   SpannedString `json:"key"`
	Value SpannedString `json:"value"`
}

// Flag is a `--name=value` option on COPY, ADD, or HEALTHCHECK.
type Flag struct {
	Span  Span          `json:"span"`
	Name  SpannedString `json:"name"`
	Value SpannedString `json:"value"`
}

// ShellForm is an instruction body passed to the default shell. The command
// has escaped line breaks removed; the span covers the raw body.
type ShellForm struct {
	Span    Span   `json:"span"`
	Command string `json:"command"`
}

// ExecForm is an instruction body written as a JSON array of strings.
type ExecForm struct {
	Span Span            `json:"span"`
	Args []SpannedString `json:"args"`
}

// Port is one EXPOSE token of the form PORT[/PROTO]. Variable references
// are retained verbatim in Raw (and Port) without evaluation.
type Port struct {
	Span  Span   `json:"span"`
	Raw   string `json:"raw"`
	Port  string `json:"port"`
	Proto string `json:"proto,omitempty"`
}

// Instruction is a single parsed Dockerfile instruction. The concrete type
// is one variant per keyword plus MiscInstruction for anything
// unrecognized; consumers dispatch with a type switch.
//
// Keyword matching is case-insensitive. GetCmd returns the canonical
// uppercase keyword; the user's original casing is recoverable by slicing
// the source with GetKeywordSpan.
type Instruction interface {
	// GetCmd returns the canonical uppercase instruction keyword.
	GetCmd() string

	// GetSpan returns the span of the entire instruction.
	GetSpan() Span

	// GetKeywordSpan returns the span of the instruction keyword.
	GetKeywordSpan() Span

	// String returns a short human-readable representation.
	String() string
}

// FromInstruction is a FROM instruction: the start of a build stage.
type FromInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Image       SpannedString  `json:"image"`
	ImageParsed ImageRef       `json:"image_parsed"`
	Index       int            `json:"index"`
	Alias       *SpannedString `json:"alias,omitempty"`
}

func (f *FromInstruction) GetCmd() string       { return "FROM" }
func (f *FromInstruction) GetSpan() Span        { return f.Span }
func (f *FromInstruction) GetKeywordSpan() Span { return f.Keyword.Span }
func (f *FromInstruction) String() string {
	if f.Alias != nil {
		return fmt.Sprintf("FROM %s AS %s", f.Image.Value, f.Alias.Value)
	}
	return "FROM " + f.Image.Value
}

// ArgInstruction is an ARG instruction. Value is nil when no `=` is
// present; an explicit empty default (`ARG NAME=`) yields an empty value.
type ArgInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Name  SpannedString  `json:"name"`
	Value *SpannedString `json:"value,omitempty"`
}

func (a *ArgInstruction) GetCmd() string       { return "ARG" }
func (a *ArgInstruction) GetSpan() Span        { return a.Span }
func (a *ArgInstruction) GetKeywordSpan() Span { return a.Keyword.Span }
func (a *ArgInstruction) String() string {
	if a.Value != nil {
		return fmt.Sprintf("ARG %s=%s", a.Name.Value, a.Value.Value)
	}
	return "ARG " + a.Name.Value
}

// EnvInstruction is an ENV instruction; a single instruction may set
// several variables.
type EnvInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Vars []KeyValue `json:"vars"`
}

func (e *EnvInstruction) GetCmd() string       { return "ENV" }
func (e *EnvInstruction) GetSpan() Span        { return e.Span }
func (e *EnvInstruction) GetKeywordSpan() Span { return e.Keyword.Span }
func (e *EnvInstruction) String() string {
	parts := make([]string, 0, len(e.Vars))
	for _, v := range e.Vars {
		parts = append(parts, v.Key.Value+"="+v.Value.Value)
	}
	return "ENV " + strings.Join(parts, " ")
}

// LabelInstruction is a LABEL instruction; a single instruction may set
// several labels.
type LabelInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Labels []KeyValue `json:"labels"`
}

func (l *LabelInstruction) GetCmd() string       { return "LABEL" }
func (l *LabelInstruction) GetSpan() Span        { return l.Span }
func (l *LabelInstruction) GetKeywordSpan() Span { return l.Keyword.Span }
func (l *LabelInstruction) String() string {
	parts := make([]string, 0, len(l.Labels))
	for _, v := range l.Labels {
		parts = append(parts, v.Key.Value+"="+v.Value.Value)
	}
	return "LABEL " + strings.Join(parts, " ")
}

// RunInstruction is a RUN instruction in either shell or exec form; exactly
// one of Shell and Exec is set.
type RunInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Shell *ShellForm `json:"shell,omitempty"`
	Exec  *ExecForm  `json:"exec,omitempty"`
}

func (r *RunInstruction) GetCmd() string       { return "RUN" }
func (r *RunInstruction) GetSpan() Span        { return r.Span }
func (r *RunInstruction) GetKeywordSpan() Span { return r.Keyword.Span }
func (r *RunInstruction) String() string       { return "RUN " + commandString(r.Shell, r.Exec) }

// CmdInstruction is a CMD instruction in either shell or exec form.
type CmdInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Shell *ShellForm `json:"shell,omitempty"`
	Exec  *ExecForm  `json:"exec,omitempty"`
}

func (c *CmdInstruction) GetCmd() string       { return "CMD" }
func (c *CmdInstruction) GetSpan() Span        { return c.Span }
func (c *CmdInstruction) GetKeywordSpan() Span { return c.Keyword.Span }
func (c *CmdInstruction) String() string       { return "CMD " + commandString(c.Shell, c.Exec) }

// EntrypointInstruction is an ENTRYPOINT instruction in either shell or
// exec form.
type EntrypointInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Shell *ShellForm `json:"shell,omitempty"`
	Exec  *ExecForm  `json:"exec,omitempty"`
}

func (e *EntrypointInstruction) GetCmd() string       { return "ENTRYPOINT" }
func (e *EntrypointInstruction) GetSpan() Span        { return e.Span }
func (e *EntrypointInstruction) GetKeywordSpan() Span { return e.Keyword.Span }
func (e *EntrypointInstruction) String() string {
	return "ENTRYPOINT " + commandString(e.Shell, e.Exec)
}

// ShellInstruction is a SHELL instruction; exec form is mandatory.
type ShellInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Exec ExecForm `json:"exec"`
}

func (s *ShellInstruction) GetCmd() string       { return "SHELL" }
func (s *ShellInstruction) GetSpan() Span        { return s.Span }
func (s *ShellInstruction) GetKeywordSpan() Span { return s.Keyword.Span }
func (s *ShellInstruction) String() string       { return "SHELL " + commandString(nil, &s.Exec) }

// CopyInstruction is a COPY instruction: optional flags, one or more
// sources, and a destination. A trailing slash on the destination is
// preserved.
type CopyInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Flags       []Flag          `json:"flags,omitempty"`
	Sources     []SpannedString `json:"sources"`
	Destination SpannedString   `json:"destination"`
}

func (c *CopyInstruction) GetCmd() string       { return "COPY" }
func (c *CopyInstruction) GetSpan() Span        { return c.Span }
func (c *CopyInstruction) GetKeywordSpan() Span { return c.Keyword.Span }
func (c *CopyInstruction) String() string {
	return "COPY " + pathsString(c.Sources, c.Destination)
}

// AddInstruction is an ADD instruction; it shares COPY's argument shape.
type AddInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Flags       []Flag          `json:"flags,omitempty"`
	Sources     []SpannedString `json:"sources"`
	Destination SpannedString   `json:"destination"`
}

func (a *AddInstruction) GetCmd() string       { return "ADD" }
func (a *AddInstruction) GetSpan() Span        { return a.Span }
func (a *AddInstruction) GetKeywordSpan() Span { return a.Keyword.Span }
func (a *AddInstruction) String() string {
	return "ADD " + pathsString(a.Sources, a.Destination)
}

// ExposeInstruction is an EXPOSE instruction.
type ExposeInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Ports []Port `json:"ports"`
}

func (e *ExposeInstruction) GetCmd() string       { return "EXPOSE" }
func (e *ExposeInstruction) GetSpan() Span        { return e.Span }
func (e *ExposeInstruction) GetKeywordSpan() Span { return e.Keyword.Span }
func (e *ExposeInstruction) String() string {
	parts := make([]string, 0, len(e.Ports))
	for _, p := range e.Ports {
		parts = append(parts, p.Raw)
	}
	return "EXPOSE " + strings.Join(parts, " ")
}

// UserInstruction is a USER instruction. Group is nil when no `:group`
// part is present; both fields are raw text, variable references included.
type UserInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	User  SpannedString  `json:"user"`
	Group *SpannedString `json:"group,omitempty"`
}

func (u *UserInstruction) GetCmd() string       { return "USER" }
func (u *UserInstruction) GetSpan() Span        { return u.Span }
func (u *UserInstruction) GetKeywordSpan() Span { return u.Keyword.Span }
func (u *UserInstruction) String() string {
	if u.Group != nil {
		return fmt.Sprintf("USER %s:%s", u.User.Value, u.Group.Value)
	}
	return "USER " + u.User.Value
}

// WorkdirInstruction is a WORKDIR instruction.
type WorkdirInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Path SpannedString `json:"path"`
}

func (w *WorkdirInstruction) GetCmd() string       { return "WORKDIR" }
func (w *WorkdirInstruction) GetSpan() Span        { return w.Span }
func (w *WorkdirInstruction) GetKeywordSpan() Span { return w.Keyword.Span }
func (w *WorkdirInstruction) String() string       { return "WORKDIR " + w.Path.Value }

// VolumeInstruction is a VOLUME instruction.
type VolumeInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Paths []SpannedString `json:"paths"`
}

func (v *VolumeInstruction) GetCmd() string       { return "VOLUME" }
func (v *VolumeInstruction) GetSpan() Span        { return v.Span }
func (v *VolumeInstruction) GetKeywordSpan() Span { return v.Keyword.Span }
func (v *VolumeInstruction) String() string {
	parts := make([]string, 0, len(v.Paths))
	for _, p := range v.Paths {
		parts = append(parts, p.Value)
	}
	return "VOLUME " + strings.Join(parts, " ")
}

// StopsignalInstruction is a STOPSIGNAL instruction.
type StopsignalInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Signal SpannedString `json:"signal"`
}

func (s *StopsignalInstruction) GetCmd() string       { return "STOPSIGNAL" }
func (s *StopsignalInstruction) GetSpan() Span        { return s.Span }
func (s *StopsignalInstruction) GetKeywordSpan() Span { return s.Keyword.Span }
func (s *StopsignalInstruction) String() string       { return "STOPSIGNAL " + s.Signal.Value }

// HealthcheckInstruction is a HEALTHCHECK instruction: either NONE, or a
// set of options followed by a CMD body in shell or exec form. Option
// names are retained as written, recognized or not.
type HealthcheckInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	None    bool       `json:"none,omitempty"`
	Options []Flag     `json:"options,omitempty"`
	Shell   *ShellForm `json:"shell,omitempty"`
	Exec    *ExecForm  `json:"exec,omitempty"`
}

func (h *HealthcheckInstruction) GetCmd() string       { return "HEALTHCHECK" }
func (h *HealthcheckInstruction) GetSpan() Span        { return h.Span }
func (h *HealthcheckInstruction) GetKeywordSpan() Span { return h.Keyword.Span }
func (h *HealthcheckInstruction) String() string {
	if h.None {
		return "HEALTHCHECK NONE"
	}
	return "HEALTHCHECK CMD " + commandString(h.Shell, h.Exec)
}

// MiscInstruction preserves an unrecognized instruction verbatim: the
// keyword (canonical form in Keyword.Value, original casing under the
// span) and its raw arguments.
type MiscInstruction struct {
	Span    Span          `json:"span"`
	Keyword SpannedString `json:"keyword"`

	Arguments SpannedString `json:"arguments"`
}

func (m *MiscInstruction) GetCmd() string       { return m.Keyword.Value }
func (m *MiscInstruction) GetSpan() Span        { return m.Span }
func (m *MiscInstruction) GetKeywordSpan() Span { return m.Keyword.Span }
func (m *MiscInstruction) String() string {
	return m.Keyword.Value + " " + m.Arguments.Value
}

func commandString(shell *ShellForm, exec *ExecForm) string {
	if shell != nil {
		return shell.Command
	}
	if exec == nil {
		return ""
	}
	parts := make([]string, 0, len(exec.Args))
	for _, a := range exec.Args {
		parts = append(parts, fmt.Sprintf("%q", a.Value))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func pathsString(sources []SpannedString, dest SpannedString) string {
	parts := make([]string, 0, len(sources)+1)
	for _, s := range sources {
		parts = append(parts, s.Value)
	}
	parts = append(parts, dest.Value)
	return strings.Join(parts, " ")
}
