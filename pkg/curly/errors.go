package curly

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ErrorKind discriminates the failures Compile and Render can report.
type ErrorKind int

const (
	// LexicalError is an unexpected character or unterminated string inside
	// an expression.
	LexicalError ErrorKind = iota + 1
	// StructuralSyntaxError covers the template structure: unterminated
	// {{, unclosed or stray block directives, malformed loop specs.
	StructuralSyntaxError
	// ExpressionSyntaxError is a malformed expression.
	ExpressionSyntaxError
	// UnknownFilter is a filter name missing from the filter map.
	UnknownFilter
	// NotAFunction is a call whose callee is not callable.
	NotAFunction
)

func (k ErrorKind) String() string {
	switch k {
	case LexicalError:
		return "lexical error"
	case StructuralSyntaxError:
		return "syntax error"
	case ExpressionSyntaxError:
		return "expression syntax error"
	case UnknownFilter:
		return "unknown filter"
	case NotAFunction:
		return "not a function"
	default:
		return "error"
	}
}

// Pos is a location in template source. Line and Column are 1-based; a zero
// Line means the position is unknown.
type Pos struct {
	Offset int
	Line   int
	Column int
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// advance returns the position reached after reading s from p.
func (p Pos) advance(s string) Pos {
	for _, r := range s {
		if r == '\n' {
			p.Line++
			p.Column = 1
		} else {
			p.Column++
		}
	}
	p.Offset += len(s)
	return p
}

var startPos = Pos{Line: 1, Column: 1}

// Error is the single error type returned by Compile and Render.
type Error struct {
	Kind ErrorKind
	Msg  string
	Pos  Pos
	// Name is the template name from Options, if any.
	Name string
	// Source is the full template source, used by Snippet.
	Source string
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Name != "" || e.Pos.Line > 0 {
		b.WriteString(" at ")
		if e.Name != "" {
			b.WriteString(e.Name)
			if e.Pos.Line > 0 {
				b.WriteByte(':')
			}
		}
		if e.Pos.Line > 0 {
			fmt.Fprintf(&b, "%d:%d", e.Pos.Line, e.Pos.Column)
		}
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

// Is matches the kind sentinels, so errors.Is(err, ErrUnknownFilter) works
// for any unknown-filter error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == "" && t.Pos == (Pos{})
}

var (
	ErrLexical          = &Error{Kind: LexicalError}
	ErrStructural       = &Error{Kind: StructuralSyntaxError}
	ErrExpressionSyntax = &Error{Kind: ExpressionSyntaxError}
	ErrUnknownFilter    = &Error{Kind: UnknownFilter}
	ErrNotAFunction     = &Error{Kind: NotAFunction}
)

func newError(kind ErrorKind, pos Pos, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Snippet renders the error with the offending source line and a caret
// under its column:
//
//	syntax error at 2:5: missing {{/if}}
//
//	   1 | <ul>
//	   2 | {{#if x}}
//	     |     ^
//
// Without a source or position it returns Error().
func (e *Error) Snippet() string {
	if e.Source == "" || e.Pos.Line <= 0 {
		return e.Error()
	}
	lines := strings.Split(e.Source, "\n")
	line := e.Pos.Line
	if line > len(lines) {
		line = len(lines)
	}
	width := len(fmt.Sprint(line + 1))

	var b strings.Builder
	b.WriteString(e.Error())
	b.WriteString("\n\n")
	writeLine := func(n int) {
		fmt.Fprintf(&b, "  %*d | %s\n", width, n, strings.TrimRight(lines[n-1], "\r"))
	}
	if line > 1 {
		writeLine(line - 1)
	}
	writeLine(line)
	col := e.Pos.Column
	if max := utf8.RuneCountInString(lines[line-1]) + 1; col > max {
		col = max
	}
	if col < 1 {
		col = 1
	}
	fmt.Fprintf(&b, "  %*s | %s^\n", width, "", strings.Repeat(" ", col-1))
	if line < len(lines) {
		writeLine(line + 1)
	}
	return b.String()
}

// annotate stamps the template name and source onto an error raised while
// parsing or evaluating this template. Errors that come back from filters or
// callables arrive wrapped and are left alone: they may be shared, like the
// Err sentinels.
func annotate(err error, name, source string) error {
	e, ok := err.(*Error)
	if !ok || isSentinel(e) {
		return err
	}
	if e.Name == "" {
		e.Name = name
	}
	if e.Source == "" {
		e.Source = source
	}
	return err
}

func isSentinel(e *Error) bool {
	switch e {
	case ErrLexical, ErrStructural, ErrExpressionSyntax, ErrUnknownFilter, ErrNotAFunction:
		return true
	}
	return false
}
