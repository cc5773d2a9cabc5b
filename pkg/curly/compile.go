package curly

import (
	"strings"
	"time"
)

// Options configures Compile. The zero value escapes output and has no
// filters.
type Options struct {
	// Name identifies the template in error messages.
	Name string
	// Filters available to `| name` stages. The map is copied at compile
	// time; names are resolved when a filter runs.
	Filters Filters
	// DisableEscape writes interpolated values verbatim.
	DisableEscape bool
	// Escape replaces the default HTML escaping when set.
	Escape func(string) string
}

// Template is a compiled template. It is immutable and safe for concurrent
// use by multiple goroutines.
type Template struct {
	Source     string
	Name       string
	CompiledAt time.Time

	nodes   []Node
	filters Filters
	escape  func(string) string
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// EscapeHTML replaces & < > " ' with their HTML entities.
func EscapeHTML(s string) string { return htmlEscaper.Replace(s) }

func identity(s string) string { return s }

// Compile parses source and returns a reusable template. Structural and
// expression syntax errors are reported here as *Error.
func Compile(source string, opts *Options) (*Template, error) {
	if opts == nil {
		opts = &Options{}
	}
	nodes, err := Parse(source)
	if err != nil {
		return nil, annotate(err, opts.Name, source)
	}
	t := &Template{
		Source:     source,
		Name:       opts.Name,
		CompiledAt: time.Now(),
		nodes:      nodes,
		filters:    Filters{}.With(opts.Filters),
		escape:     EscapeHTML,
	}
	switch {
	case opts.DisableEscape:
		t.escape = identity
	case opts.Escape != nil:
		t.escape = opts.Escape
	}
	return t, nil
}

// MustCompile is like Compile but panics on error. It is meant for
// templates known at build time.
func MustCompile(source string, opts *Options) *Template {
	t, err := Compile(source, opts)
	if err != nil {
		panic(err)
	}
	return t
}

// Render compiles source with default options and renders it once.
func Render(source string, ctx Context) (string, error) {
	t, err := Compile(source, nil)
	if err != nil {
		return "", err
	}
	return t.Render(ctx)
}

// Nodes returns the parsed template tree. Callers must not modify it.
func (t *Template) Nodes() []Node { return t.nodes }
