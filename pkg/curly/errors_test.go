package curly

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	_, err := Compile("<ul>\n{{#if x}}\n</ul>", &Options{Name: "list.html"})
	if err == nil {
		t.Fatal("want error")
	}
	want := "syntax error at list.html:2:1: {{#if}} is never closed: missing {{/if}}"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}

	e := &Error{Kind: UnknownFilter, Msg: `"x"`}
	if e.Error() != `unknown filter: "x"` {
		t.Fatalf("got %q", e.Error())
	}
}

func TestErrorSnippet(t *testing.T) {
	_, err := Compile("<ul>\n  {{#if x}}\n</ul>", nil)
	var ce *Error
	if !errors.As(err, &ce) {
		t.Fatalf("want *Error, got %v", err)
	}
	snip := ce.Snippet()
	for _, want := range []string{
		"  1 | <ul>\n",
		"  2 |   {{#if x}}\n",
		"    |   ^\n",
		"  3 | </ul>\n",
	} {
		if !strings.Contains(snip, want) {
			t.Fatalf("snippet missing %q:\n%s", want, snip)
		}
	}

	bare := &Error{Kind: NotAFunction, Msg: "f is not a function"}
	if bare.Snippet() != bare.Error() {
		t.Fatalf("snippet without source: %q", bare.Snippet())
	}
}

func TestErrorIsKind(t *testing.T) {
	err := fmt.Errorf("rendering page: %w", newError(UnknownFilter, Pos{Line: 1, Column: 2}, "%q", "x"))
	if !errors.Is(err, ErrUnknownFilter) {
		t.Fatal("want unknown filter")
	}
	if errors.Is(err, ErrNotAFunction) {
		t.Fatal("kinds must not match each other")
	}
	other := newError(UnknownFilter, Pos{Line: 1, Column: 2}, "%q", "x")
	if errors.Is(err, other) {
		t.Fatal("only kind sentinels match by kind")
	}
}

func TestRenderLeavesReturnedErrorsUnstamped(t *testing.T) {
	opts := &Options{
		Name: "page.html",
		Filters: Filters{
			"sentinel": func(Value, ...Value) (Value, error) { return nil, ErrNotAFunction },
		},
	}
	tpl := MustCompile("line one\n{{ x | sentinel }}", opts)
	for i := 0; i < 2; i++ {
		_, err := tpl.Render(nil)
		if !errors.Is(err, ErrNotAFunction) {
			t.Fatalf("want not-a-function, got %v", err)
		}
	}
	if ErrNotAFunction.Name != "" || ErrNotAFunction.Source != "" {
		t.Fatalf("sentinel was modified: %+v", *ErrNotAFunction)
	}
	if got := ErrNotAFunction.Error(); got != "not a function" {
		t.Fatalf("sentinel message changed: %q", got)
	}

	// Errors raised by the template itself still carry its name.
	_, err := MustCompile("{{ nope() }}", opts).Render(nil)
	var ce *Error
	if !errors.As(err, &ce) || ce.Name != "page.html" || ce.Source != "{{ nope() }}" {
		t.Fatalf("want stamped error, got %#v", err)
	}
}
