package starlark

import (
	"fmt"
	"log/slog"

	"github.com/neurodesk/curly/pkg/curly"
	"go.starlark.net/starlark"
)

// Evaluator runs Starlark scripts and expressions against template values.
// It is not safe for concurrent use; filters returned by LoadFilters are.
type Evaluator struct {
	name     string
	thread   *starlark.Thread
	builtins starlark.StringDict
	globals  starlark.StringDict
}

// NewEvaluator creates a new Starlark evaluator. name labels the thread and
// the log lines of print.
func NewEvaluator(name string) *Evaluator {
	return &Evaluator{
		name:     name,
		thread:   newThread(name),
		builtins: CreateBuiltins(),
		globals:  make(starlark.StringDict),
	}
}

func newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(thread *starlark.Thread, msg string) {
			slog.Info("starlark print", "script", thread.Name, "msg", msg)
		},
	}
}

// SetGlobal sets a global variable in the Starlark environment
func (e *Evaluator) SetGlobal(name string, value curly.Value) {
	e.globals[name] = ConvertToStarlark(value)
}

// LoadContext loads the values of a template context as globals.
func (e *Evaluator) LoadContext(ctx curly.Context) {
	for k, v := range WrapContext(ctx) {
		e.globals[k] = v
	}
}

func (e *Evaluator) predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(e.builtins)+len(e.globals))
	for k, v := range e.builtins {
		predeclared[k] = v
	}
	for k, v := range e.globals {
		predeclared[k] = v
	}
	return predeclared
}

// Eval evaluates a Starlark expression and returns the result as a template
// value.
func (e *Evaluator) Eval(expr string) (curly.Value, error) {
	val, err := starlark.Eval(e.thread, "<eval>", expr, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark evaluation error: %w", err)
	}
	return ConvertFromStarlark(val), nil
}

// ExecFile executes a Starlark file and returns the globals it defined. src
// may be a string, []byte or nil to read filename from disk.
func (e *Evaluator) ExecFile(filename string, src any) (starlark.StringDict, error) {
	globals, err := starlark.ExecFile(e.thread, filename, src, e.predeclared())
	if err != nil {
		return nil, fmt.Errorf("starlark execution error: %w", err)
	}
	for k, v := range globals {
		e.globals[k] = v
	}
	return globals, nil
}

// ExecString executes a Starlark script from a string
func (e *Evaluator) ExecString(script string) (starlark.StringDict, error) {
	return e.ExecFile("<script>", script)
}

// GetGlobal retrieves a global variable as a template value
func (e *Evaluator) GetGlobal(name string) (curly.Value, bool) {
	if val, ok := e.globals[name]; ok {
		return ConvertFromStarlark(val), true
	}
	return nil, false
}

// ExportContext exports the script's public, non-function globals as a
// template context.
func (e *Evaluator) ExportContext() curly.Context {
	ctx := make(curly.Context)
	for key, value := range e.globals {
		if !isExportableKey(key) {
			continue
		}
		if _, ok := value.(starlark.Callable); ok {
			continue
		}
		ctx[key] = ConvertFromStarlark(value)
	}
	return ctx
}

func isExportableKey(key string) bool {
	return key != "" && key[0] != '_'
}

// CreateBuiltins returns the helpers predeclared for every script.
func CreateBuiltins() starlark.StringDict {
	return starlark.StringDict{
		"escape_html": starlark.NewBuiltin("escape_html", func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			return starlark.String(curly.EscapeHTML(s)), nil
		}),
	}
}
