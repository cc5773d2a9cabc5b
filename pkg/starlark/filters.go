package starlark

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/neurodesk/curly/pkg/curly"
	"go.starlark.net/starlark"
)

// LoadFilters executes a filter script and returns each public top-level
// function as a filter. The piped value is passed as the first argument,
// followed by the filter arguments:
//
//	def shout(s, suffix = "!"):
//	    return s.upper() + suffix
//
// The script's globals are frozen after loading, and every filter call runs
// on its own thread, so the filters may be used concurrently.
func LoadFilters(filename string, src any) (curly.Filters, error) {
	e := NewEvaluator(filename)
	globals, err := e.ExecFile(filename, src)
	if err != nil {
		return nil, fmt.Errorf("loading filters from %s: %w", filename, err)
	}
	globals.Freeze()

	filters := make(curly.Filters)
	for name, v := range globals {
		fn, ok := v.(*starlark.Function)
		if !ok || !isExportableKey(name) {
			continue
		}
		filters[name] = filterFunc(filename, fn)
	}
	if len(filters) == 0 {
		return nil, fmt.Errorf("loading filters from %s: script defines no public functions", filename)
	}

	slog.Debug("loaded starlark filters", "script", filename, "filters", filterNames(filters))
	return filters, nil
}

func filterFunc(filename string, fn *starlark.Function) curly.FilterFunc {
	return func(val curly.Value, args ...curly.Value) (curly.Value, error) {
		all := make([]curly.Value, 0, len(args)+1)
		all = append(all, val)
		all = append(all, args...)
		return call(newThread(filename), fn, all)
	}
}

func filterNames(f curly.Filters) []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
