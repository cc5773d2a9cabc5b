package curly

import (
	"fmt"
	"reflect"
	"strings"
)

// FilterFunc post-processes a value: {{ value | name(args...) }}.
type FilterFunc func(val Value, args ...Value) (Value, error)

// Filters is a registry of filter functions by name.
type Filters map[string]FilterFunc

// With returns a new registry holding f's filters overlaid with other's.
func (f Filters) With(other Filters) Filters {
	out := make(Filters, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// GoFilter adapts a plain Go function whose first parameter receives the
// piped value, e.g. GoFilter(strings.ToUpper) or
// GoFilter(func(s string, n int) string { ... }).
func GoFilter(fn any) FilterFunc {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		panic(fmt.Sprintf("curly: GoFilter needs a function, got %T", fn))
	}
	call := wrapFunc(rv).(CallableValue).Fn
	return func(val Value, args ...Value) (Value, error) {
		all := make([]Value, 0, len(args)+1)
		all = append(all, val)
		all = append(all, args...)
		return call(all)
	}
}

// DefaultFilters provides a small set of common filters. Templates only see
// them when they are passed in Options.Filters.
func DefaultFilters() Filters {
	return Filters{
		"upper": func(val Value, _ ...Value) (Value, error) { return StringValue(strings.ToUpper(val.String())), nil },
		"lower": func(val Value, _ ...Value) (Value, error) { return StringValue(strings.ToLower(val.String())), nil },
		"trim":  func(val Value, _ ...Value) (Value, error) { return StringValue(strings.TrimSpace(val.String())), nil },
		"default": func(val Value, args ...Value) (Value, error) {
			if len(args) < 1 || val.Truth() {
				return val, nil
			}
			return args[0], nil
		},
		"join": func(val Value, args ...Value) (Value, error) {
			sep := ","
			if len(args) > 0 {
				sep = args[0].String()
			}
			l, ok := val.(*ListValue)
			if !ok {
				return StringValue(val.String()), nil
			}
			parts := make([]string, l.Len())
			for i, it := range l.items {
				parts[i] = it.String()
			}
			return StringValue(strings.Join(parts, sep)), nil
		},
		"length": func(val Value, _ ...Value) (Value, error) {
			switch t := val.(type) {
			case *ListValue:
				return NumberValue(t.Len()), nil
			case *DictValue:
				return NumberValue(t.Len()), nil
			case StringValue:
				return NumberValue(runeCount(t)), nil
			}
			return NumberValue(0), nil
		},
		"reverse": func(val Value, _ ...Value) (Value, error) {
			switch t := val.(type) {
			case *ListValue:
				n := t.Len()
				out := make([]Value, n)
				for i, it := range t.items {
					out[n-1-i] = it
				}
				return NewList(out...), nil
			default:
				r := []rune(val.String())
				for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
					r[i], r[j] = r[j], r[i]
				}
				return StringValue(string(r)), nil
			}
		},
		"first": func(val Value, _ ...Value) (Value, error) {
			switch t := val.(type) {
			case *ListValue:
				if t.Len() > 0 {
					return t.items[0], nil
				}
			case StringValue:
				if r := []rune(string(t)); len(r) > 0 {
					return StringValue(string(r[0])), nil
				}
			}
			return Undefined, nil
		},
		"last": func(val Value, _ ...Value) (Value, error) {
			switch t := val.(type) {
			case *ListValue:
				if t.Len() > 0 {
					return t.items[t.Len()-1], nil
				}
			case StringValue:
				if r := []rune(string(t)); len(r) > 0 {
					return StringValue(string(r[len(r)-1])), nil
				}
			}
			return Undefined, nil
		},
		"json": func(val Value, _ ...Value) (Value, error) {
			if _, ok := val.(UndefinedValue); ok {
				return StringValue(""), nil
			}
			b, err := marshalValue(val)
			if err != nil {
				return nil, err
			}
			return StringValue(b), nil
		},
		"truncate": func(val Value, args ...Value) (Value, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("truncate requires a length")
			}
			n := int(toNumber(args[0]))
			suffix := "..."
			if len(args) > 1 {
				suffix = args[1].String()
			}
			r := []rune(val.String())
			if n < 0 || len(r) <= n {
				return StringValue(string(r)), nil
			}
			return StringValue(string(r[:n]) + suffix), nil
		},
		"replace": func(val Value, args ...Value) (Value, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("replace requires old and new strings")
			}
			return StringValue(strings.ReplaceAll(val.String(), args[0].String(), args[1].String())), nil
		},
	}
}
