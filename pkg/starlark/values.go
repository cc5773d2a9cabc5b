package starlark

import (
	"fmt"
	"math"

	"github.com/neurodesk/curly/pkg/curly"
	"go.starlark.net/starlark"
)

// ConvertToStarlark converts a template value to a Starlark value. Integral
// numbers become ints so scripts can index and range over them.
func ConvertToStarlark(val curly.Value) starlark.Value {
	if val == nil {
		return starlark.None
	}

	switch v := val.(type) {
	case curly.UndefinedValue, curly.NullValue:
		return starlark.None
	case curly.StringValue:
		return starlark.String(string(v))
	case curly.NumberValue:
		f := float64(v)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return starlark.MakeInt64(int64(f))
		}
		return starlark.Float(f)
	case curly.BoolValue:
		return starlark.Bool(bool(v))
	case *curly.ListValue:
		items := make([]starlark.Value, v.Len())
		for i, item := range v.Items() {
			items[i] = ConvertToStarlark(item)
		}
		return starlark.NewList(items)
	case *curly.DictValue:
		dict := starlark.NewDict(v.Len())
		for _, key := range v.Keys() {
			item, _ := v.Get(key)
			// String keys are always hashable.
			_ = dict.SetKey(starlark.String(key), ConvertToStarlark(item))
		}
		return dict
	case curly.CallableValue:
		return wrapCallable(v)
	default:
		return starlark.String(val.String())
	}
}

// ConvertFromStarlark converts a Starlark value to a template value. Dicts
// keep their insertion order.
func ConvertFromStarlark(val starlark.Value) curly.Value {
	if val == nil || val == starlark.None {
		return curly.Null
	}

	switch v := val.(type) {
	case starlark.String:
		return curly.StringValue(string(v))
	case starlark.Int:
		if i, ok := v.Int64(); ok {
			return curly.NumberValue(i)
		}
		return curly.NumberValue(float64(v.Float()))
	case starlark.Float:
		return curly.NumberValue(float64(v))
	case starlark.Bool:
		return curly.BoolValue(bool(v))
	case starlark.Indexable:
		// list, tuple
		items := make([]curly.Value, v.Len())
		for i := 0; i < v.Len(); i++ {
			items[i] = ConvertFromStarlark(v.Index(i))
		}
		return curly.NewList(items...)
	case *starlark.Dict:
		dict := curly.NewDict(v.Len())
		for _, item := range v.Items() {
			key := item[0].String()
			if s, ok := item[0].(starlark.String); ok {
				key = string(s)
			}
			dict.Set(key, ConvertFromStarlark(item[1]))
		}
		return dict
	case starlark.Callable:
		return curly.CallableValue{
			Name: v.Name(),
			Fn: func(args []curly.Value) (curly.Value, error) {
				return call(newThread(v.Name()), v, args)
			},
		}
	default:
		return curly.StringValue(val.String())
	}
}

func wrapCallable(c curly.CallableValue) *starlark.Builtin {
	name := c.Name
	if name == "" {
		name = "function"
	}
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
		}
		in := make([]curly.Value, len(args))
		for i, a := range args {
			in[i] = ConvertFromStarlark(a)
		}
		out, err := c.Fn(in)
		if err != nil {
			return nil, err
		}
		return ConvertToStarlark(out), nil
	})
}

// call invokes a Starlark callable with template values.
func call(thread *starlark.Thread, fn starlark.Callable, args []curly.Value) (curly.Value, error) {
	in := make(starlark.Tuple, len(args))
	for i, a := range args {
		in[i] = ConvertToStarlark(a)
	}
	out, err := starlark.Call(thread, fn, in, nil)
	if err != nil {
		return nil, err
	}
	return ConvertFromStarlark(out), nil
}

// WrapContext converts a template context into Starlark predeclared values.
func WrapContext(ctx curly.Context) starlark.StringDict {
	wrapped := make(starlark.StringDict, len(ctx))
	for key, value := range ctx {
		wrapped[key] = ConvertToStarlark(curly.FromGo(value))
	}
	return wrapped
}
