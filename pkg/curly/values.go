package curly

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Value is a template value. String gives the text written to the output and
// Truth the result of a boolean test ({{#if}}, &&, ||, !).
type Value interface {
	String() string
	Truth() bool
}

// LookupHook can be implemented by host values that resolve members lazily.
// Member access on such a value calls OnLookup instead of failing.
type LookupHook interface {
	OnLookup(key string) (Value, bool)
}

// UndefinedValue is the result of a missing binding or member.
type UndefinedValue struct{}

func (UndefinedValue) String() string { return "" }
func (UndefinedValue) Truth() bool    { return false }

// NullValue is an explicit absence of a value (Go nil).
type NullValue struct{}

func (NullValue) String() string { return "" }
func (NullValue) Truth() bool    { return false }

var (
	Undefined Value = UndefinedValue{}
	Null      Value = NullValue{}
)

// BoolValue wraps a boolean.
type BoolValue bool

func (b BoolValue) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b BoolValue) Truth() bool { return bool(b) }

// NumberValue is the only numeric type; integers are float64 with no
// fractional part.
type NumberValue float64

func (n NumberValue) String() string { return formatNumber(float64(n)) }
func (n NumberValue) Truth() bool {
	f := float64(n)
	return f != 0 && !math.IsNaN(f)
}

// StringValue wraps a string.
type StringValue string

func (s StringValue) String() string { return string(s) }
func (s StringValue) Truth() bool    { return len(s) > 0 }

// ListValue is an ordered sequence of values. Lists are reference values:
// === holds only between a list and itself.
type ListValue struct {
	items []Value
}

// NewList returns a list holding items. The list owns the slice.
func NewList(items ...Value) *ListValue {
	return &ListValue{items: items}
}

func (l *ListValue) Len() int { return len(l.items) }

// Index returns element i, or Undefined when i is out of range.
func (l *ListValue) Index(i int) Value {
	if i < 0 || i >= len(l.items) {
		return Undefined
	}
	return l.items[i]
}

// Items returns the elements. Callers must not modify the slice.
func (l *ListValue) Items() []Value { return l.items }

func (l *ListValue) String() string {
	parts := make([]string, len(l.items))
	for i, v := range l.items {
		parts[i] = v.String()
	}
	return strings.Join(parts, ",")
}

// Truth is always true, empty lists included.
func (l *ListValue) Truth() bool { return true }

// DictValue is a string-keyed mapping that remembers insertion order.
type DictValue struct {
	keys []string
	m    map[string]Value
}

// NewDict returns an empty dict with room for n keys.
func NewDict(n int) *DictValue {
	return &DictValue{keys: make([]string, 0, n), m: make(map[string]Value, n)}
}

// Set binds key to v. A key keeps the position of its first insertion.
func (d *DictValue) Set(key string, v Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = v
}

func (d *DictValue) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (d *DictValue) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

func (d *DictValue) Len() int { return len(d.keys) }

func (d *DictValue) String() string {
	b, err := json.Marshal(d)
	if err != nil {
		return "{...}"
	}
	return string(b)
}

func (d *DictValue) Truth() bool { return true }

// MarshalJSON writes the dict as a JSON object in insertion order.
func (d *DictValue) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range d.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		b.Write(kb)
		b.WriteByte(':')
		vb, err := marshalValue(d.m[k])
		if err != nil {
			return nil, err
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func marshalValue(v Value) ([]byte, error) {
	switch t := v.(type) {
	case *DictValue:
		return t.MarshalJSON()
	case *ListValue:
		var b strings.Builder
		b.WriteByte('[')
		for i, it := range t.items {
			if i > 0 {
				b.WriteByte(',')
			}
			ib, err := marshalValue(it)
			if err != nil {
				return nil, err
			}
			b.Write(ib)
		}
		b.WriteByte(']')
		return []byte(b.String()), nil
	case NumberValue:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return []byte("null"), nil
		}
		return []byte(formatNumber(f)), nil
	case CallableValue:
		return []byte("null"), nil
	default:
		return json.Marshal(ToGo(v))
	}
}

// CallableValue is a function that templates can call.
type CallableValue struct {
	Name string
	Fn   func(args []Value) (Value, error)
}

func (c CallableValue) String() string {
	if c.Name != "" {
		return "<function " + c.Name + ">"
	}
	return "<function>"
}
func (c CallableValue) Truth() bool { return true }

// Context is the data a template is rendered against.
type Context map[string]any

// TypeName names the kind of v the way error messages refer to it.
func TypeName(v Value) string {
	switch v.(type) {
	case UndefinedValue:
		return "undefined"
	case NullValue:
		return "null"
	case BoolValue:
		return "boolean"
	case NumberValue:
		return "number"
	case StringValue:
		return "string"
	case *ListValue:
		return "array"
	case *DictValue:
		return "object"
	case CallableValue:
		return "function"
	default:
		return fmt.Sprintf("%T", v)
	}
}

var valueType = reflect.TypeOf((*Value)(nil)).Elem()
var errorType = reflect.TypeOf((*error)(nil)).Elem()

// FromGo converts a Go value to a Value. Maps become dicts with sorted keys,
// structs become dicts in field order (honouring json tags), and functions
// become callables. A pointer, map or slice reached again while it is still
// being converted closes a cycle and converts to Null.
func FromGo(v any) Value {
	return newConverter().convert(v)
}

// converter carries state across one conversion. Pointers, maps and slices
// convert once per converter, so data shared in Go stays one value under ===.
// Values whose conversion cut a cycle are not reused: what they contain
// depends on where the conversion entered the cycle.
type converter struct {
	done   map[refKey]Value
	active map[refKey]bool
	cuts   int
}

type refKey struct {
	ptr uintptr
	typ reflect.Type
	len int
}

func newConverter() *converter {
	return &converter{done: map[refKey]Value{}, active: map[refKey]bool{}}
}

func (c *converter) convert(v any) Value {
	if v == nil {
		return Null
	}
	switch t := v.(type) {
	case Value:
		return t
	case string:
		return StringValue(t)
	case bool:
		return BoolValue(t)
	case int:
		return NumberValue(t)
	case int8:
		return NumberValue(t)
	case int16:
		return NumberValue(t)
	case int32:
		return NumberValue(t)
	case int64:
		return NumberValue(t)
	case uint:
		return NumberValue(t)
	case uint8:
		return NumberValue(t)
	case uint16:
		return NumberValue(t)
	case uint32:
		return NumberValue(t)
	case uint64:
		return NumberValue(t)
	case float32:
		return NumberValue(t)
	case float64:
		return NumberValue(t)
	case []byte:
		return StringValue(string(t))
	case func(args []Value) (Value, error):
		return CallableValue{Fn: t}
	}
	return c.fromReflect(reflect.ValueOf(v))
}

// ref converts a pointer, map or slice through conv, reusing earlier results.
func (c *converter) ref(rv reflect.Value, conv func(reflect.Value) Value) Value {
	key := refKey{ptr: rv.Pointer(), typ: rv.Type()}
	if rv.Kind() == reflect.Slice {
		key.len = rv.Len()
	}
	if v, ok := c.done[key]; ok {
		return v
	}
	if c.active[key] {
		c.cuts++
		return Null
	}
	c.active[key] = true
	cuts := c.cuts
	v := conv(rv)
	delete(c.active, key)
	if c.cuts == cuts {
		c.done[key] = v
	}
	return v
}

func (c *converter) fromReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return Null
		}
		// Without a backing array there is nothing to share.
		if rv.Cap() == 0 {
			return c.list(rv)
		}
		return c.ref(rv, c.list)
	case reflect.Array:
		return c.list(rv)
	case reflect.Map:
		if rv.IsNil() {
			return Null
		}
		if rv.Type().Key().Kind() != reflect.String {
			break
		}
		return c.ref(rv, c.dict)
	case reflect.Struct:
		if s, ok := opaqueString(rv); ok {
			return StringValue(s)
		}
		return c.fromStruct(rv)
	case reflect.Pointer:
		if rv.IsNil() {
			return Null
		}
		if s, ok := opaqueString(rv); ok {
			return StringValue(s)
		}
		return c.ref(rv, func(rv reflect.Value) Value {
			return c.convert(rv.Elem().Interface())
		})
	case reflect.Interface:
		if rv.IsNil() {
			return Null
		}
		return c.convert(rv.Elem().Interface())
	case reflect.Func:
		if rv.IsNil() {
			return Null
		}
		return wrapFunc(rv)
	case reflect.String:
		return StringValue(rv.String())
	case reflect.Bool:
		return BoolValue(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return NumberValue(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return NumberValue(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return NumberValue(rv.Float())
	}
	if s, ok := rv.Interface().(fmt.Stringer); ok {
		return StringValue(s.String())
	}
	return StringValue(fmt.Sprintf("%v", rv.Interface()))
}

func (c *converter) list(rv reflect.Value) Value {
	n := rv.Len()
	items := make([]Value, n)
	for i := 0; i < n; i++ {
		items[i] = c.convert(rv.Index(i).Interface())
	}
	return NewList(items...)
}

func (c *converter) dict(rv reflect.Value) Value {
	keys := rv.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	d := NewDict(len(keys))
	for _, k := range keys {
		d.Set(k.String(), c.convert(rv.MapIndex(k).Interface()))
	}
	return d
}

func (c *converter) fromStruct(rv reflect.Value) Value {
	rt := rv.Type()
	d := NewDict(rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag, ok := f.Tag.Lookup("json"); ok {
			tagName, _, _ := strings.Cut(tag, ",")
			if tagName == "-" {
				continue
			}
			if tagName != "" {
				name = tagName
			}
		}
		d.Set(name, c.convert(rv.Field(i).Interface()))
	}
	return d
}

// opaqueString returns the String form of a struct (or pointer to one) that
// exports no fields, such as time.Time.
func opaqueString(rv reflect.Value) (string, bool) {
	st := rv.Type()
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct || !rv.CanInterface() {
		return "", false
	}
	for i := 0; i < st.NumField(); i++ {
		if st.Field(i).IsExported() {
			return "", false
		}
	}
	s, ok := rv.Interface().(fmt.Stringer)
	if !ok {
		return "", false
	}
	return s.String(), true
}

// wrapFunc adapts an arbitrary Go function. Arguments are converted to the
// parameter types; a trailing error result is returned as the call error.
func wrapFunc(fn reflect.Value) Value {
	ft := fn.Type()
	return CallableValue{
		Fn: func(args []Value) (Value, error) {
			nin := ft.NumIn()
			fixed := nin
			if ft.IsVariadic() {
				fixed = nin - 1
			}
			in := make([]reflect.Value, 0, len(args))
			for i := 0; i < fixed; i++ {
				var arg Value = Undefined
				if i < len(args) {
					arg = args[i]
				}
				av, err := convertArg(arg, ft.In(i))
				if err != nil {
					return nil, fmt.Errorf("argument %d: %w", i+1, err)
				}
				in = append(in, av)
			}
			if ft.IsVariadic() {
				et := ft.In(nin - 1).Elem()
				for i := fixed; i < len(args); i++ {
					av, err := convertArg(args[i], et)
					if err != nil {
						return nil, fmt.Errorf("argument %d: %w", i+1, err)
					}
					in = append(in, av)
				}
			}
			out := fn.Call(in)
			switch len(out) {
			case 0:
				return Undefined, nil
			case 1:
				if ft.Out(0) == errorType {
					if err, _ := out[0].Interface().(error); err != nil {
						return nil, err
					}
					return Undefined, nil
				}
				return FromGo(out[0].Interface()), nil
			default:
				if ft.Out(len(out)-1) == errorType {
					if err, _ := out[len(out)-1].Interface().(error); err != nil {
						return nil, err
					}
				}
				return FromGo(out[0].Interface()), nil
			}
		},
	}
}

func convertArg(v Value, t reflect.Type) (reflect.Value, error) {
	if t == valueType {
		return reflect.ValueOf(&v).Elem(), nil
	}
	if t.Kind() == reflect.Interface && reflect.TypeOf(v).Implements(t) {
		return reflect.ValueOf(v), nil
	}
	g := ToGo(v)
	if g == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(g)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if t.Kind() == reflect.String {
		return reflect.ValueOf(v.String()).Convert(t), nil
	}
	if rv.Kind() == reflect.Float64 && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %s as %s", TypeName(v), t)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// ToGo converts a Value back to plain Go data: nil, bool, float64, string,
// []any, map[string]any or the callable's function.
func ToGo(v Value) any {
	switch t := v.(type) {
	case nil, UndefinedValue, NullValue:
		return nil
	case BoolValue:
		return bool(t)
	case NumberValue:
		return float64(t)
	case StringValue:
		return string(t)
	case *ListValue:
		out := make([]any, len(t.items))
		for i, it := range t.items {
			out[i] = ToGo(it)
		}
		return out
	case *DictValue:
		out := make(map[string]any, t.Len())
		for _, k := range t.keys {
			out[k] = ToGo(t.m[k])
		}
		return out
	case CallableValue:
		return t.Fn
	default:
		return v.String()
	}
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	// Exponent without zero padding: 1e-7, 1.5e+21.
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mant + "e" + exp[:1] + digits
}

// toNumber converts v to a number the way arithmetic operators do.
func toNumber(v Value) float64 {
	switch t := v.(type) {
	case NumberValue:
		return float64(t)
	case BoolValue:
		if t {
			return 1
		}
		return 0
	case NullValue:
		return 0
	case StringValue:
		s := strings.TrimSpace(string(t))
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
		return math.NaN()
	case *ListValue:
		switch t.Len() {
		case 0:
			return 0
		case 1:
			return toNumber(t.items[0])
		}
	}
	return math.NaN()
}

func isObject(v Value) bool {
	switch v.(type) {
	case *ListValue, *DictValue, CallableValue:
		return true
	}
	return false
}

func isNullish(v Value) bool {
	switch v.(type) {
	case UndefinedValue, NullValue:
		return true
	}
	return false
}

// strictEqual implements ===: same type and same value, lists and dicts by
// identity.
func strictEqual(a, b Value) bool {
	switch x := a.(type) {
	case UndefinedValue:
		_, ok := b.(UndefinedValue)
		return ok
	case NullValue:
		_, ok := b.(NullValue)
		return ok
	case BoolValue:
		y, ok := b.(BoolValue)
		return ok && x == y
	case NumberValue:
		y, ok := b.(NumberValue)
		return ok && x == y
	case StringValue:
		y, ok := b.(StringValue)
		return ok && x == y
	case *ListValue:
		y, ok := b.(*ListValue)
		return ok && x == y
	case *DictValue:
		y, ok := b.(*DictValue)
		return ok && x == y
	case CallableValue:
		y, ok := b.(CallableValue)
		return ok && reflect.ValueOf(x.Fn).Pointer() == reflect.ValueOf(y.Fn).Pointer()
	}
	return a == b
}

// looseEqual implements ==: null and undefined equal each other, booleans
// and numeric strings compare as numbers, objects compare to primitives by
// their string form.
func looseEqual(a, b Value) bool {
	if isNullish(a) || isNullish(b) {
		return isNullish(a) && isNullish(b)
	}
	if reflect.TypeOf(a) == reflect.TypeOf(b) {
		return strictEqual(a, b)
	}
	switch {
	case isObject(a) && isObject(b):
		return false
	case isObject(a):
		return looseEqual(StringValue(a.String()), b)
	case isObject(b):
		return looseEqual(a, StringValue(b.String()))
	}
	if _, ok := a.(BoolValue); ok {
		return looseEqual(NumberValue(toNumber(a)), b)
	}
	if _, ok := b.(BoolValue); ok {
		return looseEqual(a, NumberValue(toNumber(b)))
	}
	return toNumber(a) == toNumber(b)
}

func runeCount(s StringValue) int { return utf8.RuneCountInString(string(s)) }
