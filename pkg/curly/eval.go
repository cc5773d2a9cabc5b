package curly

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Evaluate compiles and evaluates a single expression, including any filter
// chain, against scope. Templates evaluate pre-parsed pipelines instead; this
// is the entry point for hosts that only need expressions.
func Evaluate(source string, scope *Scope, filters Filters) (Value, error) {
	pl, err := CompilePipeline(source)
	if err != nil {
		return nil, err
	}
	if scope == nil {
		scope = NewScope(nil)
	}
	e := &evaluator{filters: filters}
	return e.run(pl, scope)
}

type evaluator struct {
	filters Filters
}

// run evaluates the base expression and feeds the result through each
// filter in order. Filter arguments are evaluated in the same scope.
func (e *evaluator) run(pl *Pipeline, s *Scope) (Value, error) {
	val, err := e.eval(pl.Base, s)
	if err != nil {
		return nil, err
	}
	for _, fc := range pl.Filters {
		fn, ok := e.filters[fc.Name]
		if !ok || fn == nil {
			return nil, e.unknownFilter(fc)
		}
		args := make([]Value, 0, len(fc.Args))
		for _, a := range fc.Args {
			v, err := e.eval(a, s)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		out, err := fn(val, args...)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", fc.Name, err)
		}
		if out == nil {
			out = Undefined
		}
		val = out
	}
	return val, nil
}

func (e *evaluator) unknownFilter(fc FilterCall) error {
	err := newError(UnknownFilter, fc.At, "%q", fc.Name)
	names := make([]string, 0, len(e.filters))
	for name := range e.filters {
		names = append(names, name)
	}
	ranks := fuzzy.RankFindFold(fc.Name, names)
	if len(ranks) > 0 {
		sort.Sort(ranks)
		err.Msg += fmt.Sprintf(" (did you mean %q?)", ranks[0].Target)
	}
	return err
}

func (e *evaluator) eval(x Expr, s *Scope) (Value, error) {
	switch n := x.(type) {
	case *Literal:
		return n.Value, nil
	case *Identifier:
		return s.Get(n.Name), nil
	case *Member:
		obj, err := e.eval(n.Object, s)
		if err != nil {
			return nil, err
		}
		if isNullish(obj) {
			return Undefined, nil
		}
		key, err := e.eval(n.Property, s)
		if err != nil {
			return nil, err
		}
		return getMember(obj, key), nil
	case *Call:
		callee, err := e.eval(n.Callee, s)
		if err != nil {
			return nil, err
		}
		fn, ok := callee.(CallableValue)
		if !ok || fn.Fn == nil {
			return nil, newError(NotAFunction, n.At, "%s is not a function (it is %s)", describeExpr(n.Callee), TypeName(callee))
		}
		args := make([]Value, 0, len(n.Args))
		for _, a := range n.Args {
			v, err := e.eval(a, s)
			if err != nil {
				return nil, err
			}
			args = append(args, v)
		}
		out, err := fn.Fn(args)
		if err != nil {
			return nil, fmt.Errorf("calling %s: %w", describeExpr(n.Callee), err)
		}
		if out == nil {
			return Undefined, nil
		}
		return out, nil
	case *Binary:
		left, err := e.eval(n.Left, s)
		if err != nil {
			return nil, err
		}
		switch n.Op {
		case TokAnd:
			if !left.Truth() {
				return left, nil
			}
			return e.eval(n.Right, s)
		case TokOr:
			if left.Truth() {
				return left, nil
			}
			return e.eval(n.Right, s)
		}
		right, err := e.eval(n.Right, s)
		if err != nil {
			return nil, err
		}
		return binaryOp(n.Op, left, right), nil
	case *Unary:
		v, err := e.eval(n.Operand, s)
		if err != nil {
			return nil, err
		}
		if n.Op == TokNot {
			return BoolValue(!v.Truth()), nil
		}
		return NumberValue(-toNumber(v)), nil
	case *Conditional:
		test, err := e.eval(n.Test, s)
		if err != nil {
			return nil, err
		}
		if test.Truth() {
			return e.eval(n.Consequent, s)
		}
		return e.eval(n.Alternate, s)
	}
	return nil, fmt.Errorf("unhandled expression node: %T", x)
}

func binaryOp(op TokenKind, a, b Value) Value {
	switch op {
	case TokPlus:
		_, as := a.(StringValue)
		_, bs := b.(StringValue)
		if as || bs || isObject(a) || isObject(b) {
			return StringValue(concatString(a) + concatString(b))
		}
		return NumberValue(toNumber(a) + toNumber(b))
	case TokMinus:
		return NumberValue(toNumber(a) - toNumber(b))
	case TokStar:
		return NumberValue(toNumber(a) * toNumber(b))
	case TokSlash:
		return NumberValue(toNumber(a) / toNumber(b))
	case TokPercent:
		return NumberValue(math.Mod(toNumber(a), toNumber(b)))
	case TokLT, TokGT, TokLE, TokGE:
		return BoolValue(compare(op, a, b))
	case TokEq:
		return BoolValue(looseEqual(a, b))
	case TokNe:
		return BoolValue(!looseEqual(a, b))
	case TokStrictEq:
		return BoolValue(strictEqual(a, b))
	case TokStrictNe:
		return BoolValue(!strictEqual(a, b))
	}
	return Undefined
}

// concatString is the operand form used by +. Unlike output, null and
// undefined spell themselves out.
func concatString(v Value) string {
	switch v.(type) {
	case UndefinedValue:
		return "undefined"
	case NullValue:
		return "null"
	}
	return v.String()
}

// compare orders two strings lexically and anything else numerically. A NaN
// operand makes every comparison false.
func compare(op TokenKind, a, b Value) bool {
	as, aok := a.(StringValue)
	bs, bok := b.(StringValue)
	if aok && bok {
		c := strings.Compare(string(as), string(bs))
		switch op {
		case TokLT:
			return c < 0
		case TokGT:
			return c > 0
		case TokLE:
			return c <= 0
		default:
			return c >= 0
		}
	}
	x, y := toNumber(a), toNumber(b)
	switch op {
	case TokLT:
		return x < y
	case TokGT:
		return x > y
	case TokLE:
		return x <= y
	default:
		return x >= y
	}
}

// getMember indexes obj by key. Missing members are Undefined.
func getMember(obj, key Value) Value {
	switch o := obj.(type) {
	case *DictValue:
		if v, ok := o.Get(key.String()); ok {
			return v
		}
	case *ListValue:
		if i, ok := indexOf(key); ok {
			return o.Index(i)
		}
		if key.String() == "length" {
			return NumberValue(o.Len())
		}
	case StringValue:
		if i, ok := indexOf(key); ok {
			runes := []rune(string(o))
			if i < len(runes) {
				return StringValue(string(runes[i]))
			}
			return Undefined
		}
		if key.String() == "length" {
			return NumberValue(runeCount(o))
		}
	case LookupHook:
		if v, ok := o.OnLookup(key.String()); ok && v != nil {
			return v
		}
	}
	return Undefined
}

// indexOf reports whether key is a non-negative integer index, either as a
// number or as its canonical decimal string.
func indexOf(key Value) (int, bool) {
	switch k := key.(type) {
	case NumberValue:
		f := float64(k)
		if f >= 0 && f == math.Trunc(f) && f <= math.MaxInt32 {
			return int(f), true
		}
	case StringValue:
		n, err := strconv.Atoi(string(k))
		if err == nil && n >= 0 && strconv.Itoa(n) == string(k) {
			return n, true
		}
	}
	return 0, false
}

// describeExpr renders simple callee expressions for error messages.
func describeExpr(x Expr) string {
	switch n := x.(type) {
	case *Identifier:
		return n.Name
	case *Member:
		obj := describeExpr(n.Object)
		if lit, ok := n.Property.(*Literal); ok {
			if n.Computed {
				if _, isStr := lit.Value.(StringValue); isStr {
					return fmt.Sprintf("%s[%q]", obj, lit.Value.String())
				}
				return fmt.Sprintf("%s[%s]", obj, lit.Value.String())
			}
			return obj + "." + lit.Value.String()
		}
		return obj + "[...]"
	case *Call:
		return describeExpr(n.Callee) + "(...)"
	case *Literal:
		if _, ok := n.Value.(StringValue); ok {
			return strconv.Quote(n.Value.String())
		}
		return n.Value.String()
	}
	return "expression"
}
