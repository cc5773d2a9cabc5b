package curly

import (
	"errors"
	"testing"
)

func parse(t *testing.T, src string) Expr {
	t.Helper()
	toks, err := Tokenize(src)
	if err != nil {
		t.Fatalf("tokenize %q: %v", src, err)
	}
	x, err := ParseExpression(toks)
	if err != nil {
		t.Fatalf("parse %q: %v", src, err)
	}
	return x
}

func TestParsePostfixChain(t *testing.T) {
	x := parse(t, "a.b(c)[0]")
	idx, ok := x.(*Member)
	if !ok || !idx.Computed {
		t.Fatalf("want computed member, got %#v", x)
	}
	call, ok := idx.Object.(*Call)
	if !ok || len(call.Args) != 1 {
		t.Fatalf("want call with one arg, got %#v", idx.Object)
	}
	dot, ok := call.Callee.(*Member)
	if !ok || dot.Computed {
		t.Fatalf("want dot member, got %#v", call.Callee)
	}
	if id, ok := dot.Object.(*Identifier); !ok || id.Name != "a" {
		t.Fatalf("want identifier a, got %#v", dot.Object)
	}
	if lit, ok := dot.Property.(*Literal); !ok || lit.Value != StringValue("b") {
		t.Fatalf("want property b, got %#v", dot.Property)
	}
}

func TestParsePrecedence(t *testing.T) {
	// a || b && c == d + e * -f
	x := parse(t, "a || b && c == d + e * -f")
	or, ok := x.(*Binary)
	if !ok || or.Op != TokOr {
		t.Fatalf("root: %#v", x)
	}
	and, ok := or.Right.(*Binary)
	if !ok || and.Op != TokAnd {
		t.Fatalf("and: %#v", or.Right)
	}
	eq, ok := and.Right.(*Binary)
	if !ok || eq.Op != TokEq {
		t.Fatalf("eq: %#v", and.Right)
	}
	add, ok := eq.Right.(*Binary)
	if !ok || add.Op != TokPlus {
		t.Fatalf("add: %#v", eq.Right)
	}
	mul, ok := add.Right.(*Binary)
	if !ok || mul.Op != TokStar {
		t.Fatalf("mul: %#v", add.Right)
	}
	if neg, ok := mul.Right.(*Unary); !ok || neg.Op != TokMinus {
		t.Fatalf("neg: %#v", mul.Right)
	}
}

func TestParseLeftAssociative(t *testing.T) {
	x := parse(t, "a - b - c")
	outer, ok := x.(*Binary)
	if !ok {
		t.Fatalf("root: %#v", x)
	}
	if _, ok := outer.Left.(*Binary); !ok {
		t.Fatalf("want (a - b) - c, got %#v", x)
	}
	if id, ok := outer.Right.(*Identifier); !ok || id.Name != "c" {
		t.Fatalf("right: %#v", outer.Right)
	}
}

func TestParseTernaryRightAssociative(t *testing.T) {
	x := parse(t, "a ? b : c ? d : e")
	c, ok := x.(*Conditional)
	if !ok {
		t.Fatalf("root: %#v", x)
	}
	if _, ok := c.Alternate.(*Conditional); !ok {
		t.Fatalf("want nested conditional in alternate, got %#v", c.Alternate)
	}
}

func TestParsePipeline(t *testing.T) {
	pl, err := CompilePipeline("x.y | upper | truncate(3, f(a | b)) | join")
	if err == nil {
		t.Fatalf("pipes inside filter arguments must not parse, got %+v", pl)
	}

	pl, err = CompilePipeline("(a || b) | truncate(3, '|') | upper")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := pl.Base.(*Binary); !ok {
		t.Fatalf("base: %#v", pl.Base)
	}
	if len(pl.Filters) != 2 {
		t.Fatalf("want 2 filters, got %d", len(pl.Filters))
	}
	if fc := pl.Filters[0]; fc.Name != "truncate" || len(fc.Args) != 2 {
		t.Fatalf("filter 0: %+v", fc)
	}
	if fc := pl.Filters[1]; fc.Name != "upper" || fc.Args != nil {
		t.Fatalf("filter 1: %+v", fc)
	}
}

func TestParseErrors(t *testing.T) {
	for _, src := range []string{
		"(a",
		"a[1",
		"f(a, b",
		"f(a b)",
		"a ? b",
		"a.",
		"a.1",
		"*a",
		"a +",
		"a b",
		")",
		"",
		"| upper",
		"a | upper(",
		"a | upper extra",
	} {
		_, err := CompilePipeline(src)
		if !errors.Is(err, ErrExpressionSyntax) {
			t.Fatalf("%q: want expression syntax error, got %v", src, err)
		}
	}
}
