package curly

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Visitor is called for every node of a template tree by Walk.
type Visitor interface {
	Visit(n Node) error
}

// VisitorFunc adapts a function to Visitor.
type VisitorFunc func(n Node) error

func (f VisitorFunc) Visit(n Node) error { return f(n) }

// Walk visits n and then its children depth first, in source order.
func Walk(v Visitor, n Node) error {
	if err := v.Visit(n); err != nil {
		return err
	}
	switch t := n.(type) {
	case *IfNode:
		if err := WalkAll(v, t.Then); err != nil {
			return err
		}
		return WalkAll(v, t.Else)
	case *ForNode:
		return WalkAll(v, t.Body)
	case *EachNode:
		return WalkAll(v, t.Body)
	}
	return nil
}

// WalkAll walks each node of a node list.
func WalkAll(v Visitor, nodes []Node) error {
	for _, c := range nodes {
		if err := Walk(v, c); err != nil {
			return err
		}
	}
	return nil
}

// Pretty returns a line-oriented string representation of the tree.
func Pretty(nodes []Node) string {
	var buf bytes.Buffer
	for _, n := range nodes {
		ppNode(&buf, 0, n)
	}
	return buf.String()
}

func ppNode(buf *bytes.Buffer, indent int, n Node) {
	ind := strings.Repeat(" ", indent)
	children := func(nodes []Node) {
		for _, c := range nodes {
			ppNode(buf, indent+2, c)
		}
	}
	switch t := n.(type) {
	case *TextNode:
		fmt.Fprintf(buf, "%sText(%q)\n", ind, t.Text)
	case *OutputNode:
		fmt.Fprintf(buf, "%sOutput(%q)\n", ind, t.Expr)
	case *IfNode:
		fmt.Fprintf(buf, "%sIf(%q)\n", ind, t.Cond)
		children(t.Then)
		if len(t.Else) > 0 {
			fmt.Fprintf(buf, "%sElse\n", ind)
			children(t.Else)
		}
	case *ForNode:
		fmt.Fprintf(buf, "%sFor(%s in %q)\n", ind, t.Var, t.Iterable)
		children(t.Body)
	case *EachNode:
		fmt.Fprintf(buf, "%sEach(%s, %s in %q)\n", ind, t.Value, t.Key, t.Iterable)
		children(t.Body)
	}
}

// Variables returns the sorted top-level names a template reads from its
// context. Loop variables are excluded inside the loop that binds them.
func Variables(nodes []Node) []string {
	seen := map[string]bool{}
	collectNodes(nodes, map[string]bool{}, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Variables lists the context names the template reads.
func (t *Template) Variables() []string { return Variables(t.nodes) }

func collectNodes(nodes []Node, bound, seen map[string]bool) {
	for _, n := range nodes {
		switch t := n.(type) {
		case *OutputNode:
			collectPipeline(t.Pipeline, bound, seen)
		case *IfNode:
			collectPipeline(t.Test, bound, seen)
			collectNodes(t.Then, bound, seen)
			collectNodes(t.Else, bound, seen)
		case *ForNode:
			collectPipeline(t.Items, bound, seen)
			collectNodes(t.Body, with(bound, t.Var), seen)
		case *EachNode:
			collectPipeline(t.Items, bound, seen)
			collectNodes(t.Body, with(bound, t.Value, t.Key), seen)
		}
	}
}

func with(bound map[string]bool, names ...string) map[string]bool {
	out := make(map[string]bool, len(bound)+len(names))
	for k := range bound {
		out[k] = true
	}
	for _, n := range names {
		out[n] = true
	}
	return out
}

func collectPipeline(pl *Pipeline, bound, seen map[string]bool) {
	if pl == nil {
		return
	}
	collectExpr(pl.Base, bound, seen)
	for _, fc := range pl.Filters {
		for _, a := range fc.Args {
			collectExpr(a, bound, seen)
		}
	}
}

func collectExpr(x Expr, bound, seen map[string]bool) {
	switch n := x.(type) {
	case *Identifier:
		if !bound[n.Name] {
			seen[n.Name] = true
		}
	case *Member:
		collectExpr(n.Object, bound, seen)
		if n.Computed {
			collectExpr(n.Property, bound, seen)
		}
	case *Call:
		collectExpr(n.Callee, bound, seen)
		for _, a := range n.Args {
			collectExpr(a, bound, seen)
		}
	case *Binary:
		collectExpr(n.Left, bound, seen)
		collectExpr(n.Right, bound, seen)
	case *Unary:
		collectExpr(n.Operand, bound, seen)
	case *Conditional:
		collectExpr(n.Test, bound, seen)
		collectExpr(n.Consequent, bound, seen)
		collectExpr(n.Alternate, bound, seen)
	}
}
