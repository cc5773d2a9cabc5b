package curly

import (
	"bytes"
	"fmt"
	"io"
)

// Render renders the template against ctx.
func (t *Template) Render(ctx Context) (string, error) {
	return t.RenderScope(NewScope(ctx))
}

// RenderScope renders the template against an existing scope chain. The
// scope is read, never written.
func (t *Template) RenderScope(s *Scope) (string, error) {
	var buf bytes.Buffer
	if err := t.renderTo(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Execute renders the template against ctx and writes the result to w.
// Nothing is written if rendering fails.
func (t *Template) Execute(w io.Writer, ctx Context) error {
	var buf bytes.Buffer
	if err := t.renderTo(&buf, NewScope(ctx)); err != nil {
		return err
	}
	_, err := buf.WriteTo(w)
	return err
}

func (t *Template) renderTo(buf *bytes.Buffer, s *Scope) error {
	r := &renderer{t: t, ev: evaluator{filters: t.filters}}
	if err := r.renderNodes(buf, t.nodes, s); err != nil {
		return annotate(err, t.Name, t.Source)
	}
	return nil
}

type renderer struct {
	t  *Template
	ev evaluator
}

func (r *renderer) renderNodes(buf *bytes.Buffer, nodes []Node, s *Scope) error {
	for _, n := range nodes {
		switch t := n.(type) {
		case *TextNode:
			buf.WriteString(t.Text)
		case *OutputNode:
			v, err := r.ev.run(t.Pipeline, s)
			if err != nil {
				return err
			}
			buf.WriteString(r.t.escape(v.String()))
		case *IfNode:
			v, err := r.ev.run(t.Test, s)
			if err != nil {
				return err
			}
			branch := t.Else
			if v.Truth() {
				branch = t.Then
			}
			if err := r.renderNodes(buf, branch, s); err != nil {
				return err
			}
		case *ForNode:
			v, err := r.ev.run(t.Items, s)
			if err != nil {
				return err
			}
			for _, item := range iterate(v) {
				child := s.Child()
				child.Set(t.Var, item)
				if err := r.renderNodes(buf, t.Body, child); err != nil {
					return err
				}
			}
		case *EachNode:
			v, err := r.ev.run(t.Items, s)
			if err != nil {
				return err
			}
			if err := r.renderEach(buf, t, v, s); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unhandled node type: %T", n)
		}
	}
	return nil
}

func (r *renderer) renderEach(buf *bytes.Buffer, n *EachNode, v Value, s *Scope) error {
	bind := func(key, val Value) error {
		child := s.Child()
		child.Set(n.Key, key)
		child.Set(n.Value, val)
		return r.renderNodes(buf, n.Body, child)
	}
	switch c := v.(type) {
	case *ListValue:
		for i, item := range c.items {
			if err := bind(NumberValue(i), item); err != nil {
				return err
			}
		}
	case *DictValue:
		for _, k := range c.keys {
			if err := bind(StringValue(k), c.m[k]); err != nil {
				return err
			}
		}
	}
	return nil
}

// iterate returns the elements a {{#for}} visits: list items or the
// characters of a string. Other values yield nothing.
func iterate(v Value) []Value {
	switch t := v.(type) {
	case *ListValue:
		return t.items
	case StringValue:
		out := make([]Value, 0, len(t))
		for _, r := range string(t) {
			out = append(out, StringValue(string(r)))
		}
		return out
	}
	return nil
}
