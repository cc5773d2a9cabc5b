// Package data decodes YAML and JSON documents into template contexts.
// Mappings become dicts that keep the document's key order.
package data

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/neurodesk/curly/pkg/curly"
	"gopkg.in/yaml.v3"
)

// Decode parses a YAML (or JSON) document whose top level is a mapping. An
// empty document yields an empty context.
func Decode(b []byte) (curly.Context, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(b)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return curly.Context{}, nil
		}
		return nil, fmt.Errorf("decoding data: %w", err)
	}
	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("decoding data: top level must be a mapping, got %s", kindName(root))
	}
	v, err := FromNode(root)
	if err != nil {
		return nil, err
	}
	dict := v.(*curly.DictValue)
	ctx := make(curly.Context, dict.Len())
	for _, k := range dict.Keys() {
		ctx[k], _ = dict.Get(k)
	}
	return ctx, nil
}

// Load reads and decodes a data file.
func Load(path string) (curly.Context, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading data file: %w", err)
	}
	ctx, err := Decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return ctx, nil
}

// FromNode converts a YAML node to a template value. An alias that refers
// back into its own anchor is an error.
func FromNode(n *yaml.Node) (curly.Value, error) {
	d := &nodeDecoder{expanding: map[*yaml.Node]bool{}}
	return d.decode(n)
}

type nodeDecoder struct {
	// anchors whose alias is being expanded
	expanding map[*yaml.Node]bool
}

func (d *nodeDecoder) decode(n *yaml.Node) (curly.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return curly.Null, nil
		}
		return d.decode(n.Content[0])
	case yaml.AliasNode:
		if d.expanding[n.Alias] {
			return nil, fmt.Errorf("line %d: alias *%s refers to its own anchor", n.Line, n.Value)
		}
		d.expanding[n.Alias] = true
		v, err := d.decode(n.Alias)
		delete(d.expanding, n.Alias)
		return v, err
	case yaml.MappingNode:
		dict := curly.NewDict(len(n.Content) / 2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := d.decode(val)
			if err != nil {
				return nil, err
			}
			dict.Set(key.Value, v)
		}
		return dict, nil
	case yaml.SequenceNode:
		items := make([]curly.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.decode(c)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return curly.NewList(items...), nil
	case yaml.ScalarNode:
		var v any
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return curly.FromGo(v), nil
	}
	return nil, fmt.Errorf("line %d: unsupported node %s", n.Line, kindName(n))
}

// ParseSet parses a "key=value" assignment. The value is read as a YAML
// flow scalar or collection, so "n=3" binds a number and "xs=[a, b]" a list.
// Dotted keys assign into nested dicts, creating them as needed.
func ParseSet(ctx curly.Context, assignment string) error {
	key, raw, ok := strings.Cut(assignment, "=")
	if !ok || key == "" {
		return fmt.Errorf("invalid assignment %q: expected key=value", assignment)
	}
	var n yaml.Node
	var v curly.Value = curly.StringValue(raw)
	if raw != "" {
		if err := yaml.Unmarshal([]byte(raw), &n); err == nil {
			parsed, err := FromNode(&n)
			if err == nil {
				v = parsed
			}
		}
	}

	parts := strings.Split(key, ".")
	if len(parts) == 1 {
		ctx[key] = v
		return nil
	}
	var cur *curly.DictValue
	if existing, ok := ctx[parts[0]].(*curly.DictValue); ok {
		cur = existing
	} else {
		cur = curly.NewDict(1)
		ctx[parts[0]] = cur
	}
	for _, p := range parts[1 : len(parts)-1] {
		next, ok := cur.Get(p)
		d, isDict := next.(*curly.DictValue)
		if !ok || !isDict {
			d = curly.NewDict(1)
			cur.Set(p, d)
		}
		cur = d
	}
	cur.Set(parts[len(parts)-1], v)
	return nil
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	}
	return "unknown"
}
