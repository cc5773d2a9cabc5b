package curly

import (
	"fmt"
	"regexp"
	"slices"
)

var (
	forSpec  = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$]*)\s+in\s+(\S[\s\S]*)$`)
	eachSpec = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$]*)\s*(?:,\s*([A-Za-z_$][A-Za-z0-9_$]*))?\s+in\s+(\S[\s\S]*)$`)
)

// DefaultKeyName is bound to the index or key in {{#each v in ...}} when no
// key name is given.
const DefaultKeyName = "index"

// Parse parses template source into its node tree. Every directive
// expression is parsed as well, so any syntax error surfaces here.
func Parse(src string) ([]Node, error) {
	toks, err := TokenizeTemplate(src)
	if err != nil {
		return nil, err
	}
	return ParseTokens(toks)
}

// ParseTokens builds the node tree from a template token stream.
func ParseTokens(toks []Token) ([]Node, error) {
	p := &templateParser{toks: toks}
	nodes, end, err := p.parseNodes(nil)
	if err != nil {
		return nil, err
	}
	if end != nil {
		return nil, p.stray(*end, nil)
	}
	return nodes, nil
}

type templateParser struct {
	toks []Token
	i    int
}

// parseNodes parses until one of the until kinds is reached, which is
// consumed and returned. At end of input it returns a nil end token. open is
// the block directive being parsed, for error messages.
func (p *templateParser) parseNodes(open *Token, until ...TokenKind) (nodes []Node, end *Token, err error) {
	for p.i < len(p.toks) {
		tok := p.toks[p.i]
		p.i++
		if slices.Contains(until, tok.Kind) {
			return nodes, &tok, nil
		}
		switch tok.Kind {
		case TokText:
			nodes = append(nodes, &TextNode{Text: tok.Text})
		case TokExpression:
			pl, err := compilePipelineAt(tok.Text, tok.TextPos)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, &OutputNode{Expr: tok.Text, Pipeline: pl, At: tok.Pos})
		case TokIf:
			n, err := p.parseIf(tok, tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case TokFor:
			n, err := p.parseFor(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		case TokEach:
			n, err := p.parseEach(tok)
			if err != nil {
				return nil, nil, err
			}
			nodes = append(nodes, n)
		default:
			return nil, nil, p.stray(tok, open)
		}
	}
	return nodes, nil, nil
}

// stray reports a closing or branch directive that does not belong where it
// appears.
func (p *templateParser) stray(tok Token, open *Token) error {
	var msg string
	switch tok.Kind {
	case TokElseIf, TokElse:
		msg = fmt.Sprintf("%s outside of {{#if}}", tok.Kind)
	default:
		msg = fmt.Sprintf("unexpected %s", tok.Kind)
	}
	if open != nil {
		msg += fmt.Sprintf(" inside %s opened at %s", open.Kind, open.Pos)
	}
	return newError(StructuralSyntaxError, tok.Pos, "%s", msg)
}

func unclosed(open Token) error {
	closer := map[TokenKind]TokenKind{TokIf: TokEndIf, TokFor: TokEndFor, TokEach: TokEndEach}[open.Kind]
	return newError(StructuralSyntaxError, open.Pos, "%s is never closed: missing %s", open.Kind, closer)
}

// parseIf parses the branch opened by tok (an {{#if}} or {{#elseif}}). root
// is the {{#if}} that started the chain. An {{#elseif}} becomes a nested
// IfNode in Else that consumes the chain's {{/if}}.
func (p *templateParser) parseIf(tok, root Token) (*IfNode, error) {
	test, err := compilePipelineAt(tok.Text, tok.TextPos)
	if err != nil {
		return nil, err
	}
	n := &IfNode{Cond: tok.Text, Test: test, At: tok.Pos}
	body, end, err := p.parseNodes(&root, TokElseIf, TokElse, TokEndIf)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, unclosed(root)
	}
	n.Then = body

	switch end.Kind {
	case TokElseIf:
		alt, err := p.parseIf(*end, root)
		if err != nil {
			return nil, err
		}
		n.Else = []Node{alt}
	case TokElse:
		body, end2, err := p.parseNodes(&root, TokEndIf, TokElse, TokElseIf)
		if err != nil {
			return nil, err
		}
		if end2 == nil {
			return nil, unclosed(root)
		}
		if end2.Kind != TokEndIf {
			return nil, newError(StructuralSyntaxError, end2.Pos, "%s after {{#else}}: {{#else}} must be the last branch of {{#if}} opened at %s", end2.Kind, root.Pos)
		}
		n.Else = body
	}
	return n, nil
}

func (p *templateParser) parseFor(tok Token) (*ForNode, error) {
	m := forSpec.FindStringSubmatchIndex(tok.Text)
	if m == nil {
		return nil, newError(StructuralSyntaxError, tok.Pos, "malformed {{#for}}: expected \"name in expression\", found %q", tok.Text)
	}
	iterable := tok.Text[m[4]:m[5]]
	items, err := compilePipelineAt(iterable, tok.TextPos.advance(tok.Text[:m[4]]))
	if err != nil {
		return nil, err
	}
	n := &ForNode{Var: tok.Text[m[2]:m[3]], Iterable: iterable, Items: items, At: tok.Pos}
	body, end, err := p.parseNodes(&tok, TokEndFor)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, unclosed(tok)
	}
	n.Body = body
	return n, nil
}

func (p *templateParser) parseEach(tok Token) (*EachNode, error) {
	m := eachSpec.FindStringSubmatchIndex(tok.Text)
	if m == nil {
		return nil, newError(StructuralSyntaxError, tok.Pos, "malformed {{#each}}: expected \"value[, key] in expression\", found %q", tok.Text)
	}
	key := DefaultKeyName
	if m[4] >= 0 {
		key = tok.Text[m[4]:m[5]]
	}
	iterable := tok.Text[m[6]:m[7]]
	items, err := compilePipelineAt(iterable, tok.TextPos.advance(tok.Text[:m[6]]))
	if err != nil {
		return nil, err
	}
	n := &EachNode{Value: tok.Text[m[2]:m[3]], Key: key, Iterable: iterable, Items: items, At: tok.Pos}
	body, end, err := p.parseNodes(&tok, TokEndEach)
	if err != nil {
		return nil, err
	}
	if end == nil {
		return nil, unclosed(tok)
	}
	n.Body = body
	return n, nil
}
