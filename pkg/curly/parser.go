package curly

import (
	"slices"
	"strconv"
)

// ParseExpression parses a complete token stream (as produced by Tokenize)
// into an expression tree. Filter pipes are not part of this grammar; see
// ParsePipeline.
func ParseExpression(tokens []Token) (Expr, error) {
	p := &exprParser{toks: tokens}
	x, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return x, nil
}

// ParsePipeline parses a directive expression with an optional filter chain:
// base | name | name(arg, ...).
func ParsePipeline(tokens []Token) (*Pipeline, error) {
	segments := splitPipeline(tokens)
	base, err := ParseExpression(segments[0])
	if err != nil {
		return nil, err
	}
	pl := &Pipeline{Base: base}
	for _, seg := range segments[1:] {
		fc, err := parseFilterCall(seg)
		if err != nil {
			return nil, err
		}
		pl.Filters = append(pl.Filters, fc)
	}
	return pl, nil
}

// CompilePipeline lexes and parses an expression source string.
func CompilePipeline(source string) (*Pipeline, error) {
	return compilePipelineAt(source, startPos)
}

func compilePipelineAt(source string, base Pos) (*Pipeline, error) {
	toks, err := tokenizeAt(source, base)
	if err != nil {
		return nil, err
	}
	return ParsePipeline(toks)
}

// splitPipeline cuts the token stream at every '|' outside parentheses and
// brackets. Each segment is terminated with its own EOF token.
func splitPipeline(tokens []Token) [][]Token {
	var segments [][]Token
	depth := 0
	start := 0
	for i, t := range tokens {
		switch t.Kind {
		case TokLParen, TokLBracket:
			depth++
		case TokRParen, TokRBracket:
			if depth > 0 {
				depth--
			}
		case TokPipe:
			if depth > 0 {
				continue
			}
			seg := make([]Token, 0, i-start+1)
			seg = append(seg, tokens[start:i]...)
			seg = append(seg, Token{Kind: TokEOF, Pos: t.Pos, End: t.Pos.Offset, TextPos: t.Pos})
			segments = append(segments, seg)
			start = i + 1
		case TokEOF:
			segments = append(segments, tokens[start:i+1])
			return segments
		}
	}
	// Streams built by hand may lack an EOF token.
	last := Token{Kind: TokEOF}
	if n := len(tokens); n > 0 {
		last.Pos = tokens[n-1].Pos
	}
	return append(segments, append(tokens[start:len(tokens):len(tokens)], last))
}

func parseFilterCall(tokens []Token) (FilterCall, error) {
	p := &exprParser{toks: tokens}
	name := p.peek()
	if name.Kind != TokIdent {
		return FilterCall{}, newError(ExpressionSyntaxError, name.Pos, "expected filter name after '|', found %s", describeToken(name))
	}
	p.next()
	fc := FilterCall{Name: name.Text, At: name.Pos}
	if p.peek().Kind == TokLParen {
		p.next()
		args, err := p.parseArguments()
		if err != nil {
			return FilterCall{}, err
		}
		fc.Args = args
	}
	if err := p.expectEOF(); err != nil {
		return FilterCall{}, err
	}
	return fc, nil
}

type exprParser struct {
	toks []Token
	i    int
}

func (p *exprParser) peek() Token {
	if p.i >= len(p.toks) {
		if n := len(p.toks); n > 0 {
			return Token{Kind: TokEOF, Pos: p.toks[n-1].Pos}
		}
		return Token{Kind: TokEOF, Pos: startPos}
	}
	return p.toks[p.i]
}

func (p *exprParser) next() Token {
	t := p.peek()
	if p.i < len(p.toks) {
		p.i++
	}
	return t
}

func (p *exprParser) accept(kind TokenKind) bool {
	if p.peek().Kind == kind {
		p.next()
		return true
	}
	return false
}

func (p *exprParser) expectEOF() error {
	if t := p.peek(); t.Kind != TokEOF {
		return newError(ExpressionSyntaxError, t.Pos, "unexpected %s", describeToken(t))
	}
	return nil
}

func describeToken(t Token) string {
	switch t.Kind {
	case TokEOF:
		return "end of expression"
	case TokIdent, TokNumber, TokBool, TokNull, TokUndefined:
		return strconv.Quote(t.Text)
	case TokString:
		return "string " + strconv.Quote(t.Text)
	}
	return t.Kind.String()
}

// parseTernary: or ('?' ternary ':' ternary)?
func (p *exprParser) parseTernary() (Expr, error) {
	test, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peek().Kind != TokQuestion {
		return test, nil
	}
	q := p.next()
	cons, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Kind != TokColon {
		return nil, newError(ExpressionSyntaxError, t.Pos, "expected ':' in conditional expression, found %s", describeToken(t))
	}
	p.next()
	alt, err := p.parseTernary()
	if err != nil {
		return nil, err
	}
	return &Conditional{Test: test, Consequent: cons, Alternate: alt, At: q.Pos}, nil
}

// parseBinary parses one left-associative precedence level.
func (p *exprParser) parseBinary(operand func() (Expr, error), ops ...TokenKind) (Expr, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if !slices.Contains(ops, t.Kind) {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: t.Kind, Left: left, Right: right, At: t.Pos}
	}
}

func (p *exprParser) parseOr() (Expr, error) {
	return p.parseBinary(p.parseAnd, TokOr)
}

func (p *exprParser) parseAnd() (Expr, error) {
	return p.parseBinary(p.parseEquality, TokAnd)
}

func (p *exprParser) parseEquality() (Expr, error) {
	return p.parseBinary(p.parseRelational, TokEq, TokNe, TokStrictEq, TokStrictNe)
}

func (p *exprParser) parseRelational() (Expr, error) {
	return p.parseBinary(p.parseAdditive, TokLT, TokGT, TokLE, TokGE)
}

func (p *exprParser) parseAdditive() (Expr, error) {
	return p.parseBinary(p.parseMultiplicative, TokPlus, TokMinus)
}

func (p *exprParser) parseMultiplicative() (Expr, error) {
	return p.parseBinary(p.parseUnary, TokStar, TokSlash, TokPercent)
}

func (p *exprParser) parseUnary() (Expr, error) {
	t := p.peek()
	if t.Kind == TokNot || t.Kind == TokMinus {
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.Kind, Operand: operand, At: t.Pos}, nil
	}
	return p.parsePostfix()
}

func (p *exprParser) parsePostfix() (Expr, error) {
	x, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		switch t.Kind {
		case TokDot:
			p.next()
			name := p.next()
			switch name.Kind {
			case TokIdent, TokBool, TokNull, TokUndefined:
			default:
				return nil, newError(ExpressionSyntaxError, name.Pos, "expected property name after '.', found %s", describeToken(name))
			}
			prop := &Literal{Value: StringValue(name.Text), At: name.Pos}
			x = &Member{Object: x, Property: prop, At: t.Pos}
		case TokLBracket:
			p.next()
			index, err := p.parseTernary()
			if err != nil {
				return nil, err
			}
			if c := p.peek(); c.Kind != TokRBracket {
				return nil, newError(ExpressionSyntaxError, c.Pos, "expected ']', found %s", describeToken(c))
			}
			p.next()
			x = &Member{Object: x, Property: index, Computed: true, At: t.Pos}
		case TokLParen:
			p.next()
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			x = &Call{Callee: x, Args: args, At: t.Pos}
		default:
			return x, nil
		}
	}
}

// parseArguments parses a comma-separated list after '(' up to and including
// the closing ')'.
func (p *exprParser) parseArguments() ([]Expr, error) {
	var args []Expr
	if p.accept(TokRParen) {
		return args, nil
	}
	for {
		arg, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.accept(TokComma) {
			continue
		}
		if t := p.peek(); t.Kind != TokRParen {
			return nil, newError(ExpressionSyntaxError, t.Pos, "expected ')' after arguments, found %s", describeToken(t))
		}
		p.next()
		return args, nil
	}
}

func (p *exprParser) parsePrimary() (Expr, error) {
	t := p.next()
	switch t.Kind {
	case TokNumber:
		f, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, newError(ExpressionSyntaxError, t.Pos, "invalid number %q", t.Text)
		}
		return &Literal{Value: NumberValue(f), At: t.Pos}, nil
	case TokString:
		return &Literal{Value: StringValue(t.Text), At: t.Pos}, nil
	case TokBool:
		return &Literal{Value: BoolValue(t.Text == "true"), At: t.Pos}, nil
	case TokNull:
		return &Literal{Value: Null, At: t.Pos}, nil
	case TokUndefined:
		return &Literal{Value: Undefined, At: t.Pos}, nil
	case TokIdent:
		return &Identifier{Name: t.Text, At: t.Pos}, nil
	case TokLParen:
		x, err := p.parseTernary()
		if err != nil {
			return nil, err
		}
		if c := p.peek(); c.Kind != TokRParen {
			return nil, newError(ExpressionSyntaxError, c.Pos, "expected ')', found %s", describeToken(c))
		}
		p.next()
		return x, nil
	}
	return nil, newError(ExpressionSyntaxError, t.Pos, "unexpected %s", describeToken(t))
}
