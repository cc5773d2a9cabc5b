package curly

import (
	"strings"
)

// The template tokenizer scans source and yields text runs and directive
// tokens. It has two states: TEXT, scanning for the next "{{", and
// DIRECTIVE, classifying everything up to the matching "}}".

type directive struct {
	word string
	kind TokenKind
	args bool
}

// Order matters: "#elseif" must be tried before "#else".
var directives = []directive{
	{"#if", TokIf, true},
	{"#elseif", TokElseIf, true},
	{"#else", TokElse, false},
	{"/if", TokEndIf, false},
	{"#for", TokFor, true},
	{"/for", TokEndFor, false},
	{"#each", TokEach, true},
	{"/each", TokEndEach, false},
}

type templateLexer struct {
	src  string
	i    int
	pos  Pos
	toks []Token
}

// TokenizeTemplate splits template source into TEXT and directive tokens.
func TokenizeTemplate(src string) ([]Token, error) {
	l := &templateLexer{src: src, pos: startPos}
	for l.i < len(l.src) {
		if err := l.next(); err != nil {
			return nil, err
		}
	}
	return l.toks, nil
}

// moveTo advances the cursor to byte offset j.
func (l *templateLexer) moveTo(j int) {
	l.pos = l.pos.advance(l.src[l.i:j])
	l.i = j
}

// next emits the text run up to the next "{{" and, if there is one, the
// directive that follows it.
func (l *templateLexer) next() error {
	start := l.pos
	open := strings.Index(l.src[l.i:], "{{")
	if open < 0 {
		text := l.src[l.i:]
		l.moveTo(len(l.src))
		l.emitText(text, start)
		return nil
	}
	if open > 0 {
		text := l.src[l.i : l.i+open]
		l.moveTo(l.i + open)
		l.emitText(text, start)
	}

	dirPos := l.pos
	l.moveTo(l.i + 2)
	closeAt := strings.Index(l.src[l.i:], "}}")
	if closeAt < 0 {
		return newError(StructuralSyntaxError, dirPos, "unterminated '{{': no matching '}}'")
	}
	inner := l.src[l.i : l.i+closeAt]
	innerPos := l.pos
	l.moveTo(l.i + closeAt + 2)

	tok, err := classify(inner, innerPos)
	if err != nil {
		return err
	}
	tok.Pos = dirPos
	tok.End = l.pos.Offset
	l.toks = append(l.toks, tok)
	return nil
}

func (l *templateLexer) emitText(text string, at Pos) {
	if text == "" {
		return
	}
	l.toks = append(l.toks, Token{Kind: TokText, Text: text, Pos: at, End: at.Offset + len(text), TextPos: at})
}

// classify decides what a directive body is. Keywords that take arguments
// must be followed by whitespace; the others may only be followed by
// whitespace. Anything else is a bare expression.
func classify(inner string, at Pos) (Token, error) {
	trimmed := strings.TrimLeft(inner, " \t\r\n")
	at = at.advance(inner[:len(inner)-len(trimmed)])

	for _, d := range directives {
		if !strings.HasPrefix(trimmed, d.word) {
			continue
		}
		rest := trimmed[len(d.word):]
		if rest != "" && !isSpace(rest[0]) {
			// "#ifx", "#elsewhere": not this keyword.
			continue
		}
		args := strings.TrimSpace(rest)
		if d.args {
			if args == "" {
				return Token{}, newError(StructuralSyntaxError, at, "{{%s}} requires an argument", d.word)
			}
			argAt := at.advance(trimmed[:len(trimmed)-len(strings.TrimLeft(rest, " \t\r\n"))])
			return Token{Kind: d.kind, Text: args, TextPos: argAt}, nil
		}
		if args != "" {
			return Token{}, newError(StructuralSyntaxError, at, "{{%s}} takes no arguments, found %q", d.word, args)
		}
		return Token{Kind: d.kind, TextPos: at}, nil
	}
	return Token{Kind: TokExpression, Text: strings.TrimSpace(trimmed), TextPos: at}, nil
}
