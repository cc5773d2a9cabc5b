package curly

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// The expression lexer turns the text of a directive into a flat token
// stream. Template-structure tokens share the same Token type and are
// produced by the template tokenizer.

type TokenKind int

const (
	TokEOF TokenKind = iota
	TokNumber
	TokString
	TokBool
	TokNull
	TokUndefined
	TokIdent

	TokDot      // .
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
	TokComma    // ,
	TokPlus     // +
	TokMinus    // -
	TokStar     // *
	TokSlash    // /
	TokPercent  // %
	TokNot      // !
	TokLT       // <
	TokGT       // >
	TokLE       // <=
	TokGE       // >=
	TokEq       // ==
	TokNe       // !=
	TokStrictEq // ===
	TokStrictNe // !==
	TokAnd      // &&
	TokOr       // ||
	TokQuestion // ?
	TokColon    // :
	TokPipe     // |

	TokText
	TokExpression
	TokIf
	TokElseIf
	TokElse
	TokEndIf
	TokFor
	TokEndFor
	TokEach
	TokEndEach
)

var tokenNames = map[TokenKind]string{
	TokEOF:        "end of expression",
	TokNumber:     "number",
	TokString:     "string",
	TokBool:       "boolean",
	TokNull:       "null",
	TokUndefined:  "undefined",
	TokIdent:      "identifier",
	TokDot:        "'.'",
	TokLParen:     "'('",
	TokRParen:     "')'",
	TokLBracket:   "'['",
	TokRBracket:   "']'",
	TokComma:      "','",
	TokPlus:       "'+'",
	TokMinus:      "'-'",
	TokStar:       "'*'",
	TokSlash:      "'/'",
	TokPercent:    "'%'",
	TokNot:        "'!'",
	TokLT:         "'<'",
	TokGT:         "'>'",
	TokLE:         "'<='",
	TokGE:         "'>='",
	TokEq:         "'=='",
	TokNe:         "'!='",
	TokStrictEq:   "'==='",
	TokStrictNe:   "'!=='",
	TokAnd:        "'&&'",
	TokOr:         "'||'",
	TokQuestion:   "'?'",
	TokColon:      "':'",
	TokPipe:       "'|'",
	TokText:       "text",
	TokExpression: "{{expression}}",
	TokIf:         "{{#if}}",
	TokElseIf:     "{{#elseif}}",
	TokElse:       "{{#else}}",
	TokEndIf:      "{{/if}}",
	TokFor:        "{{#for}}",
	TokEndFor:     "{{/for}}",
	TokEach:       "{{#each}}",
	TokEndEach:    "{{/each}}",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// Token is a lexeme. For string literals Text holds the decoded value. For
// template tokens Pos is the opening "{{" (or the start of a text run) and
// TextPos is where Text begins in the source.
type Token struct {
	Kind    TokenKind
	Text    string
	Pos     Pos
	End     int
	TextPos Pos
}

var keywords = map[string]TokenKind{
	"true":      TokBool,
	"false":     TokBool,
	"null":      TokNull,
	"undefined": TokUndefined,
}

type exprLexer struct {
	src  string
	i    int
	pos  Pos
	toks []Token
}

// Tokenize splits an expression into tokens, terminated by a TokEOF token.
func Tokenize(input string) ([]Token, error) {
	return tokenizeAt(input, startPos)
}

// tokenizeAt lexes input as if it started at base in a larger source, so
// token positions (and errors) point into that source.
func tokenizeAt(input string, base Pos) ([]Token, error) {
	l := &exprLexer{src: input, pos: base, toks: make([]Token, 0, len(input)/3+2)}
	if err := l.run(); err != nil {
		return nil, err
	}
	return l.toks, nil
}

func (l *exprLexer) peekAt(off int) byte {
	if l.i+off >= len(l.src) {
		return 0
	}
	return l.src[l.i+off]
}

// advance moves past n bytes, keeping the line/column position in step.
func (l *exprLexer) advance(n int) {
	l.pos = l.pos.advance(l.src[l.i : l.i+n])
	l.i += n
}

func (l *exprLexer) emit(kind TokenKind, text string, start Pos) {
	l.toks = append(l.toks, Token{Kind: kind, Text: text, Pos: start, End: l.pos.Offset, TextPos: start})
}

func (l *exprLexer) run() error {
	for l.i < len(l.src) {
		c := l.src[l.i]
		if isSpace(c) {
			l.advance(1)
			continue
		}
		start := l.pos
		switch {
		case isDigit(c):
			l.lexNumber(start)
			continue
		case isIdentStart(c):
			l.lexIdent(start)
			continue
		case c == '"' || c == '\'':
			if err := l.lexString(start, c); err != nil {
				return err
			}
			continue
		}
		kind, width := l.operator()
		if width == 0 {
			r, _ := utf8.DecodeRuneInString(l.src[l.i:])
			return newError(LexicalError, start, "unexpected character %q at offset %d", r, start.Offset)
		}
		text := l.src[l.i : l.i+width]
		l.advance(width)
		l.emit(kind, text, start)
	}
	l.emit(TokEOF, "", l.pos)
	return nil
}

// operator recognises punctuation at the cursor with one character of
// lookahead for two-character operators (two for === and !==).
func (l *exprLexer) operator() (TokenKind, int) {
	switch l.src[l.i] {
	case '.':
		return TokDot, 1
	case '(':
		return TokLParen, 1
	case ')':
		return TokRParen, 1
	case '[':
		return TokLBracket, 1
	case ']':
		return TokRBracket, 1
	case ',':
		return TokComma, 1
	case '+':
		return TokPlus, 1
	case '-':
		return TokMinus, 1
	case '*':
		return TokStar, 1
	case '/':
		return TokSlash, 1
	case '%':
		return TokPercent, 1
	case '?':
		return TokQuestion, 1
	case ':':
		return TokColon, 1
	case '!':
		if l.peekAt(1) == '=' {
			if l.peekAt(2) == '=' {
				return TokStrictNe, 3
			}
			return TokNe, 2
		}
		return TokNot, 1
	case '=':
		if l.peekAt(1) == '=' {
			if l.peekAt(2) == '=' {
				return TokStrictEq, 3
			}
			return TokEq, 2
		}
	case '<':
		if l.peekAt(1) == '=' {
			return TokLE, 2
		}
		return TokLT, 1
	case '>':
		if l.peekAt(1) == '=' {
			return TokGE, 2
		}
		return TokGT, 1
	case '&':
		if l.peekAt(1) == '&' {
			return TokAnd, 2
		}
	case '|':
		if l.peekAt(1) == '|' {
			return TokOr, 2
		}
		return TokPipe, 1
	}
	return TokEOF, 0
}

func (l *exprLexer) lexNumber(start Pos) {
	j := l.i
	for j < len(l.src) && isDigit(l.src[j]) {
		j++
	}
	if j+1 < len(l.src) && l.src[j] == '.' && isDigit(l.src[j+1]) {
		j++
		for j < len(l.src) && isDigit(l.src[j]) {
			j++
		}
	}
	text := l.src[l.i:j]
	l.advance(j - l.i)
	l.emit(TokNumber, text, start)
}

func (l *exprLexer) lexIdent(start Pos) {
	j := l.i + 1
	for j < len(l.src) && isIdentPart(l.src[j]) {
		j++
	}
	text := l.src[l.i:j]
	l.advance(j - l.i)
	kind, ok := keywords[text]
	if !ok {
		kind = TokIdent
	}
	l.emit(kind, text, start)
}

func (l *exprLexer) lexString(start Pos, quote byte) error {
	var b strings.Builder
	j := l.i + 1
	for {
		if j >= len(l.src) {
			return newError(LexicalError, start, "unterminated string starting at offset %d", start.Offset)
		}
		c := l.src[j]
		if c == quote {
			j++
			break
		}
		if c != '\\' {
			b.WriteByte(c)
			j++
			continue
		}
		if j+1 >= len(l.src) {
			return newError(LexicalError, start, "unterminated string starting at offset %d", start.Offset)
		}
		esc := l.src[j+1]
		j += 2
		switch esc {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'u':
			if j+4 <= len(l.src) {
				if n, err := strconv.ParseUint(l.src[j:j+4], 16, 32); err == nil {
					b.WriteRune(rune(n))
					j += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(esc)
		}
	}
	l.advance(j - l.i)
	l.emit(TokString, b.String(), start)
	return nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
