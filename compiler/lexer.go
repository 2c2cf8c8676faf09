package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: tokenizer for pico source
// ---------------------------------------------------------------------------

// Lexer tokenizes pico source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

func (l *Lexer) atEOF() bool { return l.pos >= len(l.input) }

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	start := l.pos
	if l.atEOF() {
		return Token{Type: TokenEOF, Start: start, End: start}
	}

	single := func(tt TokenType) Token {
		l.readChar()
		return Token{Type: tt, Literal: tt.String(), Start: start, End: l.pos}
	}
	// pair returns two if the next character is next, else one.
	pair := func(next rune, two, one TokenType) Token {
		if l.peekChar() == next {
			l.readChar()
			return single(two)
		}
		return single(one)
	}

	switch ch := l.ch; {
	case ch == '+':
		return single(TokenPlus)
	case ch == '-':
		return pair('>', TokenArrow, TokenMinus)
	case ch == '*':
		return single(TokenStar)
	case ch == '/':
		return single(TokenSlash)
	case ch == '!':
		return pair('=', TokenBangEqual, TokenBang)
	case ch == '=':
		return pair('=', TokenEqualEqual, TokenAssign)
	case ch == '<':
		return pair('=', TokenLessEqual, TokenLess)
	case ch == '>':
		return pair('=', TokenGreaterEqual, TokenGreater)
	case ch == '(':
		return single(TokenLParen)
	case ch == ')':
		return single(TokenRParen)
	case ch == '{':
		return single(TokenLBrace)
	case ch == '}':
		return single(TokenRBrace)
	case ch == ',':
		return single(TokenComma)
	case ch == ':':
		return single(TokenColon)
	case ch == ';':
		return single(TokenSemicolon)
	case ch == '.':
		return single(TokenDot)
	case ch == '"':
		return l.readString(start)
	case isDigit(ch):
		return l.readNumber(start)
	case isIdentStart(ch):
		return l.readIdentifier(start)
	}

	l.readChar()
	return Token{Type: TokenError, Literal: "unexpected character " + string(l.input[start:l.pos]), Start: start, End: l.pos}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readNumber reads a decimal integer literal. Range checking happens in the
// parser so the error can name the literal.
func (l *Lexer) readNumber(start int) Token {
	for isDigit(l.ch) {
		l.readChar()
	}
	return Token{Type: TokenInteger, Literal: l.input[start:l.pos], Start: start, End: l.pos}
}

// readIdentifier reads an identifier or keyword.
func (l *Lexer) readIdentifier(start int) Token {
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return Token{Type: LookupIdent(lit), Literal: lit, Start: start, End: l.pos}
}

// readString reads a double-quoted string. The literal holds the unescaped
// text.
func (l *Lexer) readString(start int) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for !l.atEOF() && l.ch != '"' {
		if l.ch != '\\' {
			sb.WriteRune(l.ch)
			l.readChar()
			continue
		}
		l.readChar() // consume backslash
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case 'r':
			sb.WriteByte('\r')
		case '0':
			sb.WriteByte(0)
		case '\\':
			sb.WriteByte('\\')
		case '"':
			sb.WriteByte('"')
		default:
			if l.atEOF() {
				return Token{Type: TokenError, Literal: "unterminated string", Start: start, End: l.pos}
			}
			esc := string(l.ch)
			l.readChar()
			return Token{Type: TokenError, Literal: "unknown escape \\" + esc, Start: start, End: l.pos}
		}
		l.readChar()
	}

	if l.atEOF() {
		return Token{Type: TokenError, Literal: "unterminated string", Start: start, End: l.pos}
	}
	l.readChar() // consume closing "
	return Token{Type: TokenString, Literal: sb.String(), Start: start, End: l.pos}
}

func isDigit(ch rune) bool { return ch >= '0' && ch <= '9' }

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch)
}

// Tokenize returns every token of input up to and including EOF or the
// first error token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
