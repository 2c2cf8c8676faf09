package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenString     // "hello"
	TokenIdentifier // foo

	// Operators
	TokenPlus         // +
	TokenMinus        // -
	TokenStar         // *
	TokenSlash        // /
	TokenArrow        // ->
	TokenBang         // !
	TokenBangEqual    // !=
	TokenAssign       // =
	TokenEqualEqual   // ==
	TokenLess         // <
	TokenLessEqual    // <=
	TokenGreater      // >
	TokenGreaterEqual // >=

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;
	TokenDot       // .

	// Keywords
	TokenLet
	TokenIf
	TokenElse
	TokenFunk
	TokenFn
	TokenAnd
	TokenOr
	TokenNot
	TokenTrue
	TokenFalse
)

var tokenNames = map[TokenType]string{
	TokenEOF:          "EOF",
	TokenError:        "ERROR",
	TokenInteger:      "INTEGER",
	TokenString:       "STRING",
	TokenIdentifier:   "IDENTIFIER",
	TokenPlus:         "+",
	TokenMinus:        "-",
	TokenStar:         "*",
	TokenSlash:        "/",
	TokenArrow:        "->",
	TokenBang:         "!",
	TokenBangEqual:    "!=",
	TokenAssign:       "=",
	TokenEqualEqual:   "==",
	TokenLess:         "<",
	TokenLessEqual:    "<=",
	TokenGreater:      ">",
	TokenGreaterEqual: ">=",
	TokenLParen:       "(",
	TokenRParen:       ")",
	TokenLBrace:       "{",
	TokenRBrace:       "}",
	TokenComma:        ",",
	TokenColon:        ":",
	TokenSemicolon:    ";",
	TokenDot:          ".",
	TokenLet:          "let",
	TokenIf:           "if",
	TokenElse:         "else",
	TokenFunk:         "funk",
	TokenFn:           "fn",
	TokenAnd:          "and",
	TokenOr:           "or",
	TokenNot:          "not",
	TokenTrue:         "true",
	TokenFalse:        "false",
}

// String returns the name of a token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TokenType(%d)", t)
}

// Token is a lexical token. Start and End are byte offsets into the source.
type Token struct {
	Type    TokenType
	Literal string
	Start   int
	End     int
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenInteger, TokenIdentifier, TokenError:
		return fmt.Sprintf("%s(%s)", t.Type, t.Literal)
	case TokenString:
		return fmt.Sprintf("STRING(%q)", t.Literal)
	}
	return fmt.Sprintf("%q", t.Type.String())
}

// reservedWords maps keywords to their token types.
var reservedWords = map[string]TokenType{
	"let":   TokenLet,
	"if":    TokenIf,
	"else":  TokenElse,
	"funk":  TokenFunk,
	"fn":    TokenFn,
	"and":   TokenAnd,
	"or":    TokenOr,
	"not":   TokenNot,
	"true":  TokenTrue,
	"false": TokenFalse,
}

// LookupIdent returns the keyword token type for ident, or TokenIdentifier.
func LookupIdent(ident string) TokenType {
	if tok, ok := reservedWords[ident]; ok {
		return tok
	}
	return TokenIdentifier
}
