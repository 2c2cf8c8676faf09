package compiler

import (
	"fmt"
	"strconv"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// ---------------------------------------------------------------------------
// Parser: recursive descent parser for pico
// ---------------------------------------------------------------------------

// ParseError reports malformed source.
type ParseError struct {
	Span    ast.Span
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %s: %s", e.Span, e.Message)
}

// Parser parses pico source code into an AST. It stops at the first error.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   int // end offset of the last consumed token
	err       *ParseError
}

// NewParser creates a new parser for the given input.
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete program.
func Parse(input string) (ast.Expr, error) {
	p := NewParser(input)
	expr := p.ParseProgram()
	if p.err != nil {
		return nil, p.err
	}
	return expr, nil
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorAt(ast.Span{Start: p.curToken.Start, End: p.curToken.End}, "%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// errorf records a parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curSpan(), format, args...)
}

func (p *Parser) errorAt(span ast.Span, format string, args ...interface{}) {
	if p.err == nil {
		p.err = &ParseError{Span: span, Message: fmt.Sprintf(format, args...)}
	}
}

// Err returns the first parse error, if any.
func (p *Parser) Err() error {
	if p.err == nil {
		return nil
	}
	return p.err
}

func (p *Parser) curSpan() ast.Span {
	return ast.Span{Start: p.curToken.Start, End: p.curToken.End}
}

// spanFrom returns the span from start to the end of the last consumed token.
func (p *Parser) spanFrom(start int) ast.Span {
	return ast.Span{Start: start, End: p.prevEnd}
}

// endsExpression reports whether the current token cannot begin an
// expression, so an optional trailing expression is absent.
func (p *Parser) endsExpression() bool {
	switch p.curToken.Type {
	case TokenEOF, TokenRBrace, TokenRParen, TokenSemicolon, TokenComma, TokenElse:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses one expression that must span the whole input.
func (p *Parser) ParseProgram() ast.Expr {
	expr := p.ParseExpression()
	if p.err != nil {
		return nil
	}
	if !p.curTokenIs(TokenEOF) {
		p.errorf("unexpected %s after expression", p.curToken)
		return nil
	}
	return expr
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() ast.Expr {
	if p.err != nil {
		return nil
	}
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenFunk:
		return p.parseFunk()
	}
	return p.parseOr()
}

// parseLet parses: let name (: type)? = init; body
func (p *Parser) parseLet() ast.Expr {
	start := p.curToken.Start
	p.nextToken() // consume 'let'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected name after let, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	var annotation types.Type
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		if annotation = p.parseType(); annotation == nil {
			return nil
		}
	}

	if !p.expect(TokenAssign) {
		return nil
	}
	init := p.ParseExpression()
	if init == nil || !p.expect(TokenSemicolon) {
		return nil
	}

	// A trailing let with nothing after it evaluates to unit.
	var body ast.Expr
	if p.curTokenIs(TokenEOF) || p.curTokenIs(TokenRBrace) {
		body = &ast.UnitLiteral{SpanVal: ast.Span{Start: p.prevEnd, End: p.prevEnd}}
	} else if body = p.ParseExpression(); body == nil {
		return nil
	}

	return &ast.Let{
		SpanVal:    p.spanFrom(start),
		Name:       name,
		Annotation: annotation,
		Init:       init,
		Body:       body,
	}
}

// parseFunk parses: funk name(params) (-> type)? { body } (;? then)?
func (p *Parser) parseFunk() ast.Expr {
	start := p.curToken.Start
	p.nextToken() // consume 'funk'

	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name after funk, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	p.nextToken()

	fn := p.parseFunctionRest(start)
	if fn == nil {
		return nil
	}
	decl := &ast.Funk{Name: name, Fn: fn}

	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
	if !p.endsExpression() {
		if decl.Then = p.ParseExpression(); decl.Then == nil {
			return nil
		}
	}
	decl.SpanVal = p.spanFrom(start)
	return decl
}

// parseFnLiteral parses: fn (params) (-> type)? { body }
func (p *Parser) parseFnLiteral() ast.Expr {
	start := p.curToken.Start
	p.nextToken() // consume 'fn'
	fn := p.parseFunctionRest(start)
	if fn == nil {
		return nil
	}
	return fn
}

// parseFunctionRest parses the parameter list, optional return type and
// body shared by funk declarations and fn literals. The return type
// defaults to unit.
func (p *Parser) parseFunctionRest(start int) *ast.FuncLit {
	if !p.expect(TokenLParen) {
		return nil
	}
	var params []ast.Param
	for !p.curTokenIs(TokenRParen) {
		if len(params) > 0 && !p.expect(TokenComma) {
			return nil
		}
		pstart := p.curToken.Start
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.curToken)
			return nil
		}
		pname := p.curToken.Literal
		p.nextToken()
		if !p.expect(TokenColon) {
			return nil
		}
		ptype := p.parseType()
		if ptype == nil {
			return nil
		}
		params = append(params, ast.Param{SpanVal: p.spanFrom(pstart), Name: pname, Type: ptype})
	}
	p.nextToken() // consume ')'

	ret := types.Unit
	if p.curTokenIs(TokenArrow) {
		p.nextToken()
		if ret = p.parseType(); ret == nil {
			return nil
		}
	}

	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &ast.FuncLit{SpanVal: p.spanFrom(start), Params: params, Ret: ret, Body: body}
}

// parseType parses a type annotation: a type name, (), or
// fn(T, ...) -> T.
func (p *Parser) parseType() types.Type {
	switch p.curToken.Type {
	case TokenIdentifier:
		t, ok := types.Lookup(p.curToken.Literal)
		if !ok {
			p.errorf("unknown type %s", p.curToken.Literal)
			return nil
		}
		p.nextToken()
		return t

	case TokenLParen:
		p.nextToken()
		if !p.expect(TokenRParen) {
			return nil
		}
		return types.Unit

	case TokenFn:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		var params []types.Type
		for !p.curTokenIs(TokenRParen) {
			if len(params) > 0 && !p.expect(TokenComma) {
				return nil
			}
			t := p.parseType()
			if t == nil {
				return nil
			}
			params = append(params, t)
		}
		p.nextToken() // consume ')'
		if !p.expect(TokenArrow) {
			return nil
		}
		ret := p.parseType()
		if ret == nil {
			return nil
		}
		return types.NewFunc(params, ret)
	}

	p.errorf("expected type, got %s", p.curToken)
	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]ast.Op{
	TokenOr:           ast.OpOr,
	TokenAnd:          ast.OpAnd,
	TokenEqualEqual:   ast.OpEq,
	TokenBangEqual:    ast.OpNe,
	TokenLess:         ast.OpLt,
	TokenLessEqual:    ast.OpLe,
	TokenGreater:      ast.OpGt,
	TokenGreaterEqual: ast.OpGe,
	TokenPlus:         ast.OpAdd,
	TokenMinus:        ast.OpSub,
	TokenStar:         ast.OpMul,
	TokenSlash:        ast.OpDiv,
}

// precedence levels, loosest first.
var precedence = [][]TokenType{
	{TokenOr},
	{TokenAnd},
	{TokenEqualEqual, TokenBangEqual},
	{TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual},
	{TokenPlus, TokenMinus},
	{TokenStar, TokenSlash},
}

func (p *Parser) parseOr() ast.Expr {
	return p.parseBinary(0)
}

// parseBinary parses a left-associative chain at the given precedence level.
func (p *Parser) parseBinary(level int) ast.Expr {
	if level == len(precedence) {
		return p.parseUnary()
	}
	left := p.parseBinary(level + 1)
	for left != nil && p.atLevel(level) {
		op := binaryOps[p.curToken.Type]
		p.nextToken()
		right := p.parseBinary(level + 1)
		if right == nil {
			return nil
		}
		left = &ast.Binary{SpanVal: left.Span().To(right.Span()), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) atLevel(level int) bool {
	for _, tt := range precedence[level] {
		if p.curTokenIs(tt) {
			return true
		}
	}
	return false
}

func (p *Parser) parseUnary() ast.Expr {
	var op ast.Op
	switch p.curToken.Type {
	case TokenMinus:
		op = ast.OpNeg
	case TokenBang, TokenNot:
		op = ast.OpNot
	default:
		return p.parseCall()
	}
	start := p.curToken.Start
	p.nextToken()
	operand := p.parseUnary()
	if operand == nil {
		return nil
	}
	return &ast.Unary{SpanVal: p.spanFrom(start), Op: op, Operand: operand}
}

func (p *Parser) parseCall() ast.Expr {
	expr := p.parsePrimary()
	for expr != nil && p.curTokenIs(TokenLParen) {
		p.nextToken() // consume '('
		var args []ast.Expr
		for !p.curTokenIs(TokenRParen) {
			if len(args) > 0 && !p.expect(TokenComma) {
				return nil
			}
			arg := p.ParseExpression()
			if arg == nil {
				return nil
			}
			args = append(args, arg)
		}
		p.nextToken() // consume ')'
		expr = &ast.Call{SpanVal: p.spanFrom(expr.Span().Start), Callee: expr, Args: args}
	}
	return expr
}

// ---------------------------------------------------------------------------
// Primaries
// ---------------------------------------------------------------------------

func (p *Parser) parsePrimary() ast.Expr {
	if p.err != nil {
		return nil
	}
	tok := p.curToken
	span := p.curSpan()

	switch tok.Type {
	case TokenInteger:
		n, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			p.errorf("integer literal %s out of range", tok.Literal)
			return nil
		}
		p.nextToken()
		return &ast.IntLiteral{SpanVal: span, Value: n}

	case TokenString:
		p.nextToken()
		return &ast.StringLiteral{SpanVal: span, Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &ast.BoolLiteral{SpanVal: span, Value: tok.Type == TokenTrue}

	case TokenIdentifier:
		p.nextToken()
		return &ast.Identifier{SpanVal: span, Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		if p.curTokenIs(TokenRParen) {
			p.nextToken()
			return &ast.UnitLiteral{SpanVal: p.spanFrom(tok.Start)}
		}
		inner := p.ParseExpression()
		if inner == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &ast.Grouping{SpanVal: p.spanFrom(tok.Start), Inner: inner}

	case TokenLBrace:
		return p.parseBlock()

	case TokenIf:
		return p.parseIf()

	case TokenFn:
		return p.parseFnLiteral()
	}

	p.errorf("expected expression, got %s", tok)
	return nil
}

// parseBlock parses: { expr }. An empty block holds unit.
func (p *Parser) parseBlock() ast.Expr {
	start := p.curToken.Start
	if !p.expect(TokenLBrace) {
		return nil
	}
	var inner ast.Expr
	if p.curTokenIs(TokenRBrace) {
		inner = &ast.UnitLiteral{SpanVal: p.curSpan()}
	} else if inner = p.ParseExpression(); inner == nil {
		return nil
	}
	if !p.expect(TokenRBrace) {
		return nil
	}
	return &ast.Block{SpanVal: p.spanFrom(start), Inner: inner}
}

// parseIf parses: if cond { then } (else ({ else } | if ...))?
func (p *Parser) parseIf() ast.Expr {
	start := p.curToken.Start
	p.nextToken() // consume 'if'

	cond := p.parseOr()
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}

	n := &ast.If{Cond: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if p.curTokenIs(TokenIf) {
			n.Else = p.parseIf()
		} else {
			n.Else = p.parseBlock()
		}
		if n.Else == nil {
			return nil
		}
	}
	n.SpanVal = p.spanFrom(start)
	return n
}
