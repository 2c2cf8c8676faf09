// Package ast defines the syntax tree of pico programs.
//
// Every construct is an expression. Trees are built by the parser or
// directly by callers, checked by the type checker and lowered to bytecode
// by the code generator.
package ast

import (
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start int
	End   int
}

// To returns the span covering s through o.
func (s Span) To(o Span) Span {
	return Span{Start: s.Start, End: o.End}
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string {
	return fmt.Sprintf("%d..%d", s.Start, s.End)
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// ---------------------------------------------------------------------------
// Literals and names
// ---------------------------------------------------------------------------

// Identifier is a reference to a bound name.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// IntLiteral is a 64-bit signed integer literal.
type IntLiteral struct {
	SpanVal Span
	Value   int64
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// StringLiteral holds the unescaped text of a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral is true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// UnitLiteral is ().
type UnitLiteral struct {
	SpanVal Span
}

func (n *UnitLiteral) Span() Span { return n.SpanVal }
func (n *UnitLiteral) node()      {}
func (n *UnitLiteral) expr()      {}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

// Grouping is a parenthesized expression.
type Grouping struct {
	SpanVal Span
	Inner   Expr
}

func (n *Grouping) Span() Span { return n.SpanVal }
func (n *Grouping) node()      {}
func (n *Grouping) expr()      {}

// Unary applies a prefix operator.
type Unary struct {
	SpanVal Span
	Op      Op
	Operand Expr
}

func (n *Unary) Span() Span { return n.SpanVal }
func (n *Unary) node()      {}
func (n *Unary) expr()      {}

// Binary applies an infix operator.
type Binary struct {
	SpanVal Span
	Op      Op
	Left    Expr
	Right   Expr
}

func (n *Binary) Span() Span { return n.SpanVal }
func (n *Binary) node()      {}
func (n *Binary) expr()      {}

// ---------------------------------------------------------------------------
// Binding and control flow
// ---------------------------------------------------------------------------

// Let binds Name to the value of Init for the evaluation of Body.
// Annotation is nil when the source gives no type.
type Let struct {
	SpanVal    Span
	Name       string
	Annotation types.Type
	Init       Expr
	Body       Expr
}

func (n *Let) Span() Span { return n.SpanVal }
func (n *Let) node()      {}
func (n *Let) expr()      {}

// Block is a braced expression that opens a new scope.
type Block struct {
	SpanVal Span
	Inner   Expr
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) expr()      {}

// If is a conditional. Else is nil when there is no else branch.
type If struct {
	SpanVal Span
	Cond    Expr
	Then    Expr
	Else    Expr
}

func (n *If) Span() Span { return n.SpanVal }
func (n *If) node()      {}
func (n *If) expr()      {}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// Param is a typed function parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    types.Type
}

// FuncLit is an anonymous function: fn (a: int) -> int { a }.
type FuncLit struct {
	SpanVal Span
	Params  []Param
	Ret     types.Type
	Body    Expr
}

func (n *FuncLit) Span() Span { return n.SpanVal }
func (n *FuncLit) node()      {}
func (n *FuncLit) expr()      {}

// Signature returns the declared function type.
func (n *FuncLit) Signature() *types.Func {
	params := make([]types.Type, len(n.Params))
	for i, p := range n.Params {
		params[i] = p.Type
	}
	return types.NewFunc(params, n.Ret)
}

// Funk is a named function declaration. The name is visible inside the body
// and, when present, in Then. Without Then the declaration evaluates to the
// function itself.
type Funk struct {
	SpanVal Span
	Name    string
	Fn      *FuncLit
	Then    Expr
}

func (n *Funk) Span() Span { return n.SpanVal }
func (n *Funk) node()      {}
func (n *Funk) expr()      {}

// Call applies Callee to Args.
type Call struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *Call) Span() Span { return n.SpanVal }
func (n *Call) node()      {}
func (n *Call) expr()      {}
