package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

var log = commonlog.GetLogger("pico.compiler")

// ---------------------------------------------------------------------------
// Checker: static type checking
// ---------------------------------------------------------------------------

// Checker assigns a type to an expression or rejects it with a TypeError.
//
// Blocks, let bodies, if branches and function bodies each open a scope.
// The code generator opens scopes at exactly the same nodes, so a name
// resolves to the same binding in both passes.
type Checker struct {
	scopes *Scopes
	info   *Info
}

// Info collects per-node results while checking. Nodes checked before a
// failure are recorded even when Check returns an error.
type Info struct {
	Types map[ast.Expr]types.Type
	// Defs maps each resolved identifier to the span of its binder.
	Defs map[*ast.Identifier]ast.Span
}

// NewInfo returns an empty Info ready for Checker.Record.
func NewInfo() *Info {
	return &Info{
		Types: make(map[ast.Expr]types.Type),
		Defs:  make(map[*ast.Identifier]ast.Span),
	}
}

// NewChecker creates a checker with an empty environment.
func NewChecker() *Checker {
	return &Checker{scopes: NewScopes()}
}

// Scopes exposes the environment, e.g. to predeclare names.
func (c *Checker) Scopes() *Scopes { return c.scopes }

// Record makes subsequent checks fill in info. A nil info stops recording.
func (c *Checker) Record(info *Info) { c.info = info }

// Check type-checks expr in an empty environment.
func Check(expr ast.Expr) (types.Type, error) {
	return NewChecker().Check(expr)
}

// Check returns the type of expr. The environment is restored to its
// previous depth whether or not checking succeeds.
func (c *Checker) Check(expr ast.Expr) (types.Type, error) {
	depth := c.scopes.Depth()
	t, err := c.check(expr)
	if c.scopes.Depth() != depth {
		panic(fmt.Sprintf("compiler: checker left scope depth %d, started at %d", c.scopes.Depth(), depth))
	}
	if err != nil {
		log.Debugf("check failed: %v", err)
		return nil, err
	}
	return t, nil
}

func (c *Checker) check(expr ast.Expr) (types.Type, error) {
	t, err := c.checkNode(expr)
	if err == nil && c.info != nil {
		c.info.Types[expr] = t
	}
	return t, err
}

func (c *Checker) checkNode(expr ast.Expr) (types.Type, error) {
	switch n := expr.(type) {
	case *ast.IntLiteral:
		return types.Int, nil
	case *ast.StringLiteral:
		return types.String, nil
	case *ast.BoolLiteral:
		return types.Bool, nil
	case *ast.UnitLiteral:
		return types.Unit, nil

	case *ast.Identifier:
		t, ok := c.scopes.Lookup(n.Name)
		if !ok {
			return nil, &VarDoesntExistError{Span: n.SpanVal, Name: n.Name}
		}
		if c.info != nil {
			c.info.Defs[n], _ = c.scopes.LookupSite(n.Name)
		}
		return t, nil

	case *ast.Grouping:
		return c.check(n.Inner)

	case *ast.Unary:
		return c.checkUnary(n)

	case *ast.Binary:
		return c.checkBinary(n)

	case *ast.Let:
		return c.checkLet(n)

	case *ast.Block:
		depth := c.scopes.Push()
		defer c.scopes.Pop(depth)
		return c.check(n.Inner)

	case *ast.If:
		return c.checkIf(n)

	case *ast.FuncLit:
		return c.checkFunc(n)

	case *ast.Funk:
		return c.checkFunk(n)

	case *ast.Call:
		return c.checkCall(n)
	}

	panic(fmt.Sprintf("compiler: checker does not handle %T", expr))
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

func (c *Checker) checkUnary(n *ast.Unary) (types.Type, error) {
	t, err := c.check(n.Operand)
	if err != nil {
		return nil, err
	}
	switch {
	case n.Op == ast.OpNeg && types.Equal(t, types.Int):
		return types.Int, nil
	case n.Op == ast.OpNot && types.Equal(t, types.Bool):
		return types.Bool, nil
	}
	return nil, &UnaryTypeError{Span: n.SpanVal, Op: n.Op, Type: t}
}

func (c *Checker) checkBinary(n *ast.Binary) (types.Type, error) {
	left, err := c.check(n.Left)
	if err != nil {
		return nil, err
	}
	right, err := c.check(n.Right)
	if err != nil {
		return nil, err
	}

	bothInt := types.Equal(left, types.Int) && types.Equal(right, types.Int)
	switch {
	case n.Op == ast.OpAdd && types.Equal(left, types.String) && types.Equal(right, types.String):
		return types.String, nil
	case n.Op.IsArithmetic() && bothInt:
		return types.Int, nil
	case n.Op.IsOrdering() && bothInt:
		return types.Bool, nil
	case n.Op.IsEquality() && types.Equal(left, right):
		return types.Bool, nil
	case n.Op.IsLogical() && types.Equal(left, types.Bool) && types.Equal(right, types.Bool):
		return types.Bool, nil
	}
	return nil, &BinaryTypeError{Span: n.SpanVal, Op: n.Op, Left: left, Right: right}
}

// ---------------------------------------------------------------------------
// Binding and control flow
// ---------------------------------------------------------------------------

func (c *Checker) checkLet(n *ast.Let) (types.Type, error) {
	initType, err := c.check(n.Init)
	if err != nil {
		return nil, err
	}
	if n.Annotation != nil && !types.Equal(n.Annotation, initType) {
		return nil, &AnnotationMismatchError{
			Span:     n.SpanVal,
			Name:     n.Name,
			Declared: n.Annotation,
			Actual:   initType,
		}
	}

	depth := c.scopes.Push()
	defer c.scopes.Pop(depth)
	c.scopes.BindAt(n.Name, initType, n.SpanVal)
	return c.check(n.Body)
}

func (c *Checker) checkIf(n *ast.If) (types.Type, error) {
	cond, err := c.check(n.Cond)
	if err != nil {
		return nil, err
	}
	if !types.Equal(cond, types.Bool) {
		return nil, &ConditionTypeError{Span: n.Cond.Span(), Type: cond}
	}

	then, err := c.checkScoped(n.Then)
	if err != nil {
		return nil, err
	}

	if n.Else == nil {
		if !types.Equal(then, types.Unit) {
			return nil, &MissingElseError{Span: n.SpanVal, Then: then}
		}
		return types.Unit, nil
	}

	els, err := c.checkScoped(n.Else)
	if err != nil {
		return nil, err
	}
	if !types.Equal(then, els) {
		return nil, &BranchMismatchError{Span: n.SpanVal, Then: then, Else: els}
	}
	return then, nil
}

// checkScoped checks expr inside a fresh scope.
func (c *Checker) checkScoped(expr ast.Expr) (types.Type, error) {
	depth := c.scopes.Push()
	defer c.scopes.Pop(depth)
	return c.check(expr)
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

func (c *Checker) checkFunc(n *ast.FuncLit) (types.Type, error) {
	depth := c.scopes.Push()
	defer c.scopes.Pop(depth)

	for _, p := range n.Params {
		c.scopes.BindAt(p.Name, p.Type, p.SpanVal)
	}
	body, err := c.check(n.Body)
	if err != nil {
		return nil, err
	}
	if !types.Equal(body, n.Ret) {
		return nil, &ReturnTypeError{Span: n.Body.Span(), Declared: n.Ret, Actual: body}
	}
	return n.Signature(), nil
}

// checkFunk binds the declared signature before checking the body so that
// the function may call itself.
func (c *Checker) checkFunk(n *ast.Funk) (types.Type, error) {
	depth := c.scopes.Push()
	defer c.scopes.Pop(depth)

	sig := n.Fn.Signature()
	c.scopes.BindAt(n.Name, sig, n.SpanVal)
	if _, err := c.checkFunc(n.Fn); err != nil {
		return nil, err
	}
	if n.Then == nil {
		return sig, nil
	}
	return c.check(n.Then)
}

func (c *Checker) checkCall(n *ast.Call) (types.Type, error) {
	callee, err := c.check(n.Callee)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*types.Func)
	if !ok {
		return nil, &IncorrectCalleeError{Span: n.Callee.Span(), Type: callee}
	}
	if len(n.Args) != len(fn.Params) {
		return nil, &IncorrectArgNoError{Span: n.SpanVal, Expected: len(fn.Params), Got: len(n.Args)}
	}
	for i, arg := range n.Args {
		t, err := c.check(arg)
		if err != nil {
			return nil, err
		}
		if !types.Equal(t, fn.Params[i]) {
			return nil, &IncorrectArgTypeError{Span: arg.Span(), Index: i, Expected: fn.Params[i], Got: t}
		}
	}
	return fn.Ret, nil
}
