package compiler

import (
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/vm"
)

// ---------------------------------------------------------------------------
// Codegen: compile a checked AST to bytecode
// ---------------------------------------------------------------------------

// jumpPlaceholder fills a jump operand until it is patched.
const jumpPlaceholder = 0xFF

// Compiler lowers a type-checked expression into a chunk. Its output leaves
// exactly one value, the expression's result, above whatever the stack held
// before.
//
// Function declarations, function literals and calls are not lowered; they
// fail with ErrUnsupported.
type Compiler struct {
	chunk  *vm.Chunk
	locals *Locals
}

// NewCompiler creates a compiler appending to chunk.
func NewCompiler(chunk *vm.Chunk) *Compiler {
	return &Compiler{chunk: chunk, locals: &Locals{}}
}

// Compile appends the bytecode for expr to chunk. It does not append a
// final RETURN.
func Compile(chunk *vm.Chunk, expr ast.Expr) error {
	return NewCompiler(chunk).Compile(expr)
}

// Compile appends the bytecode for expr.
func (c *Compiler) Compile(expr ast.Expr) error {
	before := c.locals.Height()
	if err := c.compileExpr(expr); err != nil {
		log.Debugf("compile failed: %v", err)
		return err
	}
	if got := c.locals.Height(); got != before+1 {
		panic(fmt.Sprintf("compiler: expression left stack height %d, want %d", got, before+1))
	}
	return nil
}

// Locals exposes the local-slot state, mainly for tests.
func (c *Compiler) Locals() *Locals { return c.locals }

func (c *Compiler) compileExpr(expr ast.Expr) error {
	switch n := expr.(type) {
	case *ast.UnitLiteral:
		c.emit(vm.OpUnit, n.SpanVal)
	case *ast.BoolLiteral:
		if n.Value {
			c.emit(vm.OpTrue, n.SpanVal)
		} else {
			c.emit(vm.OpFalse, n.SpanVal)
		}
	case *ast.IntLiteral:
		return c.compileConstant(vm.Int(n.Value), n.SpanVal)
	case *ast.StringLiteral:
		return c.compileConstant(vm.Str(n.Value), n.SpanVal)

	case *ast.Identifier:
		loc, ok := c.locals.Resolve(n.Name)
		if !ok {
			return &CompileError{Err: ErrUnresolvedLocal, Span: n.SpanVal, Detail: n.Name}
		}
		c.emit(vm.OpGetLocal, n.SpanVal, byte(loc.Slot))

	case *ast.Grouping:
		return c.compileExpr(n.Inner)

	case *ast.Unary:
		return c.compileUnary(n)

	case *ast.Binary:
		return c.compileBinary(n)

	case *ast.Let:
		return c.compileLet(n)

	case *ast.Block:
		return c.compileScoped(n.Inner, n.SpanVal)

	case *ast.If:
		return c.compileIf(n)

	case *ast.FuncLit:
		return &CompileError{Err: ErrUnsupported, Span: n.SpanVal, Detail: "function literal"}
	case *ast.Funk:
		return &CompileError{Err: ErrUnsupported, Span: n.SpanVal, Detail: "function declaration " + n.Name}
	case *ast.Call:
		return &CompileError{Err: ErrUnsupported, Span: n.SpanVal, Detail: "function call"}

	default:
		panic(fmt.Sprintf("compiler: codegen does not handle %T", expr))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Emission helpers
// ---------------------------------------------------------------------------

// emit writes one instruction and applies its stack effect.
func (c *Compiler) emit(op vm.OpCode, span ast.Span, operands ...byte) int {
	offset := c.chunk.WriteOpcode(op, operands, span)
	c.locals.adjust(op.StackEffect(operands))
	return offset
}

// emitJump writes a jump with a placeholder target and returns the offset
// of the operand to patch.
func (c *Compiler) emitJump(op vm.OpCode, span ast.Span) int {
	return c.emit(op, span, jumpPlaceholder) + 1
}

// patchJump points the jump operand at operandOffset to the current end of
// code.
func (c *Compiler) patchJump(operandOffset int, span ast.Span) error {
	target := c.chunk.Len()
	if target > 0xFF {
		return &CompileError{Err: ErrJumpTooFar, Span: span, Detail: fmt.Sprintf("target %d", target)}
	}
	c.chunk.Patch(operandOffset, byte(target))
	return nil
}

// compileConstant adds v to the pool and loads it, using the wide form once
// the pool outgrows a one-byte index.
func (c *Compiler) compileConstant(v vm.Value, span ast.Span) error {
	idx := c.chunk.AddConstant(v)
	switch {
	case idx <= 0xFF:
		c.emit(vm.OpGetConstant, span, byte(idx))
	case idx <= vm.MaxLongIndex:
		c.emit(vm.OpGetConstantLong, span, vm.EncodeLongIndex(idx)...)
	default:
		return &CompileError{Err: ErrConstantPoolFull, Span: span, Detail: fmt.Sprintf("index %d", idx)}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var binaryOpcodes = map[ast.Op]vm.OpCode{
	ast.OpAdd: vm.OpAdd,
	ast.OpSub: vm.OpSubtract,
	ast.OpMul: vm.OpMultiply,
	ast.OpDiv: vm.OpDivide,
	ast.OpEq:  vm.OpEqual,
	ast.OpNe:  vm.OpNotEqual,
	ast.OpLt:  vm.OpLess,
	ast.OpLe:  vm.OpLessEqual,
	ast.OpGt:  vm.OpGreater,
	ast.OpGe:  vm.OpGreaterEqual,
	ast.OpAnd: vm.OpAnd,
	ast.OpOr:  vm.OpOr,
}

func (c *Compiler) compileUnary(n *ast.Unary) error {
	if err := c.compileExpr(n.Operand); err != nil {
		return err
	}
	switch n.Op {
	case ast.OpNeg:
		c.emit(vm.OpNegate, n.SpanVal)
	case ast.OpNot:
		c.emit(vm.OpNot, n.SpanVal)
	default:
		panic(fmt.Sprintf("compiler: %s is not a unary operator", n.Op))
	}
	return nil
}

// compileBinary evaluates the left operand first so the VM pops the right
// operand first.
func (c *Compiler) compileBinary(n *ast.Binary) error {
	op, ok := binaryOpcodes[n.Op]
	if !ok {
		panic(fmt.Sprintf("compiler: %s is not a binary operator", n.Op))
	}
	if err := c.compileExpr(n.Left); err != nil {
		return err
	}
	if err := c.compileExpr(n.Right); err != nil {
		return err
	}
	c.emit(op, n.SpanVal)
	return nil
}

// ---------------------------------------------------------------------------
// Scopes and control flow
// ---------------------------------------------------------------------------

// compileScoped compiles expr in its own scope.
func (c *Compiler) compileScoped(expr ast.Expr, span ast.Span) error {
	mark := c.locals.begin()
	if err := c.compileExpr(expr); err != nil {
		return err
	}
	return c.endScope(mark, span)
}

// endScope closes a scope and discards the values its locals occupy while
// keeping the scope's result on top: the result is stored into the lowest
// discarded slot and everything above it is popped.
func (c *Compiler) endScope(mark scopeMark, span ast.Span) error {
	extra := c.locals.end(mark)
	if extra <= 0 {
		return nil
	}
	if mark.base > MaxSlot {
		return &CompileError{Err: ErrTooManyLocals, Span: span, Detail: fmt.Sprintf("slot %d", mark.base)}
	}
	c.emit(vm.OpSetLocal, span, byte(mark.base))
	switch rest := extra - 1; {
	case rest == 1:
		c.emit(vm.OpPop, span)
	case rest > 1:
		c.emit(vm.OpPopN, span, byte(rest))
	}
	return nil
}

// compileLet evaluates the initializer into the next stack slot, which
// becomes the local, then evaluates the body with the local in scope.
func (c *Compiler) compileLet(n *ast.Let) error {
	mark := c.locals.begin()
	slot := c.locals.Height()
	if err := c.compileExpr(n.Init); err != nil {
		return err
	}
	if !c.locals.declare(n.Name, slot) {
		return &CompileError{Err: ErrTooManyLocals, Span: n.SpanVal, Detail: fmt.Sprintf("%s needs slot %d", n.Name, slot)}
	}
	if err := c.compileExpr(n.Body); err != nil {
		return err
	}
	return c.endScope(mark, n.SpanVal)
}

// compileIf lowers a conditional:
//
//	<cond>
//	JUMP_IF_FALSE else
//	<then>
//	JUMP end
//	else: <else or UNIT>
//	end:
func (c *Compiler) compileIf(n *ast.If) error {
	if err := c.compileExpr(n.Cond); err != nil {
		return err
	}
	toElse := c.emitJump(vm.OpJumpIfFalse, n.SpanVal)
	base := c.locals.Height()

	if err := c.compileScoped(n.Then, n.Then.Span()); err != nil {
		return err
	}
	toEnd := c.emitJump(vm.OpJump, n.SpanVal)
	if err := c.patchJump(toElse, n.SpanVal); err != nil {
		return err
	}

	c.locals.reset(base)
	if n.Else != nil {
		if err := c.compileScoped(n.Else, n.Else.Span()); err != nil {
			return err
		}
	} else {
		c.emit(vm.OpUnit, n.SpanVal)
	}
	return c.patchJump(toEnd, n.SpanVal)
}
