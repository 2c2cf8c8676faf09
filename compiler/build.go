package compiler

import (
	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/hash"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
	"github.com/ch1n3du/pico-typechecker/vm"
)

// Program is the result of building source text.
type Program struct {
	Expr  ast.Expr
	Type  types.Type
	Chunk *vm.Chunk
	// Hash identifies the program up to layout and binding names.
	Hash hash.Sum
	// Warnings are advisory findings from Lint.
	Warnings []Warning
}

// Build parses, type-checks and compiles source, terminating the chunk
// with RETURN. Errors are *ParseError, a TypeError or *CompileError.
func Build(source string) (*Program, error) {
	expr, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return BuildExpr(expr)
}

// BuildExpr type-checks and compiles an already parsed expression.
func BuildExpr(expr ast.Expr) (*Program, error) {
	prog, err := CheckExpr(expr)
	if err != nil {
		return nil, err
	}
	chunk := vm.NewChunk()
	if err := Compile(chunk, expr); err != nil {
		return nil, err
	}
	end := expr.Span().End
	chunk.WriteOpcode(vm.OpReturn, nil, ast.Span{Start: end, End: end})
	prog.Chunk = chunk
	log.Debugf("built %s program %s: %d bytes, %d constants", prog.Type, prog.Hash.Short(), chunk.Len(), chunk.ConstantCount())
	return prog, nil
}

// CheckSource runs every stage of Build except code generation. The
// returned program has a nil Chunk.
func CheckSource(source string) (*Program, error) {
	expr, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return CheckExpr(expr)
}

// CheckExpr is CheckSource for an already parsed expression.
func CheckExpr(expr ast.Expr) (*Program, error) {
	t, err := Check(expr)
	if err != nil {
		return nil, err
	}
	return &Program{Expr: expr, Type: t, Hash: hash.Expr(expr), Warnings: Lint(expr)}, nil
}

// Eval builds source and runs it, returning the value left on top of the
// stack.
func Eval(source string) (vm.Value, types.Type, error) {
	prog, err := Build(source)
	if err != nil {
		return vm.Value{}, nil, err
	}
	m := vm.New(prog.Chunk)
	if err := m.Run(); err != nil {
		return vm.Value{}, prog.Type, err
	}
	v, _ := m.Top()
	return v, prog.Type, nil
}
