package compiler

import (
	"errors"
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// ---------------------------------------------------------------------------
// Type errors
// ---------------------------------------------------------------------------

// TypeError is implemented by every error the checker reports.
type TypeError interface {
	error
	Where() ast.Span
}

// VarDoesntExistError reports a reference to an unbound name.
type VarDoesntExistError struct {
	Span ast.Span
	Name string
}

func (e *VarDoesntExistError) Error() string {
	return fmt.Sprintf("variable %q doesn't exist", e.Name)
}
func (e *VarDoesntExistError) Where() ast.Span { return e.Span }

// UnaryTypeError reports a prefix operator applied to an unsupported type.
type UnaryTypeError struct {
	Span ast.Span
	Op   ast.Op
	Type types.Type
}

func (e *UnaryTypeError) Error() string {
	return fmt.Sprintf("operator %s cannot be applied to %s", e.Op, types.Format(e.Type))
}
func (e *UnaryTypeError) Where() ast.Span { return e.Span }

// BinaryTypeError reports an infix operator applied to unsupported operand
// types.
type BinaryTypeError struct {
	Span  ast.Span
	Op    ast.Op
	Left  types.Type
	Right types.Type
}

func (e *BinaryTypeError) Error() string {
	return fmt.Sprintf("operator %s cannot be applied to %s and %s",
		e.Op, types.Format(e.Left), types.Format(e.Right))
}
func (e *BinaryTypeError) Where() ast.Span { return e.Span }

// AnnotationMismatchError reports a let initializer that disagrees with the
// declared type.
type AnnotationMismatchError struct {
	Span     ast.Span
	Name     string
	Declared types.Type
	Actual   types.Type
}

func (e *AnnotationMismatchError) Error() string {
	return fmt.Sprintf("let %s declared as %s but initialized with %s",
		e.Name, types.Format(e.Declared), types.Format(e.Actual))
}
func (e *AnnotationMismatchError) Where() ast.Span { return e.Span }

// ConditionTypeError reports a non-bool if condition.
type ConditionTypeError struct {
	Span ast.Span
	Type types.Type
}

func (e *ConditionTypeError) Error() string {
	return fmt.Sprintf("if condition must be bool, got %s", types.Format(e.Type))
}
func (e *ConditionTypeError) Where() ast.Span { return e.Span }

// BranchMismatchError reports if/else branches of different types.
type BranchMismatchError struct {
	Span ast.Span
	Then types.Type
	Else types.Type
}

func (e *BranchMismatchError) Error() string {
	return fmt.Sprintf("if branches differ: %s vs %s", types.Format(e.Then), types.Format(e.Else))
}
func (e *BranchMismatchError) Where() ast.Span { return e.Span }

// MissingElseError reports an if without else whose branch is not unit.
type MissingElseError struct {
	Span ast.Span
	Then types.Type
}

func (e *MissingElseError) Error() string {
	return fmt.Sprintf("if without else must have a () branch, got %s", types.Format(e.Then))
}
func (e *MissingElseError) Where() ast.Span { return e.Span }

// ReturnTypeError reports a function body that disagrees with the declared
// return type.
type ReturnTypeError struct {
	Span     ast.Span
	Declared types.Type
	Actual   types.Type
}

func (e *ReturnTypeError) Error() string {
	return fmt.Sprintf("function declared to return %s but body has type %s",
		types.Format(e.Declared), types.Format(e.Actual))
}
func (e *ReturnTypeError) Where() ast.Span { return e.Span }

// IncorrectCalleeError reports a call of a non-function.
type IncorrectCalleeError struct {
	Span ast.Span
	Type types.Type
}

func (e *IncorrectCalleeError) Error() string {
	return fmt.Sprintf("cannot call a value of type %s", types.Format(e.Type))
}
func (e *IncorrectCalleeError) Where() ast.Span { return e.Span }

// IncorrectArgNoError reports a call with the wrong number of arguments.
type IncorrectArgNoError struct {
	Span     ast.Span
	Expected int
	Got      int
}

func (e *IncorrectArgNoError) Error() string {
	return fmt.Sprintf("expected %d arguments, got %d", e.Expected, e.Got)
}
func (e *IncorrectArgNoError) Where() ast.Span { return e.Span }

// IncorrectArgTypeError reports the first argument whose type differs from
// its parameter.
type IncorrectArgTypeError struct {
	Span     ast.Span
	Index    int
	Expected types.Type
	Got      types.Type
}

func (e *IncorrectArgTypeError) Error() string {
	return fmt.Sprintf("argument %d: expected %s, got %s",
		e.Index, types.Format(e.Expected), types.Format(e.Got))
}
func (e *IncorrectArgTypeError) Where() ast.Span { return e.Span }

// ---------------------------------------------------------------------------
// Compile errors
// ---------------------------------------------------------------------------

// Compile failure categories. A *CompileError unwraps to one of these.
var (
	ErrUnsupported      = errors.New("not supported by the bytecode compiler")
	ErrTooManyLocals    = errors.New("too many stack slots")
	ErrJumpTooFar       = errors.New("jump target out of range")
	ErrConstantPoolFull = errors.New("constant pool full")
	ErrUnresolvedLocal  = errors.New("unresolved local")
)

// CompileError reports an expression the code generator cannot lower.
type CompileError struct {
	Err    error
	Span   ast.Span
	Detail string
}

func (e *CompileError) Error() string {
	msg := fmt.Sprintf("compile error at %s: %s", e.Span, e.Err)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *CompileError) Unwrap() error { return e.Err }
