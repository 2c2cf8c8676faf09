package vm

import (
	"errors"
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
)

// Runtime failure categories. A *RuntimeError unwraps to exactly one of these.
var (
	ErrInvalidOpCode      = errors.New("invalid opcode")
	ErrOutOfInstructions  = errors.New("out of instructions")
	ErrStackTooShort      = errors.New("stack too short")
	ErrConstantOutOfRange = errors.New("constant index out of range")
	ErrLocalOutOfRange    = errors.New("local slot out of range")
	ErrOperandType        = errors.New("operand has wrong type")
	ErrDivisionByZero     = errors.New("division by zero")
)

// RuntimeError reports a fatal condition raised while executing a chunk.
type RuntimeError struct {
	Err    error    // one of the Err* sentinels
	Offset int      // offset of the failing instruction
	Op     OpCode   // failing opcode, when one was decoded
	Span   ast.Span // source span of the instruction, if known
	Detail string
}

func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("runtime error at %04d", e.Offset)
	if e.Span != (ast.Span{}) {
		msg += fmt.Sprintf(" [%s]", e.Span)
	}
	msg += ": " + e.Err.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }
