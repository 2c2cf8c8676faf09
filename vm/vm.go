package vm

import (
	"fmt"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("pico.vm")

// DefaultStackCapacity is the initial capacity reserved for the value stack.
const DefaultStackCapacity = 256

// VM executes one chunk over a single flat value stack. Locals live in the
// same stack and are addressed by absolute index.
//
// A VM is single-use: construct one per execution.
type VM struct {
	chunk *Chunk
	ip    int
	stack []Value

	// Trace logs every decoded instruction at debug level.
	Trace bool

	// Steps counts executed instructions.
	Steps int
}

// New creates a VM positioned at the start of chunk.
func New(chunk *Chunk) *VM {
	return &VM{
		chunk: chunk,
		stack: make([]Value, 0, DefaultStackCapacity),
	}
}

// Stack returns the current value stack, bottom first. After a successful
// Run it is the program's observable result.
func (vm *VM) Stack() []Value { return vm.stack }

// Top returns the value on top of the stack.
func (vm *VM) Top() (Value, bool) {
	if len(vm.stack) == 0 {
		return Value{}, false
	}
	return vm.stack[len(vm.stack)-1], true
}

// IP returns the instruction pointer.
func (vm *VM) IP() int { return vm.ip }

// Run executes instructions until Return. Execution stops at the first
// runtime error; the stack is left as it was at that point.
func (vm *VM) Run() error {
	for {
		start := vm.ip
		b, ok := vm.chunk.Instruction(vm.ip)
		if !ok {
			return vm.fail(start, 0, ErrOutOfInstructions, "ran past end of code without RETURN")
		}
		op := OpCode(b)
		vm.ip++
		vm.Steps++

		if !op.Valid() {
			return vm.fail(start, op, ErrInvalidOpCode, fmt.Sprintf("byte 0x%02X", b))
		}

		if vm.Trace {
			line, _ := vm.chunk.DisassembleInstruction(start)
			log.Debugf("[%04d] %-40s sp=%d", start, line, len(vm.stack))
		}

		switch op {
		// ============ Control ============
		case OpReturn:
			return nil

		// ============ Constants ============
		case OpGetConstant, OpGetConstantLong:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			idx := decodeIndex(operand)
			v, ok := vm.chunk.Constant(idx)
			if !ok {
				return vm.fail(start, op, ErrConstantOutOfRange,
					fmt.Sprintf("index %d, pool has %d", idx, vm.chunk.ConstantCount()))
			}
			vm.push(v)

		case OpUnit:
			vm.push(Unit())

		case OpTrue:
			vm.push(Bool(true))

		case OpFalse:
			vm.push(Bool(false))

		// ============ Arithmetic ============
		case OpNegate:
			a, err := vm.popInt(start, op)
			if err != nil {
				return err
			}
			vm.push(Int(-a))

		case OpAdd:
			if err := vm.checkDepth(start, op, 2); err != nil {
				return err
			}
			right, left := vm.pop(), vm.pop()
			if ls, ok := left.AsStr(); ok {
				rs, ok := right.AsStr()
				if !ok {
					return vm.operandType(start, op, left, right)
				}
				vm.push(Str(ls + rs))
				break
			}
			li, lok := left.AsInt()
			ri, rok := right.AsInt()
			if !lok || !rok {
				return vm.operandType(start, op, left, right)
			}
			vm.push(Int(li + ri))

		case OpSubtract, OpMultiply, OpDivide:
			left, right, err := vm.popInts(start, op)
			if err != nil {
				return err
			}
			switch op {
			case OpSubtract:
				vm.push(Int(left - right))
			case OpMultiply:
				vm.push(Int(left * right))
			case OpDivide:
				if right == 0 {
					return vm.fail(start, op, ErrDivisionByZero, fmt.Sprintf("%d / 0", left))
				}
				vm.push(Int(left / right))
			}

		// ============ Comparison ============
		case OpEqual, OpNotEqual:
			if err := vm.checkDepth(start, op, 2); err != nil {
				return err
			}
			right, left := vm.pop(), vm.pop()
			eq := left.Equal(right)
			vm.push(Bool(eq == (op == OpEqual)))

		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			left, right, err := vm.popInts(start, op)
			if err != nil {
				return err
			}
			var r bool
			switch op {
			case OpLess:
				r = left < right
			case OpLessEqual:
				r = left <= right
			case OpGreater:
				r = left > right
			case OpGreaterEqual:
				r = left >= right
			}
			vm.push(Bool(r))

		// ============ Logic ============
		case OpAnd, OpOr:
			if err := vm.checkDepth(start, op, 2); err != nil {
				return err
			}
			right, left := vm.pop(), vm.pop()
			lb, lok := left.AsBool()
			rb, rok := right.AsBool()
			if !lok || !rok {
				return vm.operandType(start, op, left, right)
			}
			if op == OpAnd {
				vm.push(Bool(lb && rb))
			} else {
				vm.push(Bool(lb || rb))
			}

		case OpNot:
			if err := vm.checkDepth(start, op, 1); err != nil {
				return err
			}
			v := vm.pop()
			b, ok := v.AsBool()
			if !ok {
				return vm.operandType(start, op, v)
			}
			vm.push(Bool(!b))

		// ============ Locals and Stack ============
		case OpGetLocal:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			slot := int(operand[0])
			if slot >= len(vm.stack) {
				return vm.fail(start, op, ErrLocalOutOfRange,
					fmt.Sprintf("slot %d, stack height %d", slot, len(vm.stack)))
			}
			vm.push(vm.stack[slot].Clone())

		case OpSetLocal:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			if err := vm.checkDepth(start, op, 1); err != nil {
				return err
			}
			v := vm.pop()
			slot := int(operand[0])
			if slot >= len(vm.stack) {
				return vm.fail(start, op, ErrLocalOutOfRange,
					fmt.Sprintf("slot %d, stack height %d", slot, len(vm.stack)))
			}
			vm.stack[slot] = v

		case OpPop:
			if err := vm.checkDepth(start, op, 1); err != nil {
				return err
			}
			vm.pop()

		case OpPopN:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			n := int(operand[0])
			if err := vm.checkDepth(start, op, n); err != nil {
				return err
			}
			vm.stack = vm.stack[:len(vm.stack)-n]

		// ============ Jumps ============
		case OpJump:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			vm.ip = int(operand[0])

		case OpJumpIfTrue, OpJumpIfFalse:
			operand, err := vm.readOperand(start, op)
			if err != nil {
				return err
			}
			if err := vm.checkDepth(start, op, 1); err != nil {
				return err
			}
			v := vm.pop()
			cond, ok := v.AsBool()
			if !ok {
				return vm.operandType(start, op, v)
			}
			if cond == (op == OpJumpIfTrue) {
				vm.ip = int(operand[0])
			}
		}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (vm *VM) push(v Value) {
	vm.stack = append(vm.stack, v)
}

// pop removes the top value. Callers check depth first.
func (vm *VM) pop() Value {
	n := len(vm.stack) - 1
	v := vm.stack[n]
	vm.stack[n] = Value{}
	vm.stack = vm.stack[:n]
	return v
}

func (vm *VM) checkDepth(offset int, op OpCode, need int) error {
	if len(vm.stack) < need {
		return vm.fail(offset, op, ErrStackTooShort,
			fmt.Sprintf("%s needs %d values, have %d", op, need, len(vm.stack)))
	}
	return nil
}

func (vm *VM) popInt(offset int, op OpCode) (int64, error) {
	if err := vm.checkDepth(offset, op, 1); err != nil {
		return 0, err
	}
	v := vm.pop()
	n, ok := v.AsInt()
	if !ok {
		return 0, vm.operandType(offset, op, v)
	}
	return n, nil
}

// popInts pops the right operand then the left one.
func (vm *VM) popInts(offset int, op OpCode) (left, right int64, err error) {
	if err := vm.checkDepth(offset, op, 2); err != nil {
		return 0, 0, err
	}
	r, l := vm.pop(), vm.pop()
	left, lok := l.AsInt()
	right, rok := r.AsInt()
	if !lok || !rok {
		return 0, 0, vm.operandType(offset, op, l, r)
	}
	return left, right, nil
}

// readOperand consumes the operand bytes of op.
func (vm *VM) readOperand(offset int, op OpCode) ([]byte, error) {
	n := op.OperandLen()
	if vm.ip+n > vm.chunk.Len() {
		return nil, vm.fail(offset, op, ErrOutOfInstructions,
			fmt.Sprintf("%s operand runs past end of code", op))
	}
	operand := vm.chunk.Code()[vm.ip : vm.ip+n]
	vm.ip += n
	return operand, nil
}

func (vm *VM) operandType(offset int, op OpCode, got ...Value) error {
	kinds := make([]string, len(got))
	for i, v := range got {
		kinds[i] = v.Kind().String()
	}
	return vm.fail(offset, op, ErrOperandType, fmt.Sprintf("%s applied to %v", op, kinds))
}

func (vm *VM) fail(offset int, op OpCode, sentinel error, detail string) error {
	span, _ := vm.chunk.SpanAt(offset)
	return &RuntimeError{
		Err:    sentinel,
		Offset: offset,
		Op:     op,
		Span:   span,
		Detail: detail,
	}
}
