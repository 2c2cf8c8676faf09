package vm

import "fmt"

// OpCode is a single bytecode instruction tag. An instruction is the tag
// byte followed by OperandLen operand bytes.
type OpCode byte

const (
	// ========================================================================
	// Control and constants
	// ========================================================================

	OpReturn          OpCode = 0 // Halt execution
	OpGetConstant     OpCode = 1 // Push constant: OpGetConstant <index:u8>
	OpGetConstantLong OpCode = 2 // Push constant: OpGetConstantLong <index:u24 big-endian>

	// ========================================================================
	// Arithmetic
	// ========================================================================

	OpNegate   OpCode = 3 // -a
	OpAdd      OpCode = 4 // a + b (ints or strings)
	OpSubtract OpCode = 5 // a - b
	OpMultiply OpCode = 6 // a * b
	OpDivide   OpCode = 7 // a / b

	// ========================================================================
	// Comparison
	// ========================================================================

	OpEqual        OpCode = 8  // a == b
	OpNotEqual     OpCode = 9  // a != b
	OpLess         OpCode = 10 // a < b
	OpLessEqual    OpCode = 11 // a <= b
	OpGreater      OpCode = 12 // a > b
	OpGreaterEqual OpCode = 13 // a >= b

	// ========================================================================
	// Logic
	// ========================================================================

	OpAnd OpCode = 14 // a and b
	OpOr  OpCode = 15 // a or b
	OpNot OpCode = 16 // not a

	// ========================================================================
	// Intrinsic literals
	// ========================================================================

	OpUnit  OpCode = 17 // Push ()
	OpTrue  OpCode = 18 // Push true
	OpFalse OpCode = 19 // Push false

	// ========================================================================
	// Locals and stack
	// ========================================================================

	OpSetLocal OpCode = 20 // Pop into stack slot: OpSetLocal <slot:u8>
	OpGetLocal OpCode = 21 // Push copy of stack slot: OpGetLocal <slot:u8>
	OpPop      OpCode = 22 // Discard top of stack
	OpPopN     OpCode = 23 // Discard n values: OpPopN <n:u8>

	// ========================================================================
	// Jumps (targets are absolute code offsets)
	// ========================================================================

	OpJump        OpCode = 24 // Unconditional: OpJump <target:u8>
	OpJumpIfTrue  OpCode = 25 // Pop; jump if true: OpJumpIfTrue <target:u8>
	OpJumpIfFalse OpCode = 26 // Pop; jump if false: OpJumpIfFalse <target:u8>
)

// VariablePop marks an opcode whose pop count is its operand.
const VariablePop = -1

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable mnemonic
	StackPop   int    // Values popped, or VariablePop
	StackPush  int    // Values pushed
	OperandLen int    // Operand bytes following the opcode
}

var opcodeInfoTable = map[OpCode]OpcodeInfo{
	OpReturn:          {"RETURN", 0, 0, 0},
	OpGetConstant:     {"GET_CONSTANT", 0, 1, 1},
	OpGetConstantLong: {"GET_CONSTANT_LONG", 0, 1, 3},

	OpNegate:   {"NEGATE", 1, 1, 0},
	OpAdd:      {"ADD", 2, 1, 0},
	OpSubtract: {"SUBTRACT", 2, 1, 0},
	OpMultiply: {"MULTIPLY", 2, 1, 0},
	OpDivide:   {"DIVIDE", 2, 1, 0},

	OpEqual:        {"EQUAL", 2, 1, 0},
	OpNotEqual:     {"NOT_EQUAL", 2, 1, 0},
	OpLess:         {"LESS", 2, 1, 0},
	OpLessEqual:    {"LESS_EQUAL", 2, 1, 0},
	OpGreater:      {"GREATER", 2, 1, 0},
	OpGreaterEqual: {"GREATER_EQUAL", 2, 1, 0},

	OpAnd: {"AND", 2, 1, 0},
	OpOr:  {"OR", 2, 1, 0},
	OpNot: {"NOT", 1, 1, 0},

	OpUnit:  {"UNIT", 0, 1, 0},
	OpTrue:  {"TRUE", 0, 1, 0},
	OpFalse: {"FALSE", 0, 1, 0},

	OpSetLocal: {"SET_LOCAL", 1, 0, 1},
	OpGetLocal: {"GET_LOCAL", 0, 1, 1},
	OpPop:      {"POP", 1, 0, 0},
	OpPopN:     {"POP_N", VariablePop, 0, 1},

	OpJump:        {"JUMP", 0, 0, 1},
	OpJumpIfTrue:  {"JUMP_IF_TRUE", 1, 0, 1},
	OpJumpIfFalse: {"JUMP_IF_FALSE", 1, 0, 1},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op OpCode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the mnemonic of an opcode.
func (op OpCode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is a defined opcode.
func (op OpCode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// OperandLen returns the number of operand bytes for this opcode.
func (op OpCode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op OpCode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op OpCode) IsJump() bool {
	return op >= OpJump && op <= OpJumpIfFalse
}

// StackEffect returns the net change in stack height caused by executing op
// with the given operand bytes.
func (op OpCode) StackEffect(operands []byte) int {
	info := GetOpcodeInfo(op)
	pop := info.StackPop
	if pop == VariablePop {
		pop = 0
		if len(operands) > 0 {
			pop = int(operands[0])
		}
	}
	return info.StackPush - pop
}

// AllOpcodes returns every defined opcode in numeric order.
func AllOpcodes() []OpCode {
	ops := make([]OpCode, 0, len(opcodeInfoTable))
	for op := OpReturn; op <= OpJumpIfFalse; op++ {
		if op.Valid() {
			ops = append(ops, op)
		}
	}
	return ops
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
