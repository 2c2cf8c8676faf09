package vm

import (
	"errors"
	"testing"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
)

// builder assembles test chunks without a compiler.
type builder struct {
	c *Chunk
}

func newBuilder() *builder { return &builder{c: NewChunk()} }

func (b *builder) op(op OpCode, operands ...byte) *builder {
	b.c.WriteOpcode(op, operands, ast.Span{Start: b.c.Len(), End: b.c.Len() + 1})
	return b
}

func (b *builder) constant(v Value) *builder {
	idx := b.c.AddConstant(v)
	return b.op(OpGetConstant, byte(idx))
}

func run(t *testing.T, c *Chunk) *VM {
	t.Helper()
	m := New(c)
	if err := m.Run(); err != nil {
		t.Fatalf("Run() = %v\n%s", err, c.Disassemble("failing"))
	}
	return m
}

func top(t *testing.T, m *VM) Value {
	t.Helper()
	v, ok := m.Top()
	if !ok {
		t.Fatal("stack is empty")
	}
	return v
}

func TestArithmeticOperandOrder(t *testing.T) {
	tests := []struct {
		name string
		op   OpCode
		a, b int64
		want int64
	}{
		{"sub", OpSubtract, 7, 2, 5},
		{"div", OpDivide, 8, 2, 4},
		{"mul", OpMultiply, 6, 7, 42},
		{"add", OpAdd, 40, 2, 42},
	}

	for _, tt := range tests {
		c := newBuilder().constant(Int(tt.a)).constant(Int(tt.b)).op(tt.op).op(OpReturn).c
		m := run(t, c)
		if got := top(t, m); !got.Equal(Int(tt.want)) {
			t.Errorf("%s: %d op %d = %v, want %d", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}

func TestComparisonOperandOrder(t *testing.T) {
	tests := []struct {
		op   OpCode
		a, b int64
		want bool
	}{
		{OpLess, 1, 2, true},
		{OpLess, 2, 1, false},
		{OpLessEqual, 2, 2, true},
		{OpGreater, 3, 2, true},
		{OpGreaterEqual, 1, 2, false},
		{OpEqual, 4, 4, true},
		{OpNotEqual, 4, 4, false},
	}

	for _, tt := range tests {
		c := newBuilder().constant(Int(tt.a)).constant(Int(tt.b)).op(tt.op).op(OpReturn).c
		if got := top(t, run(t, c)); !got.Equal(Bool(tt.want)) {
			t.Errorf("%d %s %d = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}
}

func TestStringConcat(t *testing.T) {
	c := newBuilder().constant(Str("ab")).constant(Str("cd")).op(OpAdd).op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Str("abcd")) {
		t.Errorf("concat = %v, want \"abcd\"", got)
	}
}

func TestNegatePopsOne(t *testing.T) {
	c := newBuilder().constant(Int(9)).constant(Int(4)).op(OpNegate).op(OpReturn).c
	m := run(t, c)
	stack := m.Stack()
	if len(stack) != 2 {
		t.Fatalf("stack height = %d, want 2", len(stack))
	}
	if !stack[0].Equal(Int(9)) || !stack[1].Equal(Int(-4)) {
		t.Errorf("stack = %v, want [9 -4]", stack)
	}
}

func TestLogic(t *testing.T) {
	tests := []struct {
		a, b OpCode
		op   OpCode
		want bool
	}{
		{OpTrue, OpFalse, OpAnd, false},
		{OpTrue, OpTrue, OpAnd, true},
		{OpFalse, OpTrue, OpOr, true},
		{OpFalse, OpFalse, OpOr, false},
	}
	for _, tt := range tests {
		c := newBuilder().op(tt.a).op(tt.b).op(tt.op).op(OpReturn).c
		if got := top(t, run(t, c)); !got.Equal(Bool(tt.want)) {
			t.Errorf("%s %s %s = %v, want %v", tt.a, tt.op, tt.b, got, tt.want)
		}
	}

	c := newBuilder().op(OpFalse).op(OpNot).op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Bool(true)) {
		t.Errorf("not false = %v", got)
	}
}

func TestJumpIfFalse(t *testing.T) {
	// 0 FALSE; 1 JUMP_IF_FALSE 5; 3 TRUE; 4 RETURN; 5 UNIT; 6 RETURN
	c := newBuilder().
		op(OpFalse).
		op(OpJumpIfFalse, 5).
		op(OpTrue).
		op(OpReturn).
		op(OpUnit).
		op(OpReturn).c
	m := run(t, c)
	if got := top(t, m); got.Kind() != KindUnit {
		t.Errorf("false condition: top = %v, want () from jump target", got)
	}
	if len(m.Stack()) != 1 {
		t.Errorf("condition not popped: stack = %v", m.Stack())
	}

	c = newBuilder().
		op(OpTrue).
		op(OpJumpIfFalse, 5).
		op(OpTrue).
		op(OpReturn).
		op(OpUnit).
		op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Bool(true)) {
		t.Errorf("true condition: top = %v, want fallthrough true", got)
	}
}

func TestJumpIfTrue(t *testing.T) {
	c := newBuilder().
		op(OpTrue).
		op(OpJumpIfTrue, 5).
		op(OpFalse).
		op(OpReturn).
		op(OpUnit).
		op(OpReturn).c
	if got := top(t, run(t, c)); got.Kind() != KindUnit {
		t.Errorf("true condition: top = %v, want () from jump target", got)
	}

	c = newBuilder().
		op(OpFalse).
		op(OpJumpIfTrue, 5).
		op(OpFalse).
		op(OpReturn).
		op(OpUnit).
		op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Bool(false)) {
		t.Errorf("false condition: top = %v, want fallthrough false", got)
	}
}

func TestJumpAbsolute(t *testing.T) {
	// 0 JUMP 3; 2 RETURN; 3 TRUE; 4 RETURN
	c := newBuilder().op(OpJump, 3).op(OpReturn).op(OpTrue).op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Bool(true)) {
		t.Errorf("top = %v, want true", got)
	}
}

func TestLocals(t *testing.T) {
	// slot 0 = 10; push slot 0 + 1; store into slot 0; read it back.
	c := newBuilder().
		constant(Int(10)).
		op(OpGetLocal, 0).
		constant(Int(1)).
		op(OpAdd).
		op(OpSetLocal, 0).
		op(OpGetLocal, 0).
		op(OpReturn).c
	m := run(t, c)
	stack := m.Stack()
	if len(stack) != 2 || !stack[0].Equal(Int(11)) || !stack[1].Equal(Int(11)) {
		t.Errorf("stack = %v, want [11 11]", stack)
	}
}

func TestPopN(t *testing.T) {
	c := newBuilder().op(OpTrue).op(OpTrue).op(OpFalse).op(OpPopN, 2).op(OpReturn).c
	m := run(t, c)
	if len(m.Stack()) != 1 {
		t.Errorf("stack = %v, want one value", m.Stack())
	}
}

func TestConstantLong(t *testing.T) {
	b := newBuilder()
	for i := 0; i < 300; i++ {
		b.c.AddConstant(Int(int64(i)))
	}
	c := b.op(OpGetConstantLong, EncodeLongIndex(299)...).op(OpReturn).c
	if got := top(t, run(t, c)); !got.Equal(Int(299)) {
		t.Errorf("top = %v, want 299", got)
	}
}

func TestRuntimeErrors(t *testing.T) {
	tests := []struct {
		name string
		c    *Chunk
		want error
	}{
		{"invalid opcode", mustChunk(t, []byte{0xEE}), ErrInvalidOpCode},
		{"no return", newBuilder().op(OpTrue).c, ErrOutOfInstructions},
		{"empty chunk", NewChunk(), ErrOutOfInstructions},
		{"truncated operand", mustChunk(t, []byte{byte(OpGetLocal)}), ErrOutOfInstructions},
		{"pop empty", newBuilder().op(OpPop).op(OpReturn).c, ErrStackTooShort},
		{"popn too many", newBuilder().op(OpTrue).op(OpPopN, 2).op(OpReturn).c, ErrStackTooShort},
		{"add one operand", newBuilder().op(OpTrue).op(OpAdd).op(OpReturn).c, ErrStackTooShort},
		{"constant range", newBuilder().op(OpGetConstant, 0).op(OpReturn).c, ErrConstantOutOfRange},
		{"get local range", newBuilder().op(OpGetLocal, 3).op(OpReturn).c, ErrLocalOutOfRange},
		{"set local range", newBuilder().op(OpTrue).op(OpSetLocal, 0).op(OpReturn).c, ErrLocalOutOfRange},
		{"negate bool", newBuilder().op(OpTrue).op(OpNegate).op(OpReturn).c, ErrOperandType},
		{"jump on int", newBuilder().constant(Int(1)).op(OpJumpIfFalse, 0).op(OpReturn).c, ErrOperandType},
		{"div zero", newBuilder().constant(Int(1)).constant(Int(0)).op(OpDivide).op(OpReturn).c, ErrDivisionByZero},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.c).Run()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run() = %v, want %v", err, tt.want)
			}
			var rerr *RuntimeError
			if !errors.As(err, &rerr) {
				t.Fatalf("Run() error %T is not *RuntimeError", err)
			}
		})
	}
}

func TestTrace(t *testing.T) {
	c := newBuilder().op(OpTrue).op(OpReturn).c
	m := New(c)
	m.Trace = true
	if err := m.Run(); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if m.Steps != 2 {
		t.Errorf("Steps = %d, want 2", m.Steps)
	}
}

func mustChunk(t *testing.T, code []byte) *Chunk {
	t.Helper()
	c, err := NewChunkFrom(code, nil, []SpanRun{{Count: len(code)}})
	if err != nil {
		t.Fatalf("NewChunkFrom: %v", err)
	}
	return c
}
