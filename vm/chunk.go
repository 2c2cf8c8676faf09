package vm

import (
	"errors"
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
)

// SpanRun is one entry of a chunk's run-length span map: Count consecutive
// code bytes that originate from Span.
type SpanRun struct {
	Span  ast.Span
	Count int
}

// Chunk is a unit of compiled bytecode: the instruction bytes, the constant
// pool, and a run-length map from code bytes back to source spans.
//
// Code and constants are append-only. The span run counts always sum to the
// code length.
type Chunk struct {
	code      []byte
	constants []Value
	spans     []SpanRun
}

// NewChunk creates an empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		code:      make([]byte, 0, 64),
		constants: make([]Value, 0, 8),
	}
}

// ErrMalformedChunk is returned when rebuilding a chunk from parts whose span
// map does not cover the code exactly.
var ErrMalformedChunk = errors.New("malformed chunk")

// NewChunkFrom rebuilds a chunk from previously extracted parts. The slices
// are copied.
func NewChunkFrom(code []byte, constants []Value, spans []SpanRun) (*Chunk, error) {
	total := 0
	for _, r := range spans {
		if r.Count <= 0 {
			return nil, fmt.Errorf("%w: span run with count %d", ErrMalformedChunk, r.Count)
		}
		total += r.Count
	}
	if total != len(code) {
		return nil, fmt.Errorf("%w: spans cover %d bytes, code has %d", ErrMalformedChunk, total, len(code))
	}
	c := &Chunk{
		code:      append([]byte(nil), code...),
		constants: append([]Value(nil), constants...),
		spans:     append([]SpanRun(nil), spans...),
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

// WriteOpcode appends op and its operand bytes, all attributed to span, and
// returns the offset of the opcode byte.
//
// The operand count must match the opcode's arity. A mismatch is a bug in the
// code generator, so it panics rather than returning an error.
func (c *Chunk) WriteOpcode(op OpCode, operands []byte, span ast.Span) int {
	if !op.Valid() {
		panic(fmt.Sprintf("vm: write of undefined opcode 0x%02X", byte(op)))
	}
	if want := op.OperandLen(); len(operands) != want {
		panic(fmt.Sprintf("vm: %s takes %d operand bytes, got %d", op, want, len(operands)))
	}
	offset := len(c.code)
	c.writeByte(byte(op), span)
	for _, b := range operands {
		c.writeByte(b, span)
	}
	return offset
}

// writeByte appends one byte, extending the last span run when the span
// repeats.
func (c *Chunk) writeByte(b byte, span ast.Span) {
	c.code = append(c.code, b)
	if n := len(c.spans); n > 0 && c.spans[n-1].Span == span {
		c.spans[n-1].Count++
		return
	}
	c.spans = append(c.spans, SpanRun{Span: span, Count: 1})
}

// AddConstant appends v to the constant pool and returns its index.
// Duplicates are not merged.
func (c *Chunk) AddConstant(v Value) int {
	c.constants = append(c.constants, v.Clone())
	return len(c.constants) - 1
}

// Patch overwrites the byte at offset. It is used to back-fill jump targets
// and panics if offset has not been written.
func (c *Chunk) Patch(offset int, b byte) {
	if offset < 0 || offset >= len(c.code) {
		panic(fmt.Sprintf("vm: patch at offset %d outside code of length %d", offset, len(c.code)))
	}
	c.code[offset] = b
}

// ---------------------------------------------------------------------------
// Lookup
// ---------------------------------------------------------------------------

// Instruction returns the code byte at offset.
func (c *Chunk) Instruction(offset int) (byte, bool) {
	if offset < 0 || offset >= len(c.code) {
		return 0, false
	}
	return c.code[offset], true
}

// Constant returns the constant at index.
func (c *Chunk) Constant(index int) (Value, bool) {
	if index < 0 || index >= len(c.constants) {
		return Value{}, false
	}
	return c.constants[index].Clone(), true
}

// SpanAt returns the source span of the code byte at offset.
func (c *Chunk) SpanAt(offset int) (ast.Span, bool) {
	if offset < 0 {
		return ast.Span{}, false
	}
	for _, r := range c.spans {
		if offset < r.Count {
			return r.Span, true
		}
		offset -= r.Count
	}
	return ast.Span{}, false
}

// Len returns the number of code bytes.
func (c *Chunk) Len() int { return len(c.code) }

// ConstantCount returns the number of entries in the constant pool.
func (c *Chunk) ConstantCount() int { return len(c.constants) }

// Code returns the code bytes. Callers must not modify the result.
func (c *Chunk) Code() []byte { return c.code }

// Constants returns the constant pool. Callers must not modify the result.
func (c *Chunk) Constants() []Value { return c.constants }

// Spans returns the run-length span map. Callers must not modify the result.
func (c *Chunk) Spans() []SpanRun { return c.spans }

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate walks the instruction stream and checks that every opcode is
// defined, every instruction is complete, every constant index is in range
// and every jump lands on the start of an instruction. A chunk produced by
// the code generator always validates; chunks loaded from images may not.
func (c *Chunk) Validate() error {
	starts := make(map[int]bool)
	var jumps []int
	for offset := 0; offset < len(c.code); {
		op := OpCode(c.code[offset])
		if !op.Valid() {
			return fmt.Errorf("%w: undefined opcode 0x%02X at %04d", ErrMalformedChunk, byte(op), offset)
		}
		end := offset + op.InstructionLen()
		if end > len(c.code) {
			return fmt.Errorf("%w: truncated %s at %04d", ErrMalformedChunk, op, offset)
		}
		starts[offset] = true
		switch {
		case op == OpGetConstant || op == OpGetConstantLong:
			idx := decodeIndex(c.code[offset+1 : end])
			if idx >= len(c.constants) {
				return fmt.Errorf("%w: constant %d out of range at %04d", ErrMalformedChunk, idx, offset)
			}
		case op.IsJump():
			jumps = append(jumps, offset)
		}
		offset = end
	}

	// Targets can point forward, so they are checked once every start is known.
	for _, offset := range jumps {
		target := int(c.code[offset+1])
		if !starts[target] {
			return fmt.Errorf("%w: %s at %04d targets %04d, not an instruction",
				ErrMalformedChunk, OpCode(c.code[offset]), offset, target)
		}
	}
	return nil
}

// EncodeLongIndex returns the 3-byte big-endian operand of GetConstantLong.
func EncodeLongIndex(idx int) []byte {
	return []byte{byte(idx >> 16), byte(idx >> 8), byte(idx)}
}

// decodeIndex reads a 1- or 3-byte big-endian operand.
func decodeIndex(operand []byte) int {
	n := 0
	for _, b := range operand {
		n = n<<8 | int(b)
	}
	return n
}

// MaxLongIndex is the largest constant index GetConstantLong can address.
const MaxLongIndex = 1<<24 - 1
