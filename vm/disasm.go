package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable listing of the chunk under a title
// header: the constant pool followed by one line per instruction with its
// offset, mnemonic, decoded operand and source span.
func (c *Chunk) Disassemble(title string) string {
	var sb strings.Builder

	if title != "" {
		fmt.Fprintf(&sb, "; === %s ===\n", title)
	}
	fmt.Fprintf(&sb, "; %d bytes, %d constants\n\n", len(c.code), len(c.constants))

	if len(c.constants) > 0 {
		sb.WriteString("; Constants:\n")
		for i, v := range c.constants {
			fmt.Fprintf(&sb, ";   [%3d] %s\n", i, displayValue(v))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("; Code:\n")
	for offset := 0; offset < len(c.code); {
		line, n := c.DisassembleInstruction(offset)
		if span, ok := c.SpanAt(offset); ok {
			fmt.Fprintf(&sb, "%04d  %-36s ; %s\n", offset, line, span)
		} else {
			fmt.Fprintf(&sb, "%04d  %s\n", offset, line)
		}
		offset += n
	}

	return sb.String()
}

// DisassembleInstruction renders the instruction at offset and returns its
// length in bytes. Truncated or undefined instructions render as such and
// consume the remaining or single byte respectively.
func (c *Chunk) DisassembleInstruction(offset int) (string, int) {
	if offset >= len(c.code) {
		return "<end of code>", 0
	}

	op := OpCode(c.code[offset])
	if !op.Valid() {
		return op.String(), 1
	}
	n := op.InstructionLen()
	if offset+n > len(c.code) {
		return fmt.Sprintf("%s <truncated>", op), len(c.code) - offset
	}
	operand := c.code[offset+1 : offset+n]

	switch op {
	case OpGetConstant, OpGetConstantLong:
		idx := decodeIndex(operand)
		if v, ok := c.Constant(idx); ok {
			return fmt.Sprintf("%-18s %5d  ; %s", op, idx, displayValue(v)), n
		}
		return fmt.Sprintf("%-18s %5d  ; <out of range>", op, idx), n

	case OpSetLocal, OpGetLocal:
		return fmt.Sprintf("%-18s %5d  ; slot", op, operand[0]), n

	case OpPopN:
		return fmt.Sprintf("%-18s %5d", op, operand[0]), n

	case OpJump, OpJumpIfTrue, OpJumpIfFalse:
		return fmt.Sprintf("%-18s %5d  ; -> %04d", op, operand[0], operand[0]), n
	}

	return op.String(), n
}

func displayValue(v Value) string {
	s := v.String()
	if len(s) > 40 {
		s = s[:37] + "..."
	}
	return s
}
