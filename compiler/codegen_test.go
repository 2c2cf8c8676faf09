package compiler

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/vm"
)

func compileSource(t *testing.T, src string) *vm.Chunk {
	t.Helper()
	expr := mustParse(t, src)
	if _, err := Check(expr); err != nil {
		t.Fatalf("Check(%q) = %v", src, err)
	}
	chunk := vm.NewChunk()
	if err := Compile(chunk, expr); err != nil {
		t.Fatalf("Compile(%q) = %v", src, err)
	}
	return chunk
}

func opcodes(c *vm.Chunk) []vm.OpCode {
	var ops []vm.OpCode
	code := c.Code()
	for i := 0; i < len(code); {
		op := vm.OpCode(code[i])
		ops = append(ops, op)
		i += op.InstructionLen()
	}
	return ops
}

func TestCompileInstructionSequences(t *testing.T) {
	tests := []struct {
		src  string
		want []vm.OpCode
	}{
		{"()", []vm.OpCode{vm.OpUnit}},
		{"true", []vm.OpCode{vm.OpTrue}},
		{"false", []vm.OpCode{vm.OpFalse}},
		{"7 - 2", []vm.OpCode{vm.OpGetConstant, vm.OpGetConstant, vm.OpSubtract}},
		{"-(3)", []vm.OpCode{vm.OpGetConstant, vm.OpNegate}},
		{"not true", []vm.OpCode{vm.OpTrue, vm.OpNot}},
		{"let x = 3; x + 4", []vm.OpCode{
			vm.OpGetConstant, vm.OpGetLocal, vm.OpGetConstant, vm.OpAdd, vm.OpSetLocal,
		}},
		{"if true { 1 } else { 2 }", []vm.OpCode{
			vm.OpTrue, vm.OpJumpIfFalse, vm.OpGetConstant, vm.OpJump, vm.OpGetConstant,
		}},
		{"if true { () }", []vm.OpCode{
			vm.OpTrue, vm.OpJumpIfFalse, vm.OpUnit, vm.OpJump, vm.OpUnit,
		}},
	}

	for _, tt := range tests {
		got := opcodes(compileSource(t, tt.src))
		if fmt.Sprint(got) != fmt.Sprint(tt.want) {
			t.Errorf("Compile(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

func TestCompileJumpTargets(t *testing.T) {
	// 0 TRUE; 1 JUMP_IF_FALSE 7; 3 GET_CONSTANT 0; 5 JUMP 9; 7 GET_CONSTANT 1; 9
	c := compileSource(t, "if true { 1 } else { 2 }")
	code := c.Code()
	if code[2] != 7 {
		t.Errorf("JUMP_IF_FALSE target = %d, want 7", code[2])
	}
	if code[6] != 9 {
		t.Errorf("JUMP target = %d, want 9", code[6])
	}
}

func TestCompileShadowingSlots(t *testing.T) {
	// x=1 lives in slot 0, the inner x=2 in slot 1; the reference reads slot 1.
	c := compileSource(t, "let x = 1; let x = 2; x")
	code := c.Code()
	// GET_CONSTANT 0, GET_CONSTANT 1, GET_LOCAL 1, SET_LOCAL 1, SET_LOCAL 0
	want := []byte{
		byte(vm.OpGetConstant), 0,
		byte(vm.OpGetConstant), 1,
		byte(vm.OpGetLocal), 1,
		byte(vm.OpSetLocal), 1,
		byte(vm.OpSetLocal), 0,
	}
	if string(code) != string(want) {
		t.Errorf("code = %v, want %v", code, want)
	}
}

func TestCompileSiblingBlocksReuseSlots(t *testing.T) {
	c := compileSource(t, "{ let a = 1; a } + { let b = 2; b }")
	code := c.Code()
	var gets []byte
	for i := 0; i < len(code); {
		op := vm.OpCode(code[i])
		if op == vm.OpGetLocal {
			gets = append(gets, code[i+1])
		}
		i += op.InstructionLen()
	}
	// a sits in slot 0; b is evaluated above the first block's result, in slot 1.
	if len(gets) != 2 || gets[0] != 0 || gets[1] != 1 {
		t.Errorf("GET_LOCAL slots = %v, want [0 1]", gets)
	}
}

func TestCompileRejectsFunctions(t *testing.T) {
	tests := []string{
		"funk fib(n: int) -> int { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }",
		"fn (a: int) -> int { a }",
		"let f = fn (a: int) -> int { a }; f(1)",
	}

	for _, src := range tests {
		expr := mustParse(t, src)
		if _, err := Check(expr); err != nil {
			t.Fatalf("Check(%q) = %v", src, err)
		}
		err := Compile(vm.NewChunk(), expr)
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Compile(%q) = %v, want ErrUnsupported", src, err)
		}
		var cerr *CompileError
		if !errors.As(err, &cerr) {
			t.Errorf("Compile(%q) error %T, want *CompileError", src, err)
		}
	}
}

func TestCompileUnresolvedLocal(t *testing.T) {
	err := Compile(vm.NewChunk(), &ast.Identifier{Name: "ghost"})
	if !errors.Is(err, ErrUnresolvedLocal) {
		t.Errorf("Compile(ghost) = %v, want ErrUnresolvedLocal", err)
	}
}

func TestCompileWideConstants(t *testing.T) {
	terms := make([]string, 300)
	for i := range terms {
		terms[i] = fmt.Sprint(i)
	}
	c := compileSource(t, strings.Join(terms, " + "))
	if c.ConstantCount() != 300 {
		t.Fatalf("ConstantCount() = %d, want 300", c.ConstantCount())
	}
	var long int
	for _, op := range opcodes(c) {
		if op == vm.OpGetConstantLong {
			long++
		}
	}
	if long != 300-256 {
		t.Errorf("GET_CONSTANT_LONG count = %d, want %d", long, 300-256)
	}
}

func TestCompileJumpTooFar(t *testing.T) {
	terms := make([]string, 100)
	for i := range terms {
		terms[i] = "1"
	}
	src := "if true { " + strings.Join(terms, " + ") + " } else { 0 }"
	expr := mustParse(t, src)
	err := Compile(vm.NewChunk(), expr)
	if !errors.Is(err, ErrJumpTooFar) {
		t.Errorf("Compile = %v, want ErrJumpTooFar", err)
	}
}

func TestCompileTooManyLocals(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&sb, "let v%d = true; ", i)
	}
	sb.WriteString("()")
	expr := mustParse(t, sb.String())
	err := Compile(vm.NewChunk(), expr)
	if !errors.Is(err, ErrTooManyLocals) {
		t.Errorf("Compile = %v, want ErrTooManyLocals", err)
	}
}

func TestCompileSpansCoverCode(t *testing.T) {
	sources := []string{
		"7 - 2",
		"let x = 3; x + 4",
		"if 1 < 2 { 7 } else { 9 }",
		"{ let a = 1; { let b = a; b } } + 1",
	}
	for _, src := range sources {
		c := compileSource(t, src)
		total := 0
		for _, r := range c.Spans() {
			total += r.Count
		}
		if total != c.Len() {
			t.Errorf("%q: span counts sum to %d, code length %d", src, total, c.Len())
		}
	}
}

func TestCompileTracksHeight(t *testing.T) {
	g := NewCompiler(vm.NewChunk())
	expr := mustParse(t, "let a = 1; let b = 2; a + b")
	if err := g.Compile(expr); err != nil {
		t.Fatalf("Compile = %v", err)
	}
	if g.Locals().Height() != 1 || g.Locals().Len() != 0 || g.Locals().Depth() != 0 {
		t.Errorf("after compile: height=%d locals=%d depth=%d, want 1 0 0",
			g.Locals().Height(), g.Locals().Len(), g.Locals().Depth())
	}
}
