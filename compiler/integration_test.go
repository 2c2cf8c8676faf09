package compiler

import (
	"errors"
	"testing"

	"github.com/ch1n3du/pico-typechecker/compiler/types"
	"github.com/ch1n3du/pico-typechecker/vm"
)

func TestEval(t *testing.T) {
	tests := []struct {
		src  string
		want vm.Value
	}{
		{"7 - 2", vm.Int(5)},
		{"20 / 4 / 5", vm.Int(1)},
		{"2 + 3 * 4", vm.Int(14)},
		{"-(2 - 5)", vm.Int(3)},
		{"let x = 1; let x = 2; x", vm.Int(2)},
		{"let x = 3; x + 4", vm.Int(7)},
		{"if 1 < 2 { 7 } else { 9 }", vm.Int(7)},
		{"if 2 < 1 { 7 } else { 9 }", vm.Int(9)},
		{"if false { 1 } else if true { 2 } else { 3 }", vm.Int(2)},
		{"if false { () }", vm.Unit()},
		{`"foo" + "bar"`, vm.Str("foobar")},
		{`"a" == "a"`, vm.Bool(true)},
		{"not (1 == 2) and true", vm.Bool(true)},
		{"false or 3 >= 3", vm.Bool(true)},
		{"let x = 1; { let x = 10; x } + x", vm.Int(11)},
		{"{ let a = 1; a } + { let b = 2; b }", vm.Int(3)},
		{"let a = 5; let b = { let c = a * 2; c + 1 }; a + b", vm.Int(16)},
		{"let n = 4; if n > 3 { let m = n * n; m - 1 } else { 0 }", vm.Int(15)},
		{"let x: int = 1322; let y = x - 22; y / 100", vm.Int(13)},
		{"1 + (let k = 2; k * 3)", vm.Int(7)},
		{"{ let x = 1; }", vm.Unit()},
	}

	for _, tt := range tests {
		got, _, err := Eval(tt.src)
		if err != nil {
			t.Errorf("Eval(%q) = %v", tt.src, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Eval(%q) = %v, want %v", tt.src, got, tt.want)
		}
	}
}

// Every well-typed program that runs leaves exactly one value whose runtime
// type matches its static type.
func TestTypeSoundness(t *testing.T) {
	corpus := []string{
		"42",
		`"s"`,
		"true",
		"()",
		"let x = 3; x + 4",
		"let x = 3; x < 4",
		`let s = "a"; s + s`,
		"if 1 == 1 { () } else { () }",
		"if true { () }",
		"let x = 1; let x = true; x",
		"{ let a = { let b = 1; b + 1 }; a * a }",
		"let a = 1; let b = 2; let c = 3; a + b * c",
		"let p = 1 < 2; if p { \"yes\" } else { \"no\" }",
	}

	for _, src := range corpus {
		prog, err := Build(src)
		if err != nil {
			t.Errorf("Build(%q) = %v", src, err)
			continue
		}
		m := vm.New(prog.Chunk)
		if err := m.Run(); err != nil {
			t.Errorf("Run(%q) = %v", src, err)
			continue
		}
		stack := m.Stack()
		if len(stack) != 1 {
			t.Errorf("%q left %d values: %v", src, len(stack), stack)
			continue
		}
		if got := stack[0].Type(); !types.Equal(got, prog.Type) {
			t.Errorf("%q: runtime type %s, static type %s", src, got, prog.Type)
		}
	}
}

func TestBuildStaticType(t *testing.T) {
	prog, err := Build("let x = 3; x + 4")
	if err != nil {
		t.Fatalf("Build = %v", err)
	}
	if !types.Equal(prog.Type, types.Int) {
		t.Errorf("Type = %s, want int", prog.Type)
	}
	code := prog.Chunk.Code()
	if vm.OpCode(code[len(code)-1]) != vm.OpReturn {
		t.Errorf("chunk does not end with RETURN")
	}
}

func TestBuildErrorsByStage(t *testing.T) {
	_, err := Build("let = 1")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Errorf("Build(parse error) = %v, want *ParseError", err)
	}

	_, err = Build(`1 + "a"`)
	var berr *BinaryTypeError
	if !errors.As(err, &berr) {
		t.Errorf("Build(type error) = %v, want *BinaryTypeError", err)
	}

	_, err = Build("funk fib(n: int) -> int { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }")
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("Build(funk) = %v, want ErrUnsupported", err)
	}
}

func TestEvalRuntimeError(t *testing.T) {
	_, _, err := Eval("let z = 0; 10 / z")
	if !errors.Is(err, vm.ErrDivisionByZero) {
		t.Errorf("Eval = %v, want ErrDivisionByZero", err)
	}
	var rerr *vm.RuntimeError
	if errors.As(err, &rerr) && rerr.Span.Len() == 0 {
		t.Errorf("runtime error has no span")
	}
}

func TestBuildHashIgnoresNames(t *testing.T) {
	a, err := Build("let x = 3; x + 4")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build("let total = 3;\n(total) + 4")
	if err != nil {
		t.Fatal(err)
	}
	if a.Hash != b.Hash {
		t.Errorf("Hash differs for renamed program: %s vs %s", a.Hash.Short(), b.Hash.Short())
	}
}

func TestCheckSourceSkipsCodegen(t *testing.T) {
	src := "funk fib(n: int) -> int { if n < 2 { n } else { fib(n - 1) + fib(n - 2) } }"
	prog, err := CheckSource(src)
	if err != nil {
		t.Fatalf("CheckSource = %v", err)
	}
	if prog.Chunk != nil {
		t.Error("CheckSource produced a chunk")
	}
	want := types.NewFunc([]types.Type{types.Int}, types.Int)
	if !types.Equal(prog.Type, want) {
		t.Errorf("Type = %s, want %s", prog.Type, want)
	}

	built, err := Build("let unused = 1; 10 / 0")
	if err != nil {
		t.Fatal(err)
	}
	checked, err := CheckSource("let unused = 1; 10 / 0")
	if err != nil {
		t.Fatal(err)
	}
	if len(checked.Warnings) != len(built.Warnings) || checked.Hash != built.Hash {
		t.Errorf("CheckSource = %v %s, Build = %v %s",
			checked.Warnings, checked.Hash.Short(), built.Warnings, built.Hash.Short())
	}
}
