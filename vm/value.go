package vm

import (
	"fmt"
	"strconv"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindUnit Kind = iota
	KindInt
	KindStr
	KindBool
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindUnit:
		return "unit"
	case KindInt:
		return "int"
	case KindStr:
		return "string"
	case KindBool:
		return "bool"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Value is a runtime value. Values are plain data and copy by assignment;
// a function value shares its immutable syntax tree.
//
// The zero Value is unit.
type Value struct {
	kind Kind
	i    int64
	s    string
	fn   *ast.FuncLit
}

// Unit returns the unit value.
func Unit() Value { return Value{} }

// Int returns an integer value.
func Int(n int64) Value { return Value{kind: KindInt, i: n} }

// Str returns a string value.
func Str(s string) Value { return Value{kind: KindStr, s: s} }

// Bool returns a boolean value.
func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.i = 1
	}
	return v
}

// Func returns a function value for fn.
func Func(fn *ast.FuncLit) Value { return Value{kind: KindFunc, fn: fn} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// AsInt returns the integer payload.
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

// AsStr returns the string payload.
func (v Value) AsStr() (string, bool) { return v.s, v.kind == KindStr }

// AsBool returns the boolean payload.
func (v Value) AsBool() (bool, bool) { return v.i != 0, v.kind == KindBool }

// AsFunc returns the function payload.
func (v Value) AsFunc() (*ast.FuncLit, bool) { return v.fn, v.kind == KindFunc }

// Clone returns an independent copy of v.
func (v Value) Clone() Value { return v }

// Equal reports structural equality. Function values are equal when they
// share the same definition.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindUnit:
		return true
	case KindInt, KindBool:
		return v.i == o.i
	case KindStr:
		return v.s == o.s
	case KindFunc:
		return v.fn == o.fn
	}
	return false
}

// Type returns the static type describing v.
func (v Value) Type() types.Type {
	switch v.kind {
	case KindInt:
		return types.Int
	case KindStr:
		return types.String
	case KindBool:
		return types.Bool
	case KindFunc:
		if v.fn != nil {
			return v.fn.Signature()
		}
	}
	return types.Unit
}

func (v Value) String() string {
	switch v.kind {
	case KindUnit:
		return "()"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindStr:
		return strconv.Quote(v.s)
	case KindBool:
		return strconv.FormatBool(v.i != 0)
	case KindFunc:
		if v.fn != nil {
			return "<fn " + v.fn.Signature().String() + ">"
		}
		return "<fn>"
	}
	return fmt.Sprintf("<%s>", v.kind)
}
