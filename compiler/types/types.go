// Package types defines the static types of pico programs.
//
// A type is either a named type (int, string, bool, unit) or a function type
// with ordered parameter types and a single result type. Types are immutable
// and compared structurally with Equal.
package types

import "strings"

// Type is a static type.
type Type interface {
	String() string
	equal(Type) bool
}

// Named is a nominal type. Two named types are equal when their names are.
type Named struct {
	Name string
}

func (n *Named) String() string {
	if n.Name == unitName {
		return "()"
	}
	return n.Name
}

func (n *Named) equal(o Type) bool {
	other, ok := o.(*Named)
	return ok && other.Name == n.Name
}

// Func is the type of a function value.
type Func struct {
	Params []Type
	Ret    Type
}

func (f *Func) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(Format(p))
	}
	sb.WriteString(") -> ")
	sb.WriteString(Format(f.Ret))
	return sb.String()
}

func (f *Func) equal(o Type) bool {
	other, ok := o.(*Func)
	if !ok || len(other.Params) != len(f.Params) {
		return false
	}
	for i := range f.Params {
		if !Equal(f.Params[i], other.Params[i]) {
			return false
		}
	}
	return Equal(f.Ret, other.Ret)
}

const unitName = "__unit__"

// Intrinsic types.
var (
	Int    Type = &Named{Name: "int"}
	String Type = &Named{Name: "string"}
	Bool   Type = &Named{Name: "bool"}
	Unit   Type = &Named{Name: unitName}
)

// NewFunc returns the function type (params) -> ret.
func NewFunc(params []Type, ret Type) *Func {
	ps := make([]Type, len(params))
	copy(ps, params)
	return &Func{Params: ps, Ret: ret}
}

// Equal reports whether a and b denote the same type. Nil equals only nil.
func Equal(a, b Type) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.equal(b)
}

// Format renders t, printing "<nil>" for a missing type.
func Format(t Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Lookup resolves a type name written in source. Both "unit" and "()" name
// the unit type.
func Lookup(name string) (Type, bool) {
	switch name {
	case "int":
		return Int, true
	case "string":
		return String, true
	case "bool":
		return Bool, true
	case "unit", "()", unitName:
		return Unit, true
	}
	return nil, false
}

// IsFunc reports whether t is a function type.
func IsFunc(t Type) bool {
	_, ok := t.(*Func)
	return ok
}
