package ast

import "fmt"

// Op is a unary or binary operator.
type Op int

const (
	OpNeg Op = iota // unary -
	OpNot           // unary not

	OpAdd
	OpSub
	OpMul
	OpDiv

	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpAnd
	OpOr
)

var opSymbols = map[Op]string{
	OpNeg: "-",
	OpNot: "not",
	OpAdd: "+",
	OpSub: "-",
	OpMul: "*",
	OpDiv: "/",
	OpEq:  "==",
	OpNe:  "!=",
	OpLt:  "<",
	OpLe:  "<=",
	OpGt:  ">",
	OpGe:  ">=",
	OpAnd: "and",
	OpOr:  "or",
}

// String returns the operator as written in source.
func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// IsUnary reports whether o is a prefix operator.
func (o Op) IsUnary() bool { return o == OpNeg || o == OpNot }

// IsArithmetic reports whether o is one of + - * /.
func (o Op) IsArithmetic() bool { return o >= OpAdd && o <= OpDiv }

// IsOrdering reports whether o is one of < <= > >=.
func (o Op) IsOrdering() bool { return o >= OpLt && o <= OpGe }

// IsEquality reports whether o is == or !=.
func (o Op) IsEquality() bool { return o == OpEq || o == OpNe }

// IsLogical reports whether o is and/or.
func (o Op) IsLogical() bool { return o == OpAnd || o == OpOr }
