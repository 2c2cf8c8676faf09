package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

// Print renders e back to source form. Printing a parsed tree and parsing
// the result yields the same tree.
func Print(e Expr) string {
	var sb strings.Builder
	printExpr(&sb, e)
	return sb.String()
}

func printExpr(sb *strings.Builder, e Expr) {
	switch n := e.(type) {
	case *Identifier:
		sb.WriteString(n.Name)
	case *IntLiteral:
		sb.WriteString(strconv.FormatInt(n.Value, 10))
	case *StringLiteral:
		sb.WriteString(strconv.Quote(n.Value))
	case *BoolLiteral:
		sb.WriteString(strconv.FormatBool(n.Value))
	case *UnitLiteral:
		sb.WriteString("()")
	case *Grouping:
		sb.WriteByte('(')
		printExpr(sb, n.Inner)
		sb.WriteByte(')')
	case *Unary:
		if n.Op == OpNot {
			sb.WriteString("not ")
		} else {
			sb.WriteString(n.Op.String())
		}
		printExpr(sb, n.Operand)
	case *Binary:
		printExpr(sb, n.Left)
		fmt.Fprintf(sb, " %s ", n.Op)
		printExpr(sb, n.Right)
	case *Let:
		sb.WriteString("let ")
		sb.WriteString(n.Name)
		if n.Annotation != nil {
			sb.WriteString(": ")
			printType(sb, n.Annotation)
		}
		sb.WriteString(" = ")
		printExpr(sb, n.Init)
		sb.WriteString("; ")
		printExpr(sb, n.Body)
	case *Block:
		sb.WriteString("{ ")
		printExpr(sb, n.Inner)
		sb.WriteString(" }")
	case *If:
		sb.WriteString("if ")
		printExpr(sb, n.Cond)
		sb.WriteByte(' ')
		printExpr(sb, n.Then)
		if n.Else != nil {
			sb.WriteString(" else ")
			printExpr(sb, n.Else)
		}
	case *FuncLit:
		sb.WriteString("fn ")
		printSignature(sb, n)
	case *Funk:
		sb.WriteString("funk ")
		sb.WriteString(n.Name)
		printSignature(sb, n.Fn)
		if n.Then != nil {
			sb.WriteByte(' ')
			printExpr(sb, n.Then)
		}
	case *Call:
		printExpr(sb, n.Callee)
		sb.WriteByte('(')
		for i, a := range n.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			printExpr(sb, a)
		}
		sb.WriteByte(')')
	case nil:
		sb.WriteString("<nil>")
	default:
		fmt.Fprintf(sb, "<%T>", e)
	}
}

func printSignature(sb *strings.Builder, f *FuncLit) {
	sb.WriteByte('(')
	for i, p := range f.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		sb.WriteString(": ")
		printType(sb, p.Type)
	}
	sb.WriteString(") -> ")
	printType(sb, f.Ret)
	sb.WriteByte(' ')
	printExpr(sb, f.Body)
}

// printType writes t in annotation syntax, which differs from Type.String
// for function types.
func printType(sb *strings.Builder, t types.Type) {
	fn, ok := t.(*types.Func)
	if !ok {
		if types.Equal(t, types.Unit) {
			sb.WriteString("unit")
			return
		}
		sb.WriteString(types.Format(t))
		return
	}
	sb.WriteString("fn(")
	for i, p := range fn.Params {
		if i > 0 {
			sb.WriteString(", ")
		}
		printType(sb, p)
	}
	sb.WriteString(") -> ")
	printType(sb, fn.Ret)
}
