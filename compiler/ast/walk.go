package ast

// Children returns the direct subexpressions of n in source order.
func Children(n Expr) []Expr {
	switch n := n.(type) {
	case *Grouping:
		return []Expr{n.Inner}
	case *Unary:
		return []Expr{n.Operand}
	case *Binary:
		return []Expr{n.Left, n.Right}
	case *Let:
		return []Expr{n.Init, n.Body}
	case *Block:
		return []Expr{n.Inner}
	case *If:
		if n.Else == nil {
			return []Expr{n.Cond, n.Then}
		}
		return []Expr{n.Cond, n.Then, n.Else}
	case *FuncLit:
		return []Expr{n.Body}
	case *Funk:
		if n.Then == nil {
			return []Expr{n.Fn}
		}
		return []Expr{n.Fn, n.Then}
	case *Call:
		return append([]Expr{n.Callee}, n.Args...)
	}
	return nil
}

// Inspect traverses expr depth-first, calling f for each node. If f
// returns false the node's children are skipped.
func Inspect(expr Expr, f func(Expr) bool) {
	if expr == nil || !f(expr) {
		return
	}
	for _, c := range Children(expr) {
		Inspect(c, f)
	}
}

// Contains reports whether offset falls within s. The end is inclusive so
// a cursor just past a token still selects it.
func (s Span) Contains(offset int) bool {
	return s.Start <= offset && offset <= s.End
}

// Innermost returns the smallest node of expr whose span contains offset,
// or nil.
func Innermost(expr Expr, offset int) Expr {
	var found Expr
	Inspect(expr, func(n Expr) bool {
		if !n.Span().Contains(offset) {
			return false
		}
		found = n
		return true
	})
	return found
}
