package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
)

// ---------------------------------------------------------------------------
// Linter: advisory checks on well-formed programs
// ---------------------------------------------------------------------------

// Warning is an advisory finding. Warnings never stop a build.
type Warning struct {
	Span    ast.Span
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("warning at %s: %s", w.Span, w.Message)
}

// binder tracks whether one binding is ever referenced.
type binder struct {
	name string
	site ast.Span
	kind string
	used bool
}

// Linter walks a parsed program and collects warnings. It needs no type
// information, so it runs on programs that fail to check.
type Linter struct {
	warnings []Warning
	frames   [][]*binder // innermost last
}

// Lint returns the warnings for expr, ordered by position.
func Lint(expr ast.Expr) []Warning {
	l := &Linter{}
	l.walk(expr)
	sort.SliceStable(l.warnings, func(i, j int) bool {
		return l.warnings[i].Span.Start < l.warnings[j].Span.Start
	})
	return l.warnings
}

// warnAt records a warning at span.
func (l *Linter) warnAt(span ast.Span, format string, args ...any) {
	l.warnings = append(l.warnings, Warning{Span: span, Message: fmt.Sprintf(format, args...)})
}

func (l *Linter) push(bs ...*binder) {
	l.frames = append(l.frames, bs)
}

// pop closes the innermost frame, reporting bindings nobody read. Names
// starting with an underscore are exempt.
func (l *Linter) pop() {
	top := l.frames[len(l.frames)-1]
	l.frames = l.frames[:len(l.frames)-1]
	for _, b := range top {
		if !b.used && !strings.HasPrefix(b.name, "_") {
			l.warnAt(b.site, "%s '%s' is never used", b.kind, b.name)
		}
	}
}

func (l *Linter) use(name string) {
	for i := len(l.frames) - 1; i >= 0; i-- {
		f := l.frames[i]
		for j := len(f) - 1; j >= 0; j-- {
			if f[j].name == name {
				f[j].used = true
				return
			}
		}
	}
}

func (l *Linter) walk(expr ast.Expr) {
	switch n := expr.(type) {
	case *ast.Identifier:
		l.use(n.Name)

	case *ast.Let:
		l.walk(n.Init)
		l.push(&binder{name: n.Name, site: n.SpanVal, kind: "variable"})
		l.walk(n.Body)
		l.pop()

	case *ast.If:
		if b, ok := unparen(n.Cond).(*ast.BoolLiteral); ok {
			if b.Value {
				l.warnAt(n.Cond.Span(), "condition is always true")
			} else {
				l.warnAt(n.Cond.Span(), "condition is always false")
			}
		}
		l.walk(n.Cond)
		l.walk(n.Then)
		if n.Else != nil {
			l.walk(n.Else)
		}

	case *ast.Binary:
		if n.Op == ast.OpDiv {
			if lit, ok := unparen(n.Right).(*ast.IntLiteral); ok && lit.Value == 0 {
				l.warnAt(n.SpanVal, "division by zero")
			}
		}
		l.walk(n.Left)
		l.walk(n.Right)

	case *ast.FuncLit:
		l.walkFunc(n)

	case *ast.Funk:
		// The function's own name is used by recursive calls or by Then;
		// a funk with no Then is the program's value, so its name is exempt.
		self := &binder{name: n.Name, site: n.SpanVal, kind: "function", used: n.Then == nil}
		l.push(self)
		l.walkFunc(n.Fn)
		if n.Then != nil {
			l.walk(n.Then)
		}
		l.pop()

	default:
		for _, c := range ast.Children(expr) {
			l.walk(c)
		}
	}
}

func (l *Linter) walkFunc(n *ast.FuncLit) {
	params := make([]*binder, len(n.Params))
	for i, p := range n.Params {
		params[i] = &binder{name: p.Name, site: p.SpanVal, kind: "parameter"}
	}
	l.push(params...)
	l.walk(n.Body)
	l.pop()
}

func unparen(expr ast.Expr) ast.Expr {
	for {
		switch n := expr.(type) {
		case *ast.Grouping:
			expr = n.Inner
		case *ast.Block:
			expr = n.Inner
		default:
			return expr
		}
	}
}
