package server

import (
	"errors"
	"sort"
	"strings"

	"github.com/ch1n3du/pico-typechecker/compiler"
	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
	"github.com/ch1n3du/pico-typechecker/vm"
)

// Stage names the pipeline step that produced a diagnostic.
type Stage string

const (
	StageParse   Stage = "parse"
	StageType    Stage = "type"
	StageCompile Stage = "compile"
	StageLint    Stage = "lint"
)

// Diagnostic is a problem found in a document.
type Diagnostic struct {
	Span    ast.Span
	Stage   Stage
	Message string
}

// Analysis is everything known about one version of a document.
type Analysis struct {
	Source      string
	Expr        ast.Expr   // nil when parsing failed
	Type        types.Type // nil unless checking succeeded
	Info        *compiler.Info
	Diagnostics []Diagnostic
}

// Analyze parses, lints, checks and compiles source, collecting the first
// error of each stage it reaches and every lint warning.
func Analyze(source string) *Analysis {
	a := &Analysis{Source: source, Info: compiler.NewInfo()}

	expr, err := compiler.Parse(source)
	if err != nil {
		var perr *compiler.ParseError
		if errors.As(err, &perr) {
			a.add(StageParse, perr.Span, perr.Message)
		}
		return a
	}
	a.Expr = expr
	for _, w := range compiler.Lint(expr) {
		a.add(StageLint, w.Span, w.Message)
	}

	c := compiler.NewChecker()
	c.Record(a.Info)
	t, err := c.Check(expr)
	if err != nil {
		var terr compiler.TypeError
		if errors.As(err, &terr) {
			a.add(StageType, terr.Where(), err.Error())
		}
		return a
	}
	a.Type = t

	if err := compiler.Compile(vm.NewChunk(), expr); err != nil {
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			a.add(StageCompile, cerr.Span, err.Error())
		}
	}
	return a
}

func (a *Analysis) add(stage Stage, span ast.Span, msg string) {
	a.Diagnostics = append(a.Diagnostics, Diagnostic{Span: span, Stage: stage, Message: msg})
}

// TypeAt returns the innermost node at offset that has a recorded type.
func (a *Analysis) TypeAt(offset int) (ast.Expr, types.Type, bool) {
	if a.Expr == nil {
		return nil, nil, false
	}
	var (
		node ast.Expr
		typ  types.Type
	)
	ast.Inspect(a.Expr, func(n ast.Expr) bool {
		if !n.Span().Contains(offset) {
			return false
		}
		if t, ok := a.Info.Types[n]; ok {
			node, typ = n, t
		}
		return true
	})
	return node, typ, node != nil
}

// DefinitionAt returns the binder span for the identifier at offset.
func (a *Analysis) DefinitionAt(offset int) (ast.Span, bool) {
	if a.Expr == nil {
		return ast.Span{}, false
	}
	id, ok := ast.Innermost(a.Expr, offset).(*ast.Identifier)
	if !ok {
		return ast.Span{}, false
	}
	site, ok := a.Info.Defs[id]
	return site, ok
}

// Names returns every name bound in the document, sorted.
func (a *Analysis) Names() []string {
	if a.Expr == nil {
		return nil
	}
	seen := make(map[string]bool)
	ast.Inspect(a.Expr, func(n ast.Expr) bool {
		switch n := n.(type) {
		case *ast.Let:
			seen[n.Name] = true
		case *ast.Funk:
			seen[n.Name] = true
		case *ast.FuncLit:
			for _, p := range n.Params {
				seen[p.Name] = true
			}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// keywords offered by completion alongside bound names.
var keywords = []string{"and", "else", "false", "fn", "funk", "if", "let", "not", "or", "true"}

// Complete returns keywords and bound names starting with prefix.
func (a *Analysis) Complete(prefix string) (kws, names []string) {
	for _, kw := range keywords {
		if strings.HasPrefix(kw, prefix) {
			kws = append(kws, kw)
		}
	}
	for _, name := range a.Names() {
		if strings.HasPrefix(name, prefix) && name != prefix {
			names = append(names, name)
		}
	}
	return kws, names
}
