package compiler

import (
	"fmt"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

type binding struct {
	typ  types.Type
	site ast.Span
}

// scopeFrame maps names bound at one nesting level to their types.
type scopeFrame map[string]binding

// Scopes is the checker's binding environment: a stack of frames searched
// innermost first. A fresh Scopes has one root frame that is never popped.
type Scopes struct {
	frames []scopeFrame
}

// NewScopes creates an environment holding only the root frame.
func NewScopes() *Scopes {
	return &Scopes{frames: []scopeFrame{{}}}
}

// Push opens a new innermost frame and returns the depth to pass to Pop.
func (s *Scopes) Push() int {
	s.frames = append(s.frames, scopeFrame{})
	return len(s.frames) - 1
}

// Pop closes the innermost frame. depth must be the value returned by the
// matching Push; anything else is a checker bug and panics.
func (s *Scopes) Pop(depth int) {
	if depth != len(s.frames)-1 || depth == 0 {
		panic(fmt.Sprintf("compiler: scope pop at depth %d, innermost is %d", depth, len(s.frames)-1))
	}
	s.frames = s.frames[:depth]
}

// Depth returns the number of frames above the root.
func (s *Scopes) Depth() int { return len(s.frames) - 1 }

// Bind binds name in the innermost frame, replacing any binding it already
// holds there.
func (s *Scopes) Bind(name string, t types.Type) {
	s.BindAt(name, t, ast.Span{})
}

// BindAt is Bind recording where the binding was introduced.
func (s *Scopes) BindAt(name string, t types.Type, site ast.Span) {
	s.frames[len(s.frames)-1][name] = binding{typ: t, site: site}
}

// Lookup finds the innermost binding of name.
func (s *Scopes) Lookup(name string) (types.Type, bool) {
	b, ok := s.lookup(name)
	return b.typ, ok
}

// LookupSite returns the site recorded for the innermost binding of name.
func (s *Scopes) LookupSite(name string) (ast.Span, bool) {
	b, ok := s.lookup(name)
	return b.site, ok
}

func (s *Scopes) lookup(name string) (binding, bool) {
	for i := len(s.frames) - 1; i >= 0; i-- {
		if b, ok := s.frames[i][name]; ok {
			return b, true
		}
	}
	return binding{}, false
}
