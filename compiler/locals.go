package compiler

import "fmt"

// MaxSlot is the highest stack slot a one-byte local operand can address.
const MaxSlot = 255

// Local is a named stack slot known to the code generator.
type Local struct {
	Name  string
	Depth int // scope depth at declaration
	Slot  int // absolute runtime stack index of the value
}

// scopeMark records the state to restore when a scope closes.
type scopeMark struct {
	depth  int // depth of the scope being closed
	base   int // stack height when the scope opened
	locals int // number of locals when the scope opened
}

// Locals tracks the code generator's view of the runtime stack: the ordered
// list of live locals, the current scope depth, and the static stack height
// that every emitted instruction adjusts.
type Locals struct {
	locals []Local
	depth  int
	height int
}

// Height returns the static stack height.
func (l *Locals) Height() int { return l.height }

// Depth returns the current scope depth.
func (l *Locals) Depth() int { return l.depth }

// Len returns the number of live locals.
func (l *Locals) Len() int { return len(l.locals) }

// adjust applies an instruction's stack effect.
func (l *Locals) adjust(delta int) {
	l.height += delta
	if l.height < 0 {
		panic(fmt.Sprintf("compiler: static stack height went negative (%d)", l.height))
	}
}

// reset sets the height when control flow joins, e.g. at the start of an
// else branch.
func (l *Locals) reset(height int) { l.height = height }

// begin opens a scope.
func (l *Locals) begin() scopeMark {
	l.depth++
	return scopeMark{depth: l.depth, base: l.height, locals: len(l.locals)}
}

// end closes the scope opened by m and drops its locals. It returns how
// many stack values sit between the scope's base and the result on top;
// the caller emits the instructions that discard them.
func (l *Locals) end(m scopeMark) int {
	if m.depth != l.depth {
		panic(fmt.Sprintf("compiler: closing scope at depth %d, current is %d", m.depth, l.depth))
	}
	for _, loc := range l.locals[m.locals:] {
		if loc.Depth < m.depth {
			panic(fmt.Sprintf("compiler: local %q at depth %d outlived its scope", loc.Name, loc.Depth))
		}
	}
	l.locals = l.locals[:m.locals]
	l.depth--
	return l.height - 1 - m.base
}

// declare binds name to slot at the current depth. It fails when the slot
// is not addressable.
func (l *Locals) declare(name string, slot int) bool {
	if slot > MaxSlot {
		return false
	}
	l.locals = append(l.locals, Local{Name: name, Depth: l.depth, Slot: slot})
	return true
}

// Resolve finds the most recently declared local named name, so an inner
// binding shadows an outer one.
func (l *Locals) Resolve(name string) (Local, bool) {
	for i := len(l.locals) - 1; i >= 0; i-- {
		if l.locals[i].Name == name {
			return l.locals[i], true
		}
	}
	return Local{}, false
}
