package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ch1n3du/pico-typechecker/compiler"
	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/vm"
)

// errorSpan extracts the source span carried by an error from any stage.
func errorSpan(err error) (ast.Span, bool) {
	var perr *compiler.ParseError
	if errors.As(err, &perr) {
		return perr.Span, true
	}
	var terr compiler.TypeError
	if errors.As(err, &terr) {
		return terr.Where(), true
	}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		return cerr.Span, true
	}
	var rerr *vm.RuntimeError
	if errors.As(err, &rerr) && rerr.Span != (ast.Span{}) {
		return rerr.Span, true
	}
	return ast.Span{}, false
}

// position converts a byte offset to 1-based line and column.
func position(source string, offset int) (line, col int) {
	if offset > len(source) {
		offset = len(source)
	}
	before := source[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndexByte(before, '\n')
	return line, col
}

// snippet renders msg with the offending source line and a caret run
// under span:
//
//	2:5: operator + cannot be applied to int and string
//	  x + "a"
//	  ^^^^^^^
func snippet(source string, span ast.Span, msg string) string {
	line, col := position(source, span.Start)

	start := strings.LastIndexByte(source[:min(span.Start, len(source))], '\n') + 1
	end := strings.IndexByte(source[start:], '\n')
	if end < 0 {
		end = len(source)
	} else {
		end += start
	}
	text := source[start:end]

	width := span.End - span.Start
	if room := end - span.Start; width > room {
		width = room
	}
	if width < 1 {
		width = 1
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d:%d: %s\n", line, col, msg)
	fmt.Fprintf(&b, "  %s\n", text)
	fmt.Fprintf(&b, "  %s%s", strings.Repeat(" ", col-1), strings.Repeat("^", width))
	return b.String()
}
