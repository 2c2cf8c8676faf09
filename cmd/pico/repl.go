package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/ch1n3du/pico-typechecker/cache"
	"github.com/ch1n3du/pico-typechecker/compiler"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
)

const historyFile = ".pico_history"

// runREPL starts an interactive read-eval-print loop
func runREPL(opts *options, c *cache.Cache) error {
	fmt.Println("Pico REPL (type ':quit' to exit, ':help' for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		input, ok := readInput(ln)
		if !ok {
			fmt.Println()
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(input, ":") {
			if quit := handleREPLCommand(opts, c, input); quit {
				return nil
			}
			continue
		}
		if err := runSource(opts, c, input, "<repl>"); err != nil {
			fmt.Fprintln(os.Stderr, errorText(&sourceError{err: err, name: "<repl>", source: input}, opts.color))
		}
	}
}

// readInput accumulates lines until they parse or fail somewhere other
// than the end of input.
func readInput(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := ">> "
		if b.Len() > 0 {
			prompt = ".. "
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") || !incomplete(src) {
			return src, true
		}
	}
}

// incomplete reports whether src fails to parse only because it ends early.
func incomplete(src string) bool {
	_, err := compiler.Parse(src)
	var perr *compiler.ParseError
	if !errors.As(err, &perr) {
		return false
	}
	return perr.Span.Start >= len(strings.TrimRight(src, " \t\r\n"))
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(opts *options, c *cache.Cache, line string) (quit bool) {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case ":quit", ":q":
		return true
	case ":help", ":h", ":?":
		fmt.Println("REPL Commands:")
		fmt.Println("  :type <expr>      Show the static type")
		fmt.Println("  :disasm <expr>    Show compiled bytecode")
		fmt.Println("  :hash <expr>      Show the content hash")
		fmt.Println("  :trace            Toggle instruction tracing")
		fmt.Println("  :cache            Show compile cache statistics")
		fmt.Println("  :quit, :q         Exit REPL")
	case ":type", ":t":
		prog := buildOrReport(opts, arg)
		if prog == nil {
			return false
		}
		fmt.Println(types.Format(prog.Type))
	case ":disasm", ":d":
		prog := buildOrReport(opts, arg)
		if prog == nil {
			return false
		}
		fmt.Print(prog.Chunk.Disassemble(arg))
	case ":hash":
		prog := buildOrReport(opts, arg)
		if prog == nil {
			return false
		}
		fmt.Println(prog.Hash)
	case ":trace":
		opts.trace = !opts.trace
		fmt.Printf("trace %v\n", opts.trace)
		if opts.trace && opts.verbosity < 2 {
			// Trace lines are debug messages.
			opts.verbosity = 2
			commonlog.Configure(opts.verbosity, opts.logFile)
			fmt.Println("verbosity raised to 2")
		}
	case ":cache":
		if c == nil {
			fmt.Println("cache disabled")
			return false
		}
		summary, err := cacheSummary(c)
		if err != nil {
			fmt.Fprintln(os.Stderr, errorText(err, opts.color))
			return false
		}
		fmt.Println(summary)
	default:
		fmt.Printf("unknown command %s. Type :help for commands.\n", cmd)
	}
	return false
}

// buildOrReport builds src, printing any error.
func buildOrReport(opts *options, src string) *compiler.Program {
	prog, err := compiler.Build(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorText(&sourceError{err: err, name: "<repl>", source: src}, opts.color))
		return nil
	}
	return prog
}
