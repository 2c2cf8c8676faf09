// Pico CLI - type-checks, compiles and runs pico programs
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/tliron/commonlog"

	"github.com/ch1n3du/pico-typechecker/cache"
	"github.com/ch1n3du/pico-typechecker/compiler"
	"github.com/ch1n3du/pico-typechecker/compiler/types"
	"github.com/ch1n3du/pico-typechecker/manifest"
	"github.com/ch1n3du/pico-typechecker/server"
	"github.com/ch1n3du/pico-typechecker/vm"
	"github.com/ch1n3du/pico-typechecker/vm/image"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("pico.cli")

type options struct {
	check       bool
	disasm      bool
	trace       bool
	expr        string
	out         string
	imagePath   string
	cachePath   string
	verbosity   int
	logFile     *string
	interactive bool
	lsp         bool
	color       bool
}

func main() {
	var opts options
	flag.BoolVar(&opts.check, "check", false, "Type-check only, print the program type")
	flag.BoolVar(&opts.disasm, "disasm", false, "Print the compiled chunk before running")
	flag.BoolVar(&opts.trace, "trace", false, "Log every executed instruction (needs -v 2)")
	flag.StringVar(&opts.expr, "e", "", "Evaluate the given source text")
	flag.StringVar(&opts.out, "o", "", "Write the compiled chunk to an image file instead of running")
	flag.StringVar(&opts.imagePath, "image", "", "Run a previously written image file")
	flag.StringVar(&opts.cachePath, "cache", "", "Compile cache database (overrides pico.toml)")
	flag.IntVar(&opts.verbosity, "v", 0, "Log verbosity (0 quiet, 1 info, 2 debug)")
	flag.BoolVar(&opts.interactive, "i", false, "Start interactive REPL")
	flag.BoolVar(&opts.lsp, "lsp", false, "Start the language server on stdio")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pico [options] [file]\n\n")
		fmt.Fprintf(os.Stderr, "Type-checks, compiles and runs a pico program. Without a file, runs the\n")
		fmt.Fprintf(os.Stderr, "entry named in pico.toml, or starts the REPL.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pico -e 'let x = 3; x + 4'     # Evaluate an expression\n")
		fmt.Fprintf(os.Stderr, "  pico -check prog.pico          # Print the static type\n")
		fmt.Fprintf(os.Stderr, "  pico -disasm prog.pico         # Show bytecode, then run\n")
		fmt.Fprintf(os.Stderr, "  pico -o prog.pbc prog.pico     # Compile to an image\n")
		fmt.Fprintf(os.Stderr, "  pico -image prog.pbc           # Run an image\n")
		fmt.Fprintf(os.Stderr, "  pico -v 2 -trace -e '7 - 2'    # Trace execution\n")
		fmt.Fprintf(os.Stderr, "\nLanguage Server:\n")
		fmt.Fprintf(os.Stderr, "  pico -lsp                      # Diagnostics, hover and definitions over stdio\n")
	}
	flag.Parse()

	opts.color = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

	if err := run(&opts, flag.Args()); err != nil {
		fmt.Fprintln(os.Stderr, errorText(err, opts.color))
		os.Exit(1)
	}
}

func run(opts *options, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}
	m, err := manifest.FindAndLoad(cwd)
	if err != nil {
		return err
	}
	if m == nil {
		m = manifest.Default()
	}
	applyManifest(opts, m)

	if f := m.LogFile(); f != "" {
		opts.logFile = &f
	}
	commonlog.Configure(opts.verbosity, opts.logFile)
	if m.Dir != "" {
		log.Infof("using %s in %s", manifest.FileName, m.Dir)
	}

	if opts.lsp {
		return server.NewLSP().Run()
	}

	c, err := openCache(opts, m)
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}

	if opts.imagePath != "" {
		return runImage(opts, opts.imagePath)
	}

	source, name, err := selectSource(opts, args, m)
	if err != nil {
		return err
	}
	if opts.interactive || name == "" {
		return runREPL(opts, c)
	}

	if err := runSource(opts, c, source, name); err != nil {
		return &sourceError{err: err, name: name, source: source}
	}
	if c != nil && opts.verbosity > 0 {
		reportCache(c)
	}
	return nil
}

// applyManifest fills in settings the command line left unset.
func applyManifest(opts *options, m *manifest.Manifest) {
	opts.trace = opts.trace || m.Run.Trace
	opts.disasm = opts.disasm || m.Run.Disassemble
	if opts.verbosity == 0 {
		opts.verbosity = m.Log.Verbosity
	}
	if opts.trace && opts.verbosity < 2 {
		// Trace lines are debug messages.
		opts.verbosity = 2
	}
}

func openCache(opts *options, m *manifest.Manifest) (*cache.Cache, error) {
	path := opts.cachePath
	if path == "" && m.Cache.Enabled {
		path = m.CachePath()
		if path == "" {
			p, err := cache.DefaultPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
	}
	if path == "" {
		return nil, nil
	}
	return cache.Open(path)
}

// selectSource returns the program text and its display name. An empty
// name means there is nothing to run and the REPL should start.
func selectSource(opts *options, args []string, m *manifest.Manifest) (string, string, error) {
	switch {
	case opts.expr != "":
		return opts.expr, "<expr>", nil
	case len(args) > 1:
		return "", "", fmt.Errorf("expected one source file, got %d", len(args))
	case len(args) == 1:
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", err
		}
		return string(data), args[0], nil
	case m.Dir != "" && !opts.interactive:
		path := m.EntryPath()
		data, err := os.ReadFile(path)
		if err != nil {
			return "", "", fmt.Errorf("project entry: %w", err)
		}
		return string(data), path, nil
	}
	return "", "", nil
}

func runSource(opts *options, c *cache.Cache, source, name string) error {
	if opts.check {
		prog, err := compiler.CheckSource(source)
		if err != nil {
			return err
		}
		printWarnings(opts, name, source, prog.Warnings)
		fmt.Println(types.Format(prog.Type))
		if opts.verbosity > 0 {
			fmt.Printf("hash %s\n", prog.Hash)
		}
		return nil
	}

	prog, err := compileCached(c, source)
	if err != nil {
		return err
	}
	printWarnings(opts, name, source, prog.Warnings)
	chunk := prog.Chunk

	if opts.out != "" {
		return writeImage(chunk, source, opts.out)
	}
	if opts.disasm {
		fmt.Print(chunk.Disassemble(name))
	}
	v, err := execute(opts, chunk)
	if err != nil {
		return err
	}
	printResult(opts, v, prog.Type)
	return nil
}

// compileCached builds source, going through c when it is non-nil. A cache
// hit still parses, checks and lints so the type and warnings match a
// fresh build; only code generation is skipped.
func compileCached(c *cache.Cache, source string) (*compiler.Program, error) {
	if c == nil {
		return compiler.Build(source)
	}

	prog, err := compiler.CheckSource(source)
	if err != nil {
		return nil, err
	}
	chunk, ok, err := c.Get(source)
	if err != nil {
		log.Warningf("cache read: %v", err)
	}
	if ok {
		prog.Chunk = chunk
		return prog, nil
	}

	prog, err = compiler.BuildExpr(prog.Expr)
	if err != nil {
		return nil, err
	}
	if err := c.Put(source, prog.Chunk); err != nil {
		log.Warningf("cache write: %v", err)
	}
	return prog, nil
}

func printWarnings(opts *options, name, source string, warnings []compiler.Warning) {
	for _, w := range warnings {
		msg := "warning: " + name + ":" + snippet(source, w.Span, w.Message)
		if opts.color {
			msg = "\x1b[33m" + msg + "\x1b[0m"
		}
		fmt.Fprintln(os.Stderr, msg)
	}
}

func execute(opts *options, chunk *vm.Chunk) (vm.Value, error) {
	m := vm.New(chunk)
	m.Trace = opts.trace
	if err := m.Run(); err != nil {
		return vm.Value{}, err
	}
	log.Infof("executed %s instructions", humanize.Comma(int64(m.Steps)))
	v, _ := m.Top()
	return v, nil
}

func printResult(opts *options, v vm.Value, t types.Type) {
	if opts.verbosity > 0 && t != nil {
		fmt.Printf("%s : %s\n", v, types.Format(t))
		return
	}
	fmt.Println(v)
}

func writeImage(chunk *vm.Chunk, source, path string) error {
	data, hdr, err := image.Encode(chunk, source)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%s, image %s)\n", path, humanize.Bytes(uint64(len(data))), hdr.ID)
	return nil
}

func runImage(opts *options, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	chunk, hdr, err := image.Decode(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("loaded image %s (%s)", hdr.ID, humanize.Bytes(uint64(len(data))))

	if opts.disasm {
		fmt.Print(chunk.Disassemble(path))
	}
	v, err := execute(opts, chunk)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	printResult(opts, v, nil)
	return nil
}

func reportCache(c *cache.Cache) {
	summary, err := cacheSummary(c)
	if err != nil {
		log.Warningf("cache stats: %v", err)
		return
	}
	log.Info(summary)
}

func cacheSummary(c *cache.Cache) (string, error) {
	s, err := c.Stats()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("cache %s: %s entries, %s, %d hits, %d misses",
		c.Path(), humanize.Comma(s.Entries), humanize.Bytes(uint64(s.Bytes)), s.Hits, s.Misses), nil
}

// sourceError carries the program text so errors can be shown in context.
type sourceError struct {
	err    error
	name   string
	source string
}

func (e *sourceError) Error() string {
	if span, ok := errorSpan(e.err); ok {
		return e.name + ":" + snippet(e.source, span, e.err.Error())
	}
	return e.name + ": " + e.err.Error()
}

func (e *sourceError) Unwrap() error { return e.err }

func errorText(err error, color bool) string {
	msg := "Error: " + err.Error()
	if color {
		return "\x1b[31m" + msg + "\x1b[0m"
	}
	return msg
}
