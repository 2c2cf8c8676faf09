// Package server implements a language server for pico over stdio.
package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/ch1n3du/pico-typechecker/compiler/ast"
	"github.com/ch1n3du/pico-typechecker/compiler/types"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "pico-lsp"

var log = commonlog.GetLogger("pico.lsp")

// LspServer serves diagnostics, hover types, definitions and completion
// for open pico documents.
type LspServer struct {
	worker *Worker

	mu       sync.Mutex
	analyses map[string]*Analysis // URI → analysis of the latest text

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server.
func NewLSP() *LspServer {
	s := &LspServer{
		worker:   NewWorker(),
		analyses: make(map[string]*Analysis),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("pico LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	s.update(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.update(ctx, params.TextDocument.URI, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.analyses, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// update analyzes text, keeps the analysis and publishes its diagnostics.
func (s *LspServer) update(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	a, err := s.analyze(text)
	if err != nil {
		log.Errorf("analyzing %s: %v", uri, err)
		return
	}

	s.mu.Lock()
	s.analyses[string(uri)] = a
	s.mu.Unlock()

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics(a),
	})
}

func (s *LspServer) analyze(text string) (*Analysis, error) {
	res, err := s.worker.Do(func() any { return Analyze(text) })
	if err != nil {
		return nil, err
	}
	return res.(*Analysis), nil
}

// analysis returns the latest analysis of uri, or nil.
func (s *LspServer) analysis(uri protocol.DocumentUri) *Analysis {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analyses[string(uri)]
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	a := s.analysis(params.TextDocument.URI)
	if a == nil {
		return nil, nil
	}
	prefix := extractPrefix(a.Source, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(a, prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	a := s.analysis(params.TextDocument.URI)
	if a == nil {
		return nil, nil
	}
	return hover(a, offsetOf(a.Source, params.Position)), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	a := s.analysis(uri)
	if a == nil {
		return nil, nil
	}
	site, ok := a.DefinitionAt(offsetOf(a.Source, params.Position))
	if !ok {
		return nil, nil
	}
	return []protocol.Location{{URI: uri, Range: spanRange(a.Source, site)}}, nil
}

// --- Analysis-backed logic ---

func complete(a *Analysis, prefix string) []protocol.CompletionItem {
	kws, names := a.Complete(prefix)

	var items []protocol.CompletionItem
	for _, kw := range kws {
		kind := protocol.CompletionItemKindKeyword
		label := kw
		items = append(items, protocol.CompletionItem{Label: label, Kind: &kind, InsertText: &label})
	}
	for _, name := range names {
		kind := protocol.CompletionItemKindVariable
		label := name
		items = append(items, protocol.CompletionItem{Label: label, Kind: &kind, InsertText: &label})
	}
	return items
}

func hover(a *Analysis, offset int) *protocol.Hover {
	node, typ, ok := a.TypeAt(offset)
	if !ok {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "```pico\n%s\n```\n\n", ast.Print(node))
	fmt.Fprintf(&b, "**type** `%s`", types.Format(typ))

	r := spanRange(a.Source, node.Span())
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: b.String(),
		},
		Range: &r,
	}
}

// --- Diagnostics ---

func diagnostics(a *Analysis) []protocol.Diagnostic {
	out := []protocol.Diagnostic{}
	for _, d := range a.Diagnostics {
		severity := protocol.DiagnosticSeverityError
		switch d.Stage {
		case StageCompile:
			// Well typed, just not executable.
			severity = protocol.DiagnosticSeverityWarning
		case StageLint:
			severity = protocol.DiagnosticSeverityWarning
		}
		source := lspName + "/" + string(d.Stage)
		out = append(out, protocol.Diagnostic{
			Range:    spanRange(a.Source, d.Span),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}
	return out
}

// --- Position helpers ---

// offsetOf converts an LSP position to a byte offset, clamped to text.
func offsetOf(text string, pos protocol.Position) int {
	offset := 0
	for line := 0; line < int(pos.Line); line++ {
		i := strings.IndexByte(text[offset:], '\n')
		if i < 0 {
			return len(text)
		}
		offset += i + 1
	}
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text) - offset
	}
	return offset + min(int(pos.Character), end)
}

// positionOf converts a byte offset to an LSP position.
func positionOf(text string, offset int) protocol.Position {
	offset = min(max(offset, 0), len(text))
	before := text[:offset]
	line := strings.Count(before, "\n")
	col := offset - (strings.LastIndexByte(before, '\n') + 1)
	return protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(col)}
}

func spanRange(text string, span ast.Span) protocol.Range {
	return protocol.Range{Start: positionOf(text, span.Start), End: positionOf(text, span.End)}
}

// --- Text extraction helpers ---

// extractPrefix returns the identifier fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	return line[start:col]
}

func boolPtr(b bool) *bool {
	return &b
}
