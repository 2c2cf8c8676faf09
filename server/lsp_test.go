package server

import (
	"strings"
	"testing"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Position helpers
// ---------------------------------------------------------------------------

func TestOffsetPositionRoundTrip(t *testing.T) {
	text := "let x = 1;\n  x + 2\n"
	for offset := 0; offset <= len(text); offset++ {
		pos := positionOf(text, offset)
		if got := offsetOf(text, pos); got != offset {
			t.Errorf("offsetOf(positionOf(%d) = %v) = %d", offset, pos, got)
		}
	}
}

func TestOffsetOfClamps(t *testing.T) {
	text := "ab\ncd"
	tests := []struct {
		pos  protocol.Position
		want int
	}{
		{protocol.Position{Line: 0, Character: 10}, 2},
		{protocol.Position{Line: 1, Character: 1}, 4},
		{protocol.Position{Line: 9, Character: 0}, 5},
	}
	for _, tt := range tests {
		if got := offsetOf(text, tt.pos); got != tt.want {
			t.Errorf("offsetOf(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
}

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		text string
		pos  protocol.Position
		want string
	}{
		{"let limit = 1; lim", protocol.Position{Line: 0, Character: 18}, "lim"},
		{"first\nsecond x_1", protocol.Position{Line: 1, Character: 10}, "x_1"},
		{"x + ", protocol.Position{Line: 0, Character: 4}, ""},
		{"", protocol.Position{Line: 0, Character: 0}, ""},
		{"one", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tt := range tests {
		if got := extractPrefix(tt.text, tt.pos); got != tt.want {
			t.Errorf("extractPrefix(%q, %v) = %q, want %q", tt.text, tt.pos, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Analysis-backed logic
// ---------------------------------------------------------------------------

func TestLSP_Hover(t *testing.T) {
	src := "let x = 3;\nx < 4"
	h := hover(Analyze(src), strings.Index(src, "x <"))
	if h == nil {
		t.Fatal("hover returned nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if !strings.Contains(mc.Value, "`int`") {
		t.Errorf("hover = %q, want the int type", mc.Value)
	}
	if h.Range == nil || h.Range.Start.Line != 1 || h.Range.Start.Character != 0 {
		t.Errorf("hover range = %v, want line 1 col 0", h.Range)
	}

	if h := hover(Analyze("let = "), 0); h != nil {
		t.Errorf("hover on unparsable document = %v", h)
	}
}

func TestLSP_Complete(t *testing.T) {
	items := complete(Analyze("let total = 1; total"), "t")
	var labels []string
	for _, item := range items {
		labels = append(labels, item.Label)
	}
	if strings.Join(labels, ",") != "true,total" {
		t.Errorf("labels = %v, want [true total]", labels)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("true should be a keyword completion")
	}
}

func TestLSP_Diagnostics(t *testing.T) {
	got := diagnostics(Analyze("let x = 1;\nx + true"))
	if len(got) != 1 {
		t.Fatalf("diagnostics = %v, want 1", got)
	}
	d := got[0]
	if *d.Severity != protocol.DiagnosticSeverityError || d.Range.Start.Line != 1 {
		t.Errorf("diagnostic = %+v", d)
	}
	if !strings.Contains(d.Message, "cannot be applied") {
		t.Errorf("message = %q", d.Message)
	}

	got = diagnostics(Analyze("fn () -> int { 1 }"))
	if len(got) != 1 || *got[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Errorf("compile-stage diagnostics = %v, want one warning", got)
	}

	if got := diagnostics(Analyze("1")); got == nil || len(got) != 0 {
		t.Errorf("clean diagnostics = %v, want empty non-nil", got)
	}
}

// ---------------------------------------------------------------------------
// Document synchronization
// ---------------------------------------------------------------------------

func TestLSP_DocumentLifecycle(t *testing.T) {
	s := NewLSP()
	defer s.worker.Stop()

	published := make(chan protocol.PublishDiagnosticsParams, 4)
	ctx := &glsp.Context{Notify: func(method string, params any) {
		if method == protocol.ServerTextDocumentPublishDiagnostics {
			published <- params.(protocol.PublishDiagnosticsParams)
		}
	}}
	wait := func() protocol.PublishDiagnosticsParams {
		t.Helper()
		select {
		case p := <-published:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no diagnostics published")
		}
		return protocol.PublishDiagnosticsParams{}
	}

	uri := protocol.DocumentUri("file:///test.pico")
	err := s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, Text: `1 + "a"`},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := wait(); len(p.Diagnostics) != 1 {
		t.Errorf("open diagnostics = %v, want 1", p.Diagnostics)
	}

	err = s.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "let a = 1; a"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := wait(); len(p.Diagnostics) != 0 {
		t.Errorf("change diagnostics = %v, want none", p.Diagnostics)
	}

	def, err := s.textDocumentDefinition(ctx, &protocol.DefinitionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 11},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	locs, ok := def.([]protocol.Location)
	if !ok || len(locs) != 1 || locs[0].Range.Start.Character != 0 {
		t.Errorf("definition = %v, want the let at 0", def)
	}

	err = s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		t.Fatal(err)
	}
	wait()
	if s.analysis(uri) != nil {
		t.Error("analysis kept after close")
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point to true")
	}
}

func TestLSP_ChangeAfterShutdown(t *testing.T) {
	s := NewLSP()
	ctx := &glsp.Context{Notify: func(string, any) {}}
	if err := s.shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	uri := protocol.DocumentUri("file:///late.pico")
	done := make(chan error, 1)
	go func() {
		done <- s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
			TextDocument: protocol.TextDocumentItem{URI: uri, Text: "1"},
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("didOpen after shutdown = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("didOpen after shutdown blocked")
	}
	if s.analysis(uri) != nil {
		t.Error("document analysed after shutdown")
	}
}
