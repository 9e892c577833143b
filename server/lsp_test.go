package server

import (
	"fmt"
	"io"
	"os"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	runtime "github.com/chazu/tulip/lib/runtime"
	"github.com/chazu/tulip/vm"
)

var testRuntime *runtime.Runtime

func TestMain(m *testing.M) {
	rt, err := runtime.New(&runtime.Config{Stdout: io.Discard})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	testRuntime = rt
	code := m.Run()
	rt.Close()
	os.Exit(code)
}

func newTestLSP() *LspServer {
	return &LspServer{
		rt:   testRuntime,
		docs: make(map[string]string),
	}
}

const sampleDoc = `const limit = 10
function square(x) {
  return x * x
}
struct Point { x, y }
let total = square(limit)
println(total)`

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"simple word", "let x = squ", protocol.Position{Line: 0, Character: 11}, "squ"},
		{"at start", "pri", protocol.Position{Line: 0, Character: 3}, "pri"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "first line\nsecond line\npri", protocol.Position{Line: 2, Character: 3}, "pri"},
		{"after paren", "println(tot", protocol.Position{Line: 0, Character: 11}, "tot"},
		{"underscore", "array_le", protocol.Position{Line: 0, Character: 8}, "array_le"},
		{"cursor at beginning", "hello", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
		{"column beyond line", "abc", protocol.Position{Line: 0, Character: 40}, "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPrefix(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractPrefix = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"middle of word", "let total = 1", protocol.Position{Line: 0, Character: 6}, "total"},
		{"at end", "square", protocol.Position{Line: 0, Character: 6}, "square"},
		{"between spaces", "a  b", protocol.Position{Line: 0, Character: 2}, ""},
		{"second word", "foo bar", protocol.Position{Line: 0, Character: 5}, "bar"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "line one\nmy_var here", protocol.Position{Line: 1, Character: 2}, "my_var"},
		{"line beyond document", "single line", protocol.Position{Line: 5, Character: 0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractWord(tt.text, tt.pos); got != tt.want {
				t.Errorf("extractWord = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
	if p := boolPtr(false); p == nil || *p {
		t.Error("boolPtr(false) should point at false")
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_Clean(t *testing.T) {
	diags := diagnose("clean.tulip", sampleDoc, testRuntime.Globals())
	if diags == nil {
		t.Fatal("diagnose should return an empty slice, not nil")
	}
	if len(diags) != 0 {
		t.Errorf("unexpected diagnostics: %+v", diags)
	}
}

func TestDiagnose_SyntaxError(t *testing.T) {
	text := "let a = 1\nlet = 2"
	diags := diagnose("bad.tulip", text, nil)
	if len(diags) == 0 {
		t.Fatal("expected a diagnostic")
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("syntax error should have error severity")
	}
	if d.Range.Start.Line != 1 {
		t.Errorf("diagnostic line = %d, want 1", d.Range.Start.Line)
	}
	if d.Range.End.Character <= d.Range.Start.Character {
		t.Errorf("empty diagnostic range: %+v", d.Range)
	}
	if d.Source == nil || *d.Source != lspName {
		t.Error("diagnostic source should be set")
	}
}

func TestDiagnose_CompileError(t *testing.T) {
	diags := diagnose("const.tulip", "const k = 1\nk = 2", nil)
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if !strings.Contains(diags[0].Message, "Cannot assign to constant 'k'") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

func TestDiagnose_Warnings(t *testing.T) {
	diags := diagnose("warn.tulip", "println(missing)", testRuntime.Globals())
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %+v", len(diags), diags)
	}
	if *diags[0].Severity != protocol.DiagnosticSeverityWarning {
		t.Error("undefined variable should be a warning")
	}
	if !strings.Contains(diags[0].Message, "missing") {
		t.Errorf("message = %q", diags[0].Message)
	}
}

// ---------------------------------------------------------------------------
// LSP VM-backed logic (complete, hover)
// ---------------------------------------------------------------------------

func completionLabels(t *testing.T, lsp *LspServer, text, prefix string) map[string]protocol.CompletionItem {
	t.Helper()
	var result []protocol.CompletionItem
	if err := testRuntime.Inspect(func(v *vm.VM) { result = lsp.complete(v, text, prefix) }); err != nil {
		t.Fatalf("complete returned error: %v", err)
	}
	items := make(map[string]protocol.CompletionItem)
	for _, item := range result {
		items[item.Label] = item
	}
	return items
}

func TestLSP_CompleteNatives(t *testing.T) {
	items := completionLabels(t, newTestLSP(), "", "print")
	for _, want := range []string{"print", "println"} {
		item, ok := items[want]
		if !ok {
			t.Errorf("completion for 'print' missing %q", want)
			continue
		}
		if item.Kind == nil || *item.Kind != protocol.CompletionItemKindFunction {
			t.Errorf("%s should have Kind=Function", want)
		}
	}
}

func TestLSP_CompleteDeclarationsAndKeywords(t *testing.T) {
	lsp := newTestLSP()

	items := completionLabels(t, lsp, sampleDoc, "squ")
	item, ok := items["square"]
	if !ok {
		t.Fatal("completion should include document function 'square'")
	}
	if item.Detail == nil || *item.Detail != "square(x)" {
		t.Errorf("square detail = %v", item.Detail)
	}

	items = completionLabels(t, lsp, sampleDoc, "Po")
	if item, ok := items["Point"]; !ok || *item.Kind != protocol.CompletionItemKindStruct {
		t.Error("completion should include struct 'Point'")
	}

	items = completionLabels(t, lsp, sampleDoc, "fun")
	if item, ok := items["function"]; !ok || *item.Kind != protocol.CompletionItemKindKeyword {
		t.Error("completion should include keyword 'function'")
	}
}

func TestLSP_CompleteNoDuplicates(t *testing.T) {
	var result []protocol.CompletionItem
	testRuntime.Inspect(func(v *vm.VM) { result = newTestLSP().complete(v, "let println2 = 1", "p") })
	seen := make(map[string]bool)
	for _, item := range result {
		if seen[item.Label] {
			t.Errorf("duplicate completion %q", item.Label)
		}
		seen[item.Label] = true
	}
}

func hoverText(t *testing.T, lsp *LspServer, text, word string) string {
	t.Helper()
	var hover *protocol.Hover
	if err := testRuntime.Inspect(func(v *vm.VM) { hover = lsp.hover(v, text, word) }); err != nil {
		t.Fatalf("hover returned error: %v", err)
	}
	if hover == nil {
		return ""
	}
	mc, ok := hover.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatal("hover contents should be MarkupContent")
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("hover markup kind = %q, want %q", mc.Kind, protocol.MarkupKindMarkdown)
	}
	return mc.Value
}

func TestLSP_HoverNative(t *testing.T) {
	got := hoverText(t, newTestLSP(), "", "println")
	if !strings.Contains(got, "println(...)") {
		t.Errorf("hover = %q, want signature", got)
	}
	if !strings.Contains(got, "newline") {
		t.Errorf("hover = %q, want native doc", got)
	}
}

func TestLSP_HoverDeclaration(t *testing.T) {
	got := hoverText(t, newTestLSP(), sampleDoc, "square")
	if !strings.Contains(got, "square(x)") || !strings.Contains(got, "line 2") {
		t.Errorf("hover = %q", got)
	}
}

func TestLSP_HoverUnknownWord(t *testing.T) {
	if got := hoverText(t, newTestLSP(), sampleDoc, "noSuchThing99"); got != "" {
		t.Errorf("hover for unknown word = %q, want none", got)
	}
}

// ---------------------------------------------------------------------------
// Definition and references
// ---------------------------------------------------------------------------

func TestDefinition(t *testing.T) {
	uri := protocol.DocumentUri("file:///sample.tulip")
	locations := definition(uri, sampleDoc, "total")
	if len(locations) != 1 {
		t.Fatalf("got %d locations, want 1", len(locations))
	}
	if locations[0].URI != uri {
		t.Errorf("URI = %q", locations[0].URI)
	}
	if locations[0].Range.Start.Line != 5 {
		t.Errorf("line = %d, want 5", locations[0].Range.Start.Line)
	}

	if got := definition(uri, sampleDoc, "println"); len(got) != 0 {
		t.Errorf("native has a document definition: %+v", got)
	}
}

func TestReferences(t *testing.T) {
	uri := protocol.DocumentUri("file:///sample.tulip")
	locations := references(uri, sampleDoc, "limit")
	if len(locations) != 2 {
		t.Fatalf("got %d references, want 2", len(locations))
	}
	second := locations[1].Range
	if second.Start.Line != 5 || second.End.Character-second.Start.Character != 5 {
		t.Errorf("second reference range = %+v", second)
	}

	if got := references(uri, sampleDoc, "nothing"); len(got) != 0 {
		t.Errorf("unexpected references: %+v", got)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := newTestLSP()
	uri := protocol.DocumentUri("file:///test.tulip")

	lsp.setDocument(uri, "println(1)")
	text, ok := lsp.document(uri)
	if !ok || text != "println(1)" {
		t.Errorf("document = %q, %v", text, ok)
	}

	lsp.setDocument(uri, "println(2)")
	if text, _ := lsp.document(uri); text != "println(2)" {
		t.Errorf("document after change = %q", text)
	}

	lsp.mu.Lock()
	delete(lsp.docs, string(uri))
	lsp.mu.Unlock()

	if _, ok := lsp.document(uri); ok {
		t.Error("document should be removed after close")
	}
}

func TestLSP_ClosedRuntime(t *testing.T) {
	rt, err := runtime.New(&runtime.Config{Stdout: io.Discard})
	if err != nil {
		t.Fatal(err)
	}
	rt.Close()

	lsp := NewLSP(rt, "test")
	uri := protocol.DocumentUri("file:///closed.tulip")
	lsp.mu.Lock()
	lsp.docs[string(uri)] = "println"
	lsp.mu.Unlock()

	_, err = lsp.textDocumentCompletion(nil, &protocol.CompletionParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: uri},
			Position:     protocol.Position{Line: 0, Character: 7},
		},
	})
	if err != runtime.ErrNotInitialized {
		t.Errorf("completion on closed runtime = %v, want ErrNotInitialized", err)
	}
}
