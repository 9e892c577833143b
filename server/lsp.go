package server

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/tulip/compiler"
	runtime "github.com/chazu/tulip/lib/runtime"
	"github.com/chazu/tulip/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "tulip-lsp"

var log = commonlog.GetLogger("tulip.lsp")

// LspServer bridges LSP editor features to the TulipScript compiler and a
// runtime holding the native library. VM access goes through the runtime's
// worker.
type LspServer struct {
	rt *runtime.Runtime

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server over rt. The caller owns rt and closes it
// after the server returns.
func NewLSP(rt *runtime.Runtime, version string) *LspServer {
	s := &LspServer{
		rt:      rt,
		docs:    make(map[string]string),
		version: version,
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
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// RunTCP serves a single editor over TCP at address.
func (s *LspServer) RunTCP(address string) error {
	return s.server.RunTCP(address)
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Infof("%s %s initializing", lspName, s.version)

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

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
	log.Infof("%s shutting down", lspName)
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.setDocument(uri, text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDocument(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDocument(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}

	var items []protocol.CompletionItem
	if err := s.rt.Inspect(func(v *vm.VM) { items = s.complete(v, text, prefix) }); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	var hover *protocol.Hover
	if err := s.rt.Inspect(func(v *vm.VM) { hover = s.hover(v, text, word) }); err != nil {
		log.Warningf("hover %q: %s", word, err)
		return nil, nil
	}
	return hover, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}

	locations := definition(uri, text, word)
	if len(locations) == 0 {
		return nil, nil
	}
	return locations, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI
	text, ok := s.document(uri)
	if !ok {
		return nil, nil
	}

	word := extractWord(text, params.Position)
	if word == "" {
		return nil, nil
	}
	return references(uri, text, word), nil
}

// --- VM-backed logic (called on the runtime's worker) ---

func (s *LspServer) complete(v *vm.VM, text, prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)
	lowerPrefix := strings.ToLower(prefix)

	add := func(label string, kind protocol.CompletionItemKind, detail string) {
		if seen[label] || !strings.HasPrefix(strings.ToLower(label), lowerPrefix) {
			return
		}
		seen[label] = true
		labelCopy := label
		item := protocol.CompletionItem{
			Label:      label,
			Kind:       &kind,
			InsertText: &labelCopy,
		}
		if detail != "" {
			detailCopy := detail
			item.Detail = &detailCopy
		}
		items = append(items, item)
	}

	// Declarations in the open document
	if prog, diags := compiler.Parse(text); len(diags) == 0 {
		for _, d := range prog.Declarations() {
			detail := d.Detail
			if detail == "" {
				detail = d.Kind
			}
			add(d.Name, declarationKind(d.Kind), detail)
		}
	}

	// Natives
	for _, n := range v.Natives() {
		add(n.Name, protocol.CompletionItemKindFunction, nativeSignature(n))
	}

	// Remaining globals
	for _, name := range v.GlobalNames() {
		add(name, protocol.CompletionItemKindVariable, "global")
	}

	// Keywords
	for _, kw := range compiler.Keywords() {
		add(kw, protocol.CompletionItemKindKeyword, "keyword")
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Label < items[j].Label
	})

	// Limit results
	const maxItems = 100
	if len(items) > maxItems {
		items = items[:maxItems]
	}

	return items
}

func (s *LspServer) hover(v *vm.VM, text, word string) *protocol.Hover {
	if prog, diags := compiler.Parse(text); len(diags) == 0 {
		for _, d := range prog.Declarations() {
			if d.Name != word {
				continue
			}
			detail := d.Detail
			if detail == "" {
				detail = d.Name
			}
			return markdownHover(fmt.Sprintf("```tulip\n%s\n```\n\n%s declared on line %d", detail, d.Kind, d.Pos.Line))
		}
	}

	val, ok := v.LookupGlobal(word)
	if !ok {
		return nil
	}
	n, isNative := val.Object().(*vm.Native)
	if !isNative {
		return markdownHover(fmt.Sprintf("**%s**\n\nglobal `%s`", word, vm.Render(val)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**%s**", nativeSignature(n))
	if n.Doc != "" {
		b.WriteString("\n\n---\n\n")
		b.WriteString(n.Doc)
	}
	return markdownHover(b.String())
}

// --- Document-only logic ---

func definition(uri protocol.DocumentUri, text, word string) []protocol.Location {
	prog, diags := compiler.Parse(text)
	if len(diags) > 0 {
		return nil
	}
	var locations []protocol.Location
	for _, d := range prog.Declarations() {
		if d.Name == word {
			locations = append(locations, protocol.Location{
				URI:   uri,
				Range: pointRange(d.Pos.Line, d.Pos.Column),
			})
		}
	}
	return locations
}

func references(uri protocol.DocumentUri, text, word string) []protocol.Location {
	var locations []protocol.Location
	for _, tok := range compiler.Tokenize(text) {
		if tok.Type != compiler.TokenIdentifier || tok.Literal != word {
			continue
		}
		start := toPosition(tok.Pos.Line, tok.Pos.Column)
		end := start
		end.Character += protocol.UInteger(len(tok.Literal))
		locations = append(locations, protocol.Location{
			URI:   uri,
			Range: protocol.Range{Start: start, End: end},
		})
	}
	return locations
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	known := s.rt.Globals()
	if known == nil {
		log.Errorf("diagnostics for %s: %s", uri, runtime.ErrNotInitialized)
		return
	}

	diagnostics := diagnose(string(uri), text, known)
	log.Debugf("%s: %d diagnostics", uri, len(diagnostics))
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

// diagnose reports compile errors, or analyzer warnings when the unit
// compiles. known lists globals defined outside the document.
func diagnose(unit, text string, known []string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	if errs := compiler.Check(text, unit); len(errs) > 0 {
		for _, d := range errs {
			diagnostics = append(diagnostics, toDiagnostic(text, d, protocol.DiagnosticSeverityError))
		}
		return diagnostics
	}

	prog, _ := compiler.Parse(text)
	for _, d := range compiler.Analyze(prog, known) {
		diagnostics = append(diagnostics, toDiagnostic(text, d, protocol.DiagnosticSeverityWarning))
	}
	return diagnostics
}

func toDiagnostic(text string, d vm.Diagnostic, severity protocol.DiagnosticSeverity) protocol.Diagnostic {
	source := lspName
	start := toPosition(d.Line, d.Column)
	end := start
	if word := extractWord(text, start); word != "" {
		end.Character += protocol.UInteger(len(word))
	} else {
		end.Character++
	}
	return protocol.Diagnostic{
		Range:    protocol.Range{Start: start, End: end},
		Severity: &severity,
		Source:   &source,
		Message:  d.Message,
	}
}

// --- Helpers ---

// toPosition converts 1-based compiler positions to 0-based LSP positions.
func toPosition(line, column int) protocol.Position {
	if line < 1 {
		line = 1
	}
	if column < 1 {
		column = 1
	}
	return protocol.Position{Line: protocol.UInteger(line - 1), Character: protocol.UInteger(column - 1)}
}

func pointRange(line, column int) protocol.Range {
	p := toPosition(line, column)
	return protocol.Range{Start: p, End: p}
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func nativeSignature(n *vm.Native) string {
	switch {
	case n.Arity < 0:
		return n.Name + "(...)"
	case n.Arity == 0:
		return n.Name + "()"
	}
	params := make([]string, n.Arity)
	for i := range params {
		params[i] = fmt.Sprintf("arg%d", i+1)
	}
	return n.Name + "(" + strings.Join(params, ", ") + ")"
}

func declarationKind(kind string) protocol.CompletionItemKind {
	switch kind {
	case "function":
		return protocol.CompletionItemKindFunction
	case "constant":
		return protocol.CompletionItemKindConstant
	case "struct":
		return protocol.CompletionItemKindStruct
	}
	return protocol.CompletionItemKindVariable
}

// extractPrefix returns the word fragment before the cursor for completion.
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
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 && isIdentByte(line[start-1]) {
		start--
	}

	// Find end
	end := col
	for end < len(line) && isIdentByte(line[end]) {
		end++
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func isIdentByte(b byte) bool {
	ch := rune(b)
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

func boolPtr(b bool) *bool {
	return &b
}
