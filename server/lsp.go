package server

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/bfc/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "bfc-lsp"

var log = commonlog.GetLogger("bfc.server")

// LspServer checks bracket structure as documents change and answers
// hover and highlight requests for loop brackets.
type LspServer struct {
	frontend compiler.Frontend

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a language server that parses documents with fe.
// A nil fe selects the grammar front end.
func NewLSP(fe compiler.Frontend) *LspServer {
	if fe == nil {
		fe = compiler.GrammarFrontend{}
	}
	s := &LspServer{
		frontend: fe,
		docs:     make(map[string]string),
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

		TextDocumentHover:             s.textDocumentHover,
		TextDocumentDocumentHighlight: s.textDocumentHighlight,
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
	log.Infof("initializing with %s front end", s.frontend.Name())

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}
	capabilities.HoverProvider = true
	capabilities.DocumentHighlightProvider = true

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
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
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
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	whole, ok := last.(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		log.Warningf("ignoring incremental change for %s", uri)
		return nil
	}
	s.setDocument(uri, whole.Text)
	s.publishDiagnostics(ctx, uri, whole.Text)
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	s.mu.Lock()
	delete(s.docs, string(params.TextDocument.URI))
	s.mu.Unlock()
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

// --- Hover and highlight ---

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

func (s *LspServer) textDocumentHighlight(ctx *glsp.Context, params *protocol.DocumentHighlightParams) ([]protocol.DocumentHighlight, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return highlight(text, params.Position), nil
}

var opDescriptions = map[byte]string{
	'>': "Move the cursor one cell right",
	'<': "Move the cursor one cell left",
	'+': "Increment the current cell (wraps at 255)",
	'-': "Decrement the current cell (wraps at 0)",
	'.': "Write the current cell as one byte",
	',': "Read one byte into the current cell",
	'[': "Loop while the current cell is non-zero",
	']': "End of loop",
}

// hover describes the command under pos. For brackets it also reports the
// nesting depth and where the partner bracket is.
func hover(text string, pos protocol.Position) *protocol.Hover {
	offset := positionToOffset(text, pos)
	if offset < 0 || offset >= len(text) {
		return nil
	}
	c := text[offset]
	desc, ok := opDescriptions[c]
	if !ok {
		return nil
	}

	value := fmt.Sprintf("`%c` %s", c, desc)
	if c == '[' || c == ']' {
		depth := depthAt(text, offset)
		if c == ']' {
			depth--
		}
		if partner, found := bracketPairs(text)[offset]; found {
			p := offsetToPosition(text, partner)
			value += fmt.Sprintf("\n\nDepth %d. Matches `%c` at line %d, column %d.",
				depth, text[partner], p.Line+1, p.Character+1)
		} else {
			value += "\n\nThis bracket has no partner."
		}
	}

	r := byteRange(text, offset)
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
		Range: &r,
	}
}

// highlight returns both brackets of the pair under pos, or nil.
func highlight(text string, pos protocol.Position) []protocol.DocumentHighlight {
	offset := positionToOffset(text, pos)
	if offset < 0 {
		return nil
	}
	partner, ok := bracketPairs(text)[offset]
	if !ok {
		return nil
	}
	kind := protocol.DocumentHighlightKindText
	return []protocol.DocumentHighlight{
		{Range: byteRange(text, offset), Kind: &kind},
		{Range: byteRange(text, partner), Kind: &kind},
	}
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	diags := diagnostics(s.frontend, text)
	log.Debugf("%s: %d diagnostics", uri, len(diags))

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diags,
	})
}

// diagnostics parses text with fe and reports a bracket error on the
// offending byte. A clean document yields an empty, non-nil slice so the
// client clears earlier results.
func diagnostics(fe compiler.Frontend, text string) []protocol.Diagnostic {
	diags := []protocol.Diagnostic{}
	_, err := fe.Parse([]byte(text))
	if err == nil {
		return diags
	}

	severity := protocol.DiagnosticSeverityError
	source := lspName
	d := protocol.Diagnostic{
		Severity: &severity,
		Source:   &source,
		Message:  err.Error(),
	}
	var syn *compiler.SyntaxError
	if errors.As(err, &syn) {
		d.Range = byteRange(text, syn.Offset)
	}
	return append(diags, d)
}

func boolPtr(b bool) *bool {
	return &b
}
