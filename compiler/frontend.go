package compiler

import "fmt"

// Frontend turns raw source into an operator tree. The lexer and grammar
// front ends produce structurally identical trees for the same valid source.
type Frontend interface {
	Name() string
	Parse(src []byte) (*Program, error)
}

// LexerFrontend lexes byte by byte and builds with the nesting counter.
type LexerFrontend struct{}

func (LexerFrontend) Name() string                       { return "lexer" }
func (LexerFrontend) Parse(src []byte) (*Program, error) { return Parse(src) }

// GrammarFrontend parses with the participle grammar.
type GrammarFrontend struct{}

func (GrammarFrontend) Name() string                       { return "grammar" }
func (GrammarFrontend) Parse(src []byte) (*Program, error) { return ParseGrammar(src) }

// Frontends lists the available front ends by name.
var Frontends = map[string]Frontend{
	"lexer":   LexerFrontend{},
	"grammar": GrammarFrontend{},
}

// FrontendByName returns the named front end.
func FrontendByName(name string) (Frontend, error) {
	if fe, ok := Frontends[name]; ok {
		return fe, nil
	}
	return nil, fmt.Errorf("unknown front end %q (want lexer or grammar)", name)
}
