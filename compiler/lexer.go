package compiler

import "io"

// ---------------------------------------------------------------------------
// Lexer: byte-to-token mapping
// ---------------------------------------------------------------------------

// Lexer tokenizes tape language source. Lexing is total: every byte yields
// exactly one token and no input is ever rejected.
type Lexer struct {
	input []byte
	pos   int // offset of the next byte to read
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input []byte) *Lexer {
	return &Lexer{input: input}
}

// NextToken returns the next token. ok is false once the input is exhausted.
func (l *Lexer) NextToken() (tok Token, ok bool) {
	if l.pos >= len(l.input) {
		return Token{Offset: l.pos}, false
	}
	b := l.input[l.pos]
	tok = Token{Type: TypeOf(b), Byte: b, Offset: l.pos}
	l.pos++
	return tok, true
}

// Lex tokenizes the whole input.
func Lex(input []byte) Tokens {
	l := NewLexer(input)
	tokens := make(Tokens, 0, len(input))
	for {
		tok, ok := l.NextToken()
		if !ok {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// ---------------------------------------------------------------------------
// Tokenizer: streaming token queue
// ---------------------------------------------------------------------------

// Tokenizer is a token queue fed through io.Writer and drained through
// io.Reader. Bytes written are lexed and queued; reads turn queued tokens
// back into their source bytes.
type Tokenizer struct {
	tokens Tokens
	offset int // offset assigned to the next written byte
}

// NewTokenizer creates a tokenizer pre-loaded with the given source.
func NewTokenizer(src []byte) *Tokenizer {
	t := &Tokenizer{}
	t.Write(src)
	return t
}

// Write lexes p and appends the tokens to the queue. It never fails.
func (t *Tokenizer) Write(p []byte) (int, error) {
	for _, tok := range Lex(p) {
		tok.Offset += t.offset
		t.tokens = append(t.tokens, tok)
	}
	t.offset += len(p)
	return len(p), nil
}

// Read drains up to len(p) queued tokens into p as source bytes.
func (t *Tokenizer) Read(p []byte) (int, error) {
	if len(t.tokens) == 0 {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	n := min(len(p), len(t.tokens))
	for i := 0; i < n; i++ {
		p[i] = t.tokens[i].Byte
	}
	t.tokens = t.tokens[n:]
	return n, nil
}

// Tokens returns the queued tokens without draining them.
func (t *Tokenizer) Tokens() Tokens {
	return t.tokens
}

// Len returns the number of queued tokens.
func (t *Tokenizer) Len() int {
	return len(t.tokens)
}

// Reset discards all queued tokens.
func (t *Tokenizer) Reset() {
	t.tokens = nil
}
