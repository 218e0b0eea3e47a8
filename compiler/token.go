package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the tape language lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenNoOp      TokenType = iota // any byte outside the command alphabet
	TokenMoveRight                  // >
	TokenMoveLeft                   // <
	TokenIncrement                  // +
	TokenDecrement                  // -
	TokenOutput                     // .
	TokenInput                      // ,
	TokenLoopOpen                   // [
	TokenLoopClose                  // ]
)

var tokenNames = map[TokenType]string{
	TokenNoOp:      "NOOP",
	TokenMoveRight: ">",
	TokenMoveLeft:  "<",
	TokenIncrement: "+",
	TokenDecrement: "-",
	TokenOutput:    ".",
	TokenInput:     ",",
	TokenLoopOpen:  "[",
	TokenLoopClose: "]",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// commandTypes maps each byte of the command alphabet to its token type.
// Every other byte lexes as TokenNoOp.
var commandTypes = [256]TokenType{
	'>': TokenMoveRight,
	'<': TokenMoveLeft,
	'+': TokenIncrement,
	'-': TokenDecrement,
	'.': TokenOutput,
	',': TokenInput,
	'[': TokenLoopOpen,
	']': TokenLoopClose,
}

// TypeOf returns the token type for a single source byte.
func TypeOf(b byte) TokenType {
	return commandTypes[b]
}

// IsCommand returns true if b is one of the eight command bytes.
func IsCommand(b byte) bool {
	return commandTypes[b] != TokenNoOp
}

// Token represents a lexical token. Byte always holds the original source
// byte, so a token stream can be turned back into the exact input.
type Token struct {
	Type   TokenType
	Byte   byte
	Offset int // byte offset in the source
}

func (t Token) String() string {
	if t.Type == TokenNoOp {
		return fmt.Sprintf("NOOP(%q)", t.Byte)
	}
	return t.Type.String()
}

// Tokens is an ordered token stream.
type Tokens []Token

// Bytes renders the stream back to source bytes, NoOp bytes included.
func (ts Tokens) Bytes() []byte {
	out := make([]byte, len(ts))
	for i, t := range ts {
		out[i] = t.Byte
	}
	return out
}
