package server

import (
	"unicode/utf8"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// ---------------------------------------------------------------------------
// Offsets and LSP positions
//
// LSP positions count UTF-16 code units within a line. Program commands are
// ASCII, but surrounding commentary may be anything.
// ---------------------------------------------------------------------------

// offsetToPosition converts a byte offset in text to an LSP position.
// Offsets past the end map to the end of the document.
func offsetToPosition(text string, offset int) protocol.Position {
	offset = min(max(offset, 0), len(text))
	var line, char protocol.UInteger
	for i := 0; i < offset; {
		r, size := utf8.DecodeRuneInString(text[i:])
		if i+size > offset {
			break
		}
		i += size
		if r == '\n' {
			line++
			char = 0
			continue
		}
		char += utf16Len(r)
	}
	return protocol.Position{Line: line, Character: char}
}

// positionToOffset converts an LSP position to a byte offset, or -1 if the
// position lies outside the document.
func positionToOffset(text string, pos protocol.Position) int {
	var line, char protocol.UInteger
	for i := 0; i < len(text); {
		if line == pos.Line && char == pos.Character {
			return i
		}
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == '\n' {
			if line == pos.Line {
				return -1 // past the end of the line
			}
			line++
			char = 0
		} else {
			char += utf16Len(r)
		}
		i += size
	}
	if line == pos.Line && char == pos.Character {
		return len(text)
	}
	return -1
}

func utf16Len(r rune) protocol.UInteger {
	if r >= 0x10000 {
		return 2
	}
	return 1
}

// byteRange returns the range covering the single byte at offset.
func byteRange(text string, offset int) protocol.Range {
	return protocol.Range{
		Start: offsetToPosition(text, offset),
		End:   offsetToPosition(text, offset+1),
	}
}

// bracketPairs maps the offset of every matched bracket to the offset of
// its partner. Unmatched brackets are absent.
func bracketPairs(text string) map[int]int {
	pairs := make(map[int]int)
	var open []int
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '[':
			open = append(open, i)
		case ']':
			if len(open) == 0 {
				continue
			}
			j := open[len(open)-1]
			open = open[:len(open)-1]
			pairs[i] = j
			pairs[j] = i
		}
	}
	return pairs
}

// depthAt returns the loop nesting depth at offset.
func depthAt(text string, offset int) int {
	depth := 0
	for i := 0; i < offset && i < len(text); i++ {
		switch text[i] {
		case '[':
			depth++
		case ']':
			if depth > 0 {
				depth--
			}
		}
	}
	return depth
}
