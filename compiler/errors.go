package compiler

import (
	"errors"
	"fmt"
)

// Sentinel errors for bracket matching failures. SyntaxError values match
// these with errors.Is.
var (
	ErrUnmatchedClose   = errors.New("unmatched close bracket")
	ErrUnterminatedLoop = errors.New("unterminated loop")
)

// ErrorKind identifies the kind of syntax error.
type ErrorKind int

const (
	UnmatchedClose ErrorKind = iota + 1
	UnterminatedLoop
)

func (k ErrorKind) String() string {
	switch k {
	case UnmatchedClose:
		return "UnmatchedClose"
	case UnterminatedLoop:
		return "UnterminatedLoop"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// SyntaxError reports the offending bracket. For UnmatchedClose, Offset is
// the stray ']'; for UnterminatedLoop it is the innermost '[' left open.
type SyntaxError struct {
	Kind   ErrorKind
	Offset int
}

func (e *SyntaxError) Error() string {
	switch e.Kind {
	case UnmatchedClose:
		return fmt.Sprintf("%s: ']' at offset %d has no matching '['", e.Kind, e.Offset)
	case UnterminatedLoop:
		return fmt.Sprintf("%s: '[' at offset %d is never closed", e.Kind, e.Offset)
	default:
		return fmt.Sprintf("%s at offset %d", e.Kind, e.Offset)
	}
}

// Is matches the sentinel error for the kind.
func (e *SyntaxError) Is(target error) bool {
	switch e.Kind {
	case UnmatchedClose:
		return target == ErrUnmatchedClose
	case UnterminatedLoop:
		return target == ErrUnterminatedLoop
	}
	return false
}

// CheckBrackets scans src for the first bracket error, reporting it the
// same way Build does. It returns nil for balanced input.
func CheckBrackets(src []byte) *SyntaxError {
	var opens []int
	for i, b := range src {
		switch b {
		case '[':
			opens = append(opens, i)
		case ']':
			if len(opens) == 0 {
				return &SyntaxError{Kind: UnmatchedClose, Offset: i}
			}
			opens = opens[:len(opens)-1]
		}
	}
	if len(opens) > 0 {
		return &SyntaxError{Kind: UnterminatedLoop, Offset: opens[len(opens)-1]}
	}
	return nil
}
