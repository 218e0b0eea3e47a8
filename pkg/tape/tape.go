// Package tape implements the fixed-size byte memory shared by every
// execution strategy, together with the cursor bounds policy they all apply.
package tape

import (
	"errors"
	"fmt"
)

// Size is the canonical number of cells on a tape.
const Size = 30000

// ErrTapeBounds is wrapped by BoundsError.
var ErrTapeBounds = errors.New("tape bounds exceeded")

// BoundsPolicy decides what happens when the cursor would leave the tape.
type BoundsPolicy uint8

const (
	// Checked makes leaving the tape a fatal error. This is the default.
	Checked BoundsPolicy = iota
	// Wrap moves the cursor modulo Size.
	Wrap
	// Clamp pins the cursor to the first or last cell.
	Clamp
)

var policyNames = map[BoundsPolicy]string{
	Checked: "checked",
	Wrap:    "wrap",
	Clamp:   "clamp",
}

func (p BoundsPolicy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("BoundsPolicy(%d)", p)
}

// ParsePolicy parses a policy name. The empty string selects Checked.
func ParsePolicy(s string) (BoundsPolicy, error) {
	if s == "" {
		return Checked, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return Checked, fmt.Errorf("unknown bounds policy %q (want checked, wrap or clamp)", s)
}

// BoundsError reports a cursor move that left the tape under Checked.
type BoundsError struct {
	Cursor int // cursor before the move
	Delta  int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("TapeBoundsExceeded: cursor %d moved by %d leaves [0, %d)", e.Cursor, e.Delta, Size)
}

func (e *BoundsError) Unwrap() error { return ErrTapeBounds }

// Tape is a zero-initialized array of Size 8-bit cells and a cursor.
type Tape struct {
	cells  [Size]byte
	cursor int
	policy BoundsPolicy
}

// New creates a zeroed tape with the cursor on cell 0.
func New(policy BoundsPolicy) *Tape {
	return &Tape{policy: policy}
}

// Policy returns the bounds policy.
func (t *Tape) Policy() BoundsPolicy {
	return t.policy
}

// Cursor returns the current cell index.
func (t *Tape) Cursor() int {
	return t.cursor
}

// Move shifts the cursor by delta cells according to the bounds policy.
// Under Checked an out-of-range move leaves the cursor where it was.
func (t *Tape) Move(delta int) error {
	next, err := Step(t.policy, t.cursor, delta)
	if err != nil {
		return err
	}
	t.cursor = next
	return nil
}

// Step computes the cursor after moving delta cells from cursor.
func Step(policy BoundsPolicy, cursor, delta int) (int, error) {
	next := cursor + delta
	if next >= 0 && next < Size {
		return next, nil
	}
	switch policy {
	case Wrap:
		next %= Size
		if next < 0 {
			next += Size
		}
		return next, nil
	case Clamp:
		if next < 0 {
			return 0, nil
		}
		return Size - 1, nil
	default:
		return cursor, &BoundsError{Cursor: cursor, Delta: delta}
	}
}

// Get returns the current cell.
func (t *Tape) Get() byte {
	return t.cells[t.cursor]
}

// Set stores b in the current cell.
func (t *Tape) Set(b byte) {
	t.cells[t.cursor] = b
}

// Add adds delta to the current cell modulo 256.
func (t *Tape) Add(delta int) {
	t.cells[t.cursor] += byte(delta)
}

// Inc increments the current cell, wrapping 255 to 0.
func (t *Tape) Inc() { t.cells[t.cursor]++ }

// Dec decrements the current cell, wrapping 0 to 255.
func (t *Tape) Dec() { t.cells[t.cursor]-- }

// Cell returns the cell at index i.
func (t *Tape) Cell(i int) byte {
	return t.cells[i]
}

// Cells returns a copy of the first n cells.
func (t *Tape) Cells(n int) []byte {
	n = min(n, Size)
	out := make([]byte, n)
	copy(out, t.cells[:n])
	return out
}
