// Package codegen lowers an operator tree into a control-flow-graph shaped
// native unit. The lowering targets the Backend capability so the same
// algorithm drives the LLVM IR emitter, the Go source emitter and the
// in-process bytecode engine.
package codegen

import (
	"fmt"

	"github.com/chazu/bfc/pkg/tape"
)

// Block is a handle to a basic block. Handles are allocated by Context in
// creation order; EntryBlock is always 0.
type Block int

// EntryBlock is the block the unit starts executing in.
const EntryBlock Block = 0

// Logical names of the external routines a unit depends on.
const (
	ExternOutput = "output" // writes one byte
	ExternInput  = "input"  // reads one byte
	ExternEntry  = "entry"  // the unit's entry point
)

// DefaultExterns maps the logical routines onto the C runtime.
func DefaultExterns() map[string]string {
	return map[string]string{
		ExternOutput: "putchar",
		ExternInput:  "getchar",
		ExternEntry:  "main",
	}
}

// Unit describes the native unit being produced.
type Unit struct {
	Name     string
	TapeSize int
	Policy   tape.BoundsPolicy
	Externs  map[string]string // logical name -> native symbol
}

// NewUnit returns a unit with the canonical tape size and C externs.
func NewUnit(name string, policy tape.BoundsPolicy) Unit {
	return Unit{
		Name:     name,
		TapeSize: tape.Size,
		Policy:   policy,
		Externs:  DefaultExterns(),
	}
}

// Extern returns the native symbol for a logical routine name.
func (u Unit) Extern(name string) string {
	if sym, ok := u.Externs[name]; ok {
		return sym
	}
	return DefaultExterns()[name]
}

func (u Unit) validate() error {
	if u.TapeSize != tape.Size {
		return fmt.Errorf("unsupported tape size %d (only %d)", u.TapeSize, tape.Size)
	}
	for _, name := range []string{ExternOutput, ExternInput, ExternEntry} {
		if u.Extern(name) == "" {
			return fmt.Errorf("no native symbol for extern %q", name)
		}
	}
	return nil
}

// Backend is the native code capability targeted by Lower. Calls arrive in
// a well-formed order: Begin first, Finish last, every block opened with
// SetInsertPoint and closed by exactly one Jump or BranchNonZero (the block
// current at Finish is closed by Finish itself).
type Backend interface {
	// Begin starts a unit. The insertion point is the entry block.
	Begin(u Unit) error
	// NewBlock declares a fresh block. Names are unique within the unit.
	NewBlock(b Block, name string)
	// SetInsertPoint directs subsequent instructions into b.
	SetInsertPoint(b Block)

	// Move shifts the cursor by delta cells, applying the bounds policy.
	Move(delta int)
	// Add adds delta to the current cell modulo 256.
	Add(delta int)
	// Output passes the current cell to the output routine.
	Output()
	// Input stores one byte from the input routine in the current cell.
	Input()

	// Jump ends the current block with an unconditional branch.
	Jump(target Block)
	// BranchNonZero ends the current block, continuing in then when the
	// current cell is non-zero and in els otherwise.
	BranchNonZero(then, els Block)

	// Finish returns from the entry point and completes the unit.
	Finish() error
}
