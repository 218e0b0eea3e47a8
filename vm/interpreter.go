// Package vm implements the reference tree-walking interpreter. It is the
// behavior every other execution strategy is checked against.
package vm

import (
	"fmt"
	"io"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/tape"
)

// ---------------------------------------------------------------------------
// Interpreter: tree-walking evaluator
// ---------------------------------------------------------------------------

// Interpreter executes an operator tree directly against a tape. Each
// instance owns its tape for the duration of a run.
type Interpreter struct {
	tape *tape.Tape
	in   io.Reader
	out  io.Writer

	policy tape.BoundsPolicy
	steps  uint64 // operators executed, including loop tests
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithPolicy sets the cursor bounds policy. The default is tape.Checked.
func WithPolicy(p tape.BoundsPolicy) Option {
	return func(i *Interpreter) { i.policy = p }
}

// New creates an interpreter reading Input bytes from in and writing
// Output bytes to out.
func New(in io.Reader, out io.Writer, opts ...Option) *Interpreter {
	i := &Interpreter{in: in, out: out, policy: tape.Checked}
	for _, opt := range opts {
		opt(i)
	}
	i.tape = tape.New(i.policy)
	return i
}

// Tape returns the interpreter's tape, for inspecting memory after a run.
func (i *Interpreter) Tape() *tape.Tape {
	return i.tape
}

// Steps returns how many operators have been executed.
func (i *Interpreter) Steps() uint64 {
	return i.steps
}

// Reset discards the tape and starts over with fresh zeroed memory.
func (i *Interpreter) Reset() {
	i.tape = tape.New(i.policy)
	i.steps = 0
}

// Run executes the program to completion. Every error is fatal for the run:
// the tape is left as it was at the failing operator.
func (i *Interpreter) Run(p *compiler.Program) error {
	return i.exec(p.Ops)
}

// exec runs one operator sequence. Loop iteration happens inside this frame,
// so Go stack depth follows loop nesting, never iteration count.
func (i *Interpreter) exec(ops []compiler.Op) error {
	for _, op := range ops {
		i.steps++
		switch o := op.(type) {
		case compiler.MoveRight:
			if err := i.tape.Move(1); err != nil {
				return err
			}
		case compiler.MoveLeft:
			if err := i.tape.Move(-1); err != nil {
				return err
			}
		case compiler.Increment:
			i.tape.Inc()
		case compiler.Decrement:
			i.tape.Dec()
		case compiler.Output:
			if err := tape.WriteByte(i.out, i.tape.Get()); err != nil {
				return err
			}
		case compiler.Input:
			b, err := tape.ReadByte(i.in)
			if err != nil {
				return err
			}
			i.tape.Set(b)
		case *compiler.Loop:
			for i.tape.Get() != 0 {
				if err := i.exec(o.Body); err != nil {
					return err
				}
				i.steps++
			}
		default:
			return fmt.Errorf("interpreter: unknown operator %T", op)
		}
	}
	return nil
}
