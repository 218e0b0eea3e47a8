package bytecode

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/chazu/bfc/pkg/tape"
)

// VM executes chunks. A VM may be reused; every run starts on a fresh tape.
type VM struct {
	// Trace prints each instruction before it executes.
	Trace    bool
	TraceOut io.Writer

	in  io.Reader
	out io.Writer

	tape     *tape.Tape
	executed uint64
}

// NewVM creates a VM reading Input bytes from in and writing Output bytes
// to out.
func NewVM(in io.Reader, out io.Writer) *VM {
	return &VM{in: in, out: out, TraceOut: os.Stderr}
}

// Tape returns the tape of the last run.
func (vm *VM) Tape() *tape.Tape {
	return vm.tape
}

// Executed returns how many instructions the last run executed.
func (vm *VM) Executed() uint64 {
	return vm.executed
}

// Run executes c to completion.
func (vm *VM) Run(c *Chunk) error {
	return vm.RunContext(context.Background(), c)
}

// cancelEvery is how many taken branches pass between context checks.
const cancelEvery = 1 << 12

// RunContext executes c, stopping with ctx.Err() if ctx is cancelled.
// Errors from the tape and the I/O routines are the same values the
// tree-walking interpreter returns.
func (vm *VM) RunContext(ctx context.Context, c *Chunk) error {
	if err := c.Verify(); err != nil {
		return fmt.Errorf("bytecode: %w", err)
	}
	vm.tape = tape.New(c.Policy)
	vm.executed = 0

	code := c.Code
	ip := 0
	branches := 0
	for {
		op := Opcode(code[ip])
		if vm.Trace {
			fmt.Fprintf(vm.TraceOut, "[%04x] %-24s p=%d cell=%d\n",
				ip, c.DisassembleInstruction(ip), vm.tape.Cursor(), vm.tape.Get())
		}
		vm.executed++
		ip++

		switch op {
		case OpNop:

		case OpMove:
			delta := int16(binary.BigEndian.Uint16(code[ip:]))
			ip += 2
			if err := vm.tape.Move(int(delta)); err != nil {
				return err
			}

		case OpAdd:
			vm.tape.Add(int(code[ip]))
			ip++

		case OpOutput:
			if err := tape.WriteByte(vm.out, vm.tape.Get()); err != nil {
				return err
			}

		case OpInput:
			b, err := tape.ReadByte(vm.in)
			if err != nil {
				return err
			}
			vm.tape.Set(b)

		case OpJump:
			ip = int(binary.BigEndian.Uint32(code[ip:]))
			if branches++; branches%cancelEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

		case OpBranchNonZero:
			if vm.tape.Get() != 0 {
				ip = int(binary.BigEndian.Uint32(code[ip:]))
			} else {
				ip = int(binary.BigEndian.Uint32(code[ip+4:]))
			}

		case OpHalt:
			return nil

		default:
			return fmt.Errorf("bytecode: invalid opcode 0x%02X at %04X", byte(op), ip-1)
		}
	}
}
