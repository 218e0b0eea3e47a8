package codegen

import (
	"errors"
	"fmt"

	"github.com/chazu/bfc/compiler"
)

// ErrMalformedCFG is wrapped by every InternalError. Valid operator trees
// never produce it; seeing it means the lowering itself is broken.
var ErrMalformedCFG = errors.New("CodegenInternalInconsistency")

// InternalError reports malformed control-flow wiring.
type InternalError struct {
	Block string
	Msg   string
}

func (e *InternalError) Error() string {
	if e.Block == "" {
		return fmt.Sprintf("%s: %s", ErrMalformedCFG, e.Msg)
	}
	return fmt.Sprintf("%s: block %s: %s", ErrMalformedCFG, e.Block, e.Msg)
}

func (e *InternalError) Unwrap() error { return ErrMalformedCFG }

// ---------------------------------------------------------------------------
// Context: insertion point, externs and fresh block allocation
// ---------------------------------------------------------------------------

type blockState struct {
	name       string
	entered    bool
	terminated bool
}

// Context sits between the lowering and a Backend. It owns block
// allocation and checks every call for well-formed wiring before
// forwarding it. The first violation is kept and reported by Finish.
type Context struct {
	backend Backend
	unit    Unit

	blocks  []blockState
	current Block
	loops   int // loops lowered so far, used to name block triples
	err     error
}

// NewContext begins a unit on the backend with the insertion point in the
// entry block.
func NewContext(b Backend, u Unit) (*Context, error) {
	if err := u.validate(); err != nil {
		return nil, err
	}
	if err := b.Begin(u); err != nil {
		return nil, err
	}
	c := &Context{
		backend: b,
		unit:    u,
		blocks:  []blockState{{name: "entry", entered: true}},
		current: EntryBlock,
	}
	return c, nil
}

// Unit returns the unit being lowered.
func (c *Context) Unit() Unit { return c.unit }

// Current returns the insertion block.
func (c *Context) Current() Block { return c.current }

// Err returns the first wiring violation seen, if any.
func (c *Context) Err() error { return c.err }

func (c *Context) fail(b Block, format string, args ...any) {
	if c.err != nil {
		return
	}
	name := ""
	if c.known(b) {
		name = c.blocks[b].name
	}
	c.err = &InternalError{Block: name, Msg: fmt.Sprintf(format, args...)}
}

func (c *Context) known(b Block) bool {
	return b >= 0 && int(b) < len(c.blocks)
}

// NewBlock allocates a fresh block. The name is made unique by appending
// the block number.
func (c *Context) NewBlock(hint string) Block {
	b := Block(len(c.blocks))
	name := fmt.Sprintf("%s_%d", hint, b)
	c.blocks = append(c.blocks, blockState{name: name})
	c.backend.NewBlock(b, name)
	return b
}

// BlockName returns the unique name of b.
func (c *Context) BlockName(b Block) string {
	if !c.known(b) {
		return fmt.Sprintf("<block %d>", b)
	}
	return c.blocks[b].name
}

// SetInsertPoint moves emission into b, which must be new and unentered.
func (c *Context) SetInsertPoint(b Block) {
	switch {
	case !c.known(b):
		c.fail(b, "insert point %d was never allocated", b)
		return
	case !c.blocks[c.current].terminated:
		c.fail(c.current, "left without a terminator")
		return
	case c.blocks[b].entered:
		c.fail(b, "re-entered after emission")
		return
	}
	c.blocks[b].entered = true
	c.current = b
	c.backend.SetInsertPoint(b)
}

func (c *Context) open() bool {
	if c.blocks[c.current].terminated {
		c.fail(c.current, "instruction after terminator")
		return false
	}
	return true
}

// Move emits a cursor move.
func (c *Context) Move(delta int) {
	if c.open() {
		c.backend.Move(delta)
	}
}

// Add emits a cell update.
func (c *Context) Add(delta int) {
	if c.open() {
		c.backend.Add(delta)
	}
}

// Output emits a call to the output routine.
func (c *Context) Output() {
	if c.open() {
		c.backend.Output()
	}
}

// Input emits a call to the input routine.
func (c *Context) Input() {
	if c.open() {
		c.backend.Input()
	}
}

// Jump terminates the current block with a branch to target.
func (c *Context) Jump(target Block) {
	if !c.open() {
		return
	}
	if !c.known(target) || target == EntryBlock {
		c.fail(c.current, "jump to invalid block %d", target)
		return
	}
	c.blocks[c.current].terminated = true
	c.backend.Jump(target)
}

// BranchNonZero terminates the current block with a conditional branch.
func (c *Context) BranchNonZero(then, els Block) {
	if !c.open() {
		return
	}
	for _, b := range []Block{then, els} {
		if !c.known(b) || b == EntryBlock {
			c.fail(c.current, "branch to invalid block %d", b)
			return
		}
	}
	c.blocks[c.current].terminated = true
	c.backend.BranchNonZero(then, els)
}

// Finish closes the current block with a return and checks that every
// other block was entered and terminated.
func (c *Context) Finish() error {
	if c.open() {
		c.blocks[c.current].terminated = true
	}
	for i, st := range c.blocks {
		if !st.entered {
			c.fail(Block(i), "allocated but never entered")
		} else if !st.terminated {
			c.fail(Block(i), "not terminated")
		}
	}
	if c.err != nil {
		return c.err
	}
	return c.backend.Finish()
}

// ---------------------------------------------------------------------------
// Lowering
// ---------------------------------------------------------------------------

// Lower translates p into a unit on backend b.
func Lower(p *compiler.Program, b Backend, u Unit) error {
	c, err := NewContext(b, u)
	if err != nil {
		return err
	}
	c.lowerOps(p.Ops)
	return c.Finish()
}

func (c *Context) lowerOps(ops []compiler.Op) {
	for _, op := range ops {
		switch o := op.(type) {
		case compiler.MoveRight:
			c.Move(1)
		case compiler.MoveLeft:
			c.Move(-1)
		case compiler.Increment:
			c.Add(1)
		case compiler.Decrement:
			c.Add(-1)
		case compiler.Output:
			c.Output()
		case compiler.Input:
			c.Input()
		case *compiler.Loop:
			c.lowerLoop(o)
		default:
			c.fail(c.current, "unknown operator %T", op)
		}
		if c.err != nil {
			return
		}
	}
}

// lowerLoop emits a fresh condition/body/exit triple. Control enters the
// condition block, which tests the current cell and branches to the body
// or the exit. The body ends by jumping back to the condition, and
// emission continues in the exit block.
func (c *Context) lowerLoop(l *compiler.Loop) {
	c.loops++
	cond := c.NewBlock("loop_start")
	body := c.NewBlock("loop_body")
	exit := c.NewBlock("loop_end")

	c.Jump(cond)

	c.SetInsertPoint(cond)
	c.BranchNonZero(body, exit)

	c.SetInsertPoint(body)
	c.lowerOps(l.Body)
	c.Jump(cond)

	c.SetInsertPoint(exit)
}

// Loops returns how many loops have been lowered.
func (c *Context) Loops() int { return c.loops }
