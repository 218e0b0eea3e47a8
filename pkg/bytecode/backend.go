package bytecode

import (
	"fmt"

	"github.com/chazu/bfc/compiler"
	"github.com/chazu/bfc/pkg/codegen"
	"github.com/chazu/bfc/pkg/tape"
)

// ---------------------------------------------------------------------------
// Backend: codegen.Backend producing a Chunk
// ---------------------------------------------------------------------------

type fixup struct {
	at     int // placeholder offset within the block
	target codegen.Block
}

type pendingBlock struct {
	name   string
	code   *Chunk // scratch chunk holding this block's instructions only
	fixups []fixup
}

// Backend receives the lowered block graph and assembles a Chunk. Blocks
// are buffered separately and laid out in creation order by Finish, which
// then patches every branch to an absolute offset.
type Backend struct {
	// Fold merges runs of Add, and of Move under the wrap policy.
	Fold bool

	unit   codegen.Unit
	blocks []*pendingBlock
	cur    *pendingBlock

	// run being folded in the current block
	runOp    Opcode
	runDelta int

	chunk *Chunk
}

// NewBackend creates a bytecode backend with folding enabled.
func NewBackend() *Backend {
	return &Backend{Fold: true}
}

// Chunk returns the assembled chunk once Finish has succeeded.
func (b *Backend) Chunk() *Chunk {
	return b.chunk
}

func (b *Backend) Begin(u codegen.Unit) error {
	b.unit = u
	b.blocks = nil
	b.chunk = nil
	b.runOp = OpNop
	b.NewBlock(codegen.EntryBlock, "entry")
	b.SetInsertPoint(codegen.EntryBlock)
	return nil
}

func (b *Backend) NewBlock(blk codegen.Block, name string) {
	for len(b.blocks) <= int(blk) {
		b.blocks = append(b.blocks, &pendingBlock{code: &Chunk{}})
	}
	b.blocks[blk].name = name
}

func (b *Backend) SetInsertPoint(blk codegen.Block) {
	b.flush()
	b.cur = b.blocks[blk]
}

// flush emits the folded run, if any.
func (b *Backend) flush() {
	op, delta := b.runOp, b.runDelta
	b.runOp, b.runDelta = OpNop, 0
	switch op {
	case OpAdd:
		if d := byte(delta); d != 0 {
			b.cur.code.EmitAdd(d)
		}
	case OpMove:
		if d := delta % tape.Size; d != 0 {
			b.cur.code.EmitMove(int16(d))
		}
	}
}

func (b *Backend) fold(op Opcode, delta int) {
	if b.runOp != op {
		b.flush()
		b.runOp = op
	}
	b.runDelta += delta
}

func (b *Backend) Move(delta int) {
	if b.Fold && b.unit.Policy == tape.Wrap {
		b.fold(OpMove, delta)
		return
	}
	b.flush()
	b.cur.code.EmitMove(int16(delta))
}

func (b *Backend) Add(delta int) {
	if b.Fold {
		b.fold(OpAdd, delta)
		return
	}
	b.flush()
	b.cur.code.EmitAdd(byte(delta))
}

func (b *Backend) Output() {
	b.flush()
	b.cur.code.Emit(OpOutput)
}

func (b *Backend) Input() {
	b.flush()
	b.cur.code.Emit(OpInput)
}

func (b *Backend) Jump(target codegen.Block) {
	b.flush()
	at := b.cur.code.EmitJump()
	b.cur.fixups = append(b.cur.fixups, fixup{at, target})
}

func (b *Backend) BranchNonZero(then, els codegen.Block) {
	b.flush()
	t, e := b.cur.code.EmitBranch()
	b.cur.fixups = append(b.cur.fixups, fixup{t, then}, fixup{e, els})
}

func (b *Backend) Finish() error {
	b.flush()
	b.cur.code.Emit(OpHalt)

	c := NewChunk(b.unit.Policy)
	c.TapeSize = uint32(b.unit.TapeSize)
	c.Flags |= ChunkFlagDebug
	if b.Fold {
		c.Flags |= ChunkFlagFolded
	}

	starts := make([]int, len(b.blocks))
	for i, pb := range b.blocks {
		starts[i] = c.CurrentOffset()
		c.Blocks = append(c.Blocks, BlockInfo{Name: pb.name, Offset: uint32(starts[i])})
		c.Code = append(c.Code, pb.code.Code...)
	}
	for i, pb := range b.blocks {
		for _, f := range pb.fixups {
			if int(f.target) >= len(starts) {
				return &codegen.InternalError{Block: pb.name, Msg: fmt.Sprintf("branch to unknown block %d", f.target)}
			}
			c.PatchJumpTo(starts[i]+f.at, starts[f.target])
		}
	}

	if err := c.Verify(); err != nil {
		return &codegen.InternalError{Msg: err.Error()}
	}
	b.chunk = c
	return nil
}

// Compile lowers p into a verified chunk for the given bounds policy.
func Compile(p *compiler.Program, policy tape.BoundsPolicy) (*Chunk, error) {
	b := NewBackend()
	if err := codegen.Lower(p, b, codegen.NewUnit("bytecode", policy)); err != nil {
		return nil, err
	}
	return b.Chunk(), nil
}
