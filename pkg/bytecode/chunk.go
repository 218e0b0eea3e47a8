package bytecode

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/bfc/pkg/tape"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// Magic bytes for bytecode files: "BFBC"
var BytecodeMagic = []byte{'B', 'F', 'B', 'C'}

// ChunkFlags contains compilation flags for a chunk.
type ChunkFlags uint16

const (
	// ChunkFlagDebug indicates the block table carries names.
	ChunkFlagDebug ChunkFlags = 1 << 0

	// ChunkFlagFolded indicates runs of Add (and of Move under wrap) were
	// folded into single instructions.
	ChunkFlagFolded ChunkFlags = 1 << 1
)

// BlockInfo maps a basic block to its first instruction.
type BlockInfo struct {
	Name   string `cbor:"1,keyasint"`
	Offset uint32 `cbor:"2,keyasint"`
}

// Chunk is a compiled program. It is the unit that is cached, serialized
// and executed by the VM.
type Chunk struct {
	// Header
	Version  uint16            `cbor:"1,keyasint"`
	Flags    ChunkFlags        `cbor:"2,keyasint"`
	Policy   tape.BoundsPolicy `cbor:"3,keyasint"`
	TapeSize uint32            `cbor:"4,keyasint"`

	// Code section
	Code []byte `cbor:"5,keyasint"`

	// Block table, in layout order
	Blocks []BlockInfo `cbor:"6,keyasint,omitempty"`
}

// NewChunk creates a new empty chunk with the current version.
func NewChunk(policy tape.BoundsPolicy) *Chunk {
	return &Chunk{
		Version:  BytecodeVersion,
		Policy:   policy,
		TapeSize: tape.Size,
		Code:     make([]byte, 0, 64),
	}
}

// Emit appends a single-byte opcode to the code section.
func (c *Chunk) Emit(op Opcode) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	return offset
}

// EmitWithOperand appends an opcode with operand bytes.
func (c *Chunk) EmitWithOperand(op Opcode, operands ...byte) int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))
	c.Code = append(c.Code, operands...)
	return offset
}

// EmitMove emits a cursor move.
func (c *Chunk) EmitMove(delta int16) int {
	return c.EmitWithOperand(OpMove, byte(uint16(delta)>>8), byte(delta))
}

// EmitAdd emits a cell update. delta is taken modulo 256.
func (c *Chunk) EmitAdd(delta byte) int {
	return c.EmitWithOperand(OpAdd, delta)
}

// EmitJump emits a jump instruction with a placeholder target.
// Returns the offset of the placeholder for later patching.
func (c *Chunk) EmitJump() int {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(OpJump), 0xFF, 0xFF, 0xFF, 0xFF)
	return offset + 1
}

// EmitBranch emits a two-way branch with placeholder targets. Returns the
// offsets of the then and else placeholders.
func (c *Chunk) EmitBranch() (then, els int) {
	offset := len(c.Code)
	c.Code = append(c.Code, byte(OpBranchNonZero),
		0xFF, 0xFF, 0xFF, 0xFF,
		0xFF, 0xFF, 0xFF, 0xFF)
	return offset + 1, offset + 5
}

// PatchJumpTo patches a placeholder to an absolute code offset.
func (c *Chunk) PatchJumpTo(placeholderOffset int, target int) {
	binary.BigEndian.PutUint32(c.Code[placeholderOffset:], uint32(target))
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// BlockAt returns the name of the block starting at offset, if any.
func (c *Chunk) BlockAt(offset int) (string, bool) {
	for _, b := range c.Blocks {
		if int(b.Offset) == offset {
			return b.Name, b.Name != ""
		}
	}
	return "", false
}

// Verify checks that the code decodes into whole instructions, that every
// branch target is the start of an instruction, and that execution cannot
// run off the end of the code.
func (c *Chunk) Verify() error {
	if c.TapeSize != tape.Size {
		return fmt.Errorf("unsupported tape size %d", c.TapeSize)
	}
	if _, ok := policyOK[c.Policy]; !ok {
		return fmt.Errorf("unknown bounds policy %d", c.Policy)
	}
	starts := make(map[int]bool)
	var targets []int
	last := OpHalt
	for offset := 0; offset < len(c.Code); {
		op := Opcode(c.Code[offset])
		if !op.Valid() {
			return fmt.Errorf("invalid opcode 0x%02X at %04X", byte(op), offset)
		}
		n := op.InstructionLen()
		if offset+n > len(c.Code) {
			return fmt.Errorf("truncated %s at %04X", op, offset)
		}
		starts[offset] = true
		switch op {
		case OpJump:
			targets = append(targets, int(binary.BigEndian.Uint32(c.Code[offset+1:])))
		case OpBranchNonZero:
			targets = append(targets,
				int(binary.BigEndian.Uint32(c.Code[offset+1:])),
				int(binary.BigEndian.Uint32(c.Code[offset+5:])))
		}
		last = op
		offset += n
	}
	if len(c.Code) == 0 || !last.IsTerminator() {
		return fmt.Errorf("code does not end in a terminator")
	}
	for _, t := range targets {
		if !starts[t] {
			return fmt.Errorf("branch target %04X is not an instruction boundary", t)
		}
	}
	return nil
}

var policyOK = map[tape.BoundsPolicy]struct{}{
	tape.Checked: {},
	tape.Wrap:    {},
	tape.Clamp:   {},
}

// Serialize encodes the chunk to bytes for storage/transport.
// Format:
//
//	[magic:4] [version:2] [flags:2] [policy:1] [tape_size:4]
//	[code_len:4] [code:...]
//	[block_count:4] [blocks:...]
//
// Each block is [offset:4], followed by [name_len:1] [name:...] when
// ChunkFlagDebug is set.
func (c *Chunk) Serialize() ([]byte, error) {
	buf := make([]byte, 0, 19+len(c.Code)+len(c.Blocks)*16)

	buf = append(buf, BytecodeMagic...)
	buf = binary.BigEndian.AppendUint16(buf, c.Version)
	buf = binary.BigEndian.AppendUint16(buf, uint16(c.Flags))
	buf = append(buf, byte(c.Policy))
	buf = binary.BigEndian.AppendUint32(buf, c.TapeSize)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Code)))
	buf = append(buf, c.Code...)

	buf = binary.BigEndian.AppendUint32(buf, uint32(len(c.Blocks)))
	for _, b := range c.Blocks {
		buf = binary.BigEndian.AppendUint32(buf, b.Offset)
		if c.Flags&ChunkFlagDebug != 0 {
			if len(b.Name) > 255 {
				return nil, fmt.Errorf("block name %q too long", b.Name)
			}
			buf = append(buf, byte(len(b.Name)))
			buf = append(buf, b.Name...)
		}
	}
	return buf, nil
}

// IsChunk reports whether data starts with a serialized chunk header: the
// magic followed by a supported version.
func IsChunk(data []byte) bool {
	if len(data) < 6 || string(data[0:4]) != string(BytecodeMagic) {
		return false
	}
	v := binary.BigEndian.Uint16(data[4:6])
	return v >= 1 && v <= BytecodeVersion
}

// Deserialize decodes a chunk from bytes.
func Deserialize(data []byte) (*Chunk, error) {
	const headerLen = 13
	if len(data) < headerLen {
		return nil, fmt.Errorf("bytecode too short: need at least %d bytes, got %d", headerLen, len(data))
	}
	if string(data[0:4]) != string(BytecodeMagic) {
		return nil, fmt.Errorf("invalid bytecode magic: expected %q, got %q", BytecodeMagic, data[0:4])
	}

	c := &Chunk{
		Version:  binary.BigEndian.Uint16(data[4:6]),
		Flags:    ChunkFlags(binary.BigEndian.Uint16(data[6:8])),
		Policy:   tape.BoundsPolicy(data[8]),
		TapeSize: binary.BigEndian.Uint32(data[9:13]),
	}
	if c.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode version %d is newer than supported version %d", c.Version, BytecodeVersion)
	}
	pos := headerLen

	if pos+4 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading code length at pos %d", pos)
	}
	codeLen := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	if codeLen > len(data)-pos {
		return nil, fmt.Errorf("unexpected end of bytecode reading code section: need %d bytes at pos %d", codeLen, pos)
	}
	c.Code = make([]byte, codeLen)
	copy(c.Code, data[pos:pos+codeLen])
	pos += codeLen

	if pos+4 > len(data) {
		return nil, fmt.Errorf("unexpected end of bytecode reading block count")
	}
	blockCount := int(binary.BigEndian.Uint32(data[pos:]))
	pos += 4
	// each block needs at least its offset
	if blockCount > (len(data)-pos)/4 {
		return nil, fmt.Errorf("unexpected end of bytecode: %d blocks declared", blockCount)
	}

	c.Blocks = make([]BlockInfo, blockCount)
	for i := range c.Blocks {
		if pos+4 > len(data) {
			return nil, fmt.Errorf("unexpected end of bytecode reading block %d offset", i)
		}
		c.Blocks[i].Offset = binary.BigEndian.Uint32(data[pos:])
		pos += 4
		if c.Flags&ChunkFlagDebug == 0 {
			continue
		}
		if pos >= len(data) {
			return nil, fmt.Errorf("unexpected end of bytecode reading block %d name length", i)
		}
		nameLen := int(data[pos])
		pos++
		if pos+nameLen > len(data) {
			return nil, fmt.Errorf("unexpected end of bytecode reading block %d name", i)
		}
		c.Blocks[i].Name = string(data[pos : pos+nameLen])
		pos += nameLen
	}

	if pos != len(data) {
		return nil, fmt.Errorf("%d trailing bytes after bytecode", len(data)-pos)
	}
	return c, nil
}
