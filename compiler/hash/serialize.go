package hash

import (
	"encoding/binary"
	"fmt"

	"github.com/chazu/bfc/compiler"
)

// ---------------------------------------------------------------------------
// Deterministic binary serialization of an operator tree.
//
// Encoding conventions:
//   - First byte: HashVersion (0x01)
//   - Sequences: uint32 big-endian operator count + operators
//   - Leaves: a single tag byte
//   - Loops: TagLoop + body sequence
//
// Non-command bytes never reach the tree, so programs differing only in
// commentary serialize identically.
// ---------------------------------------------------------------------------

// Serialize produces a deterministic byte serialization of p.
// The returned bytes are suitable for hashing with SHA-256.
func Serialize(p *compiler.Program) []byte {
	s := &serializer{buf: make([]byte, 0, 2*p.Len()+16)}
	s.writeByte(HashVersion)
	s.writeByte(TagProgram)
	s.serializeOps(p.Ops)
	return s.buf
}

type serializer struct {
	buf []byte
}

func (s *serializer) writeByte(b byte) {
	s.buf = append(s.buf, b)
}

func (s *serializer) writeUint32(v uint32) {
	s.buf = binary.BigEndian.AppendUint32(s.buf, v)
}

func (s *serializer) serializeOps(ops []compiler.Op) {
	s.writeUint32(uint32(len(ops)))
	for _, op := range ops {
		s.serializeOp(op)
	}
}

func (s *serializer) serializeOp(op compiler.Op) {
	switch o := op.(type) {
	case compiler.MoveRight:
		s.writeByte(TagMoveRight)
	case compiler.MoveLeft:
		s.writeByte(TagMoveLeft)
	case compiler.Increment:
		s.writeByte(TagIncrement)
	case compiler.Decrement:
		s.writeByte(TagDecrement)
	case compiler.Output:
		s.writeByte(TagOutput)
	case compiler.Input:
		s.writeByte(TagInput)
	case *compiler.Loop:
		s.writeByte(TagLoop)
		s.serializeOps(o.Body)
	default:
		panic(fmt.Sprintf("hash: unknown operator %T", op))
	}
}
