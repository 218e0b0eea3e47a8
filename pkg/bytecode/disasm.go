package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the chunk.
func (c *Chunk) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *Chunk) DisassembleWithName(name string) string {
	var sb strings.Builder

	if name != "" {
		fmt.Fprintf(&sb, "; === %s ===\n", name)
	}
	fmt.Fprintf(&sb, "; bfc bytecode v%d\n", c.Version)
	fmt.Fprintf(&sb, "; Flags: 0x%04X", c.Flags)
	if c.Flags&ChunkFlagDebug != 0 {
		sb.WriteString(" [DEBUG]")
	}
	if c.Flags&ChunkFlagFolded != 0 {
		sb.WriteString(" [FOLDED]")
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "; Policy: %s, tape: %d cells\n\n", c.Policy, c.TapeSize)

	sb.WriteString("; Code:\n")
	for offset := 0; offset < len(c.Code); {
		if label, ok := c.BlockAt(offset); ok {
			fmt.Fprintf(&sb, "%s:\n", label)
		}
		line, n := c.disassembleInstruction(offset)
		fmt.Fprintf(&sb, "%04X  %s\n", offset, line)
		offset += n
	}
	return sb.String()
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (c *Chunk) disassembleInstruction(offset int) (string, int) {
	if offset >= len(c.Code) {
		return "<end of code>", 0
	}

	op := Opcode(c.Code[offset])
	n := op.InstructionLen()
	if offset+n > len(c.Code) {
		return fmt.Sprintf("%s <truncated>", op), len(c.Code) - offset
	}

	switch op {
	case OpMove:
		return fmt.Sprintf("MOVE %+d", int16(binary.BigEndian.Uint16(c.Code[offset+1:]))), n

	case OpAdd:
		delta := c.Code[offset+1]
		if delta > 127 {
			return fmt.Sprintf("ADD %d ; -%d", delta, 256-int(delta)), n
		}
		return fmt.Sprintf("ADD %d", delta), n

	case OpJump:
		return "JUMP " + c.target(offset+1), n

	case OpBranchNonZero:
		return fmt.Sprintf("BRANCH_NZ %s, %s", c.target(offset+1), c.target(offset+5)), n

	default:
		// unknown opcodes have no operands, so they decode one byte at a time
		return op.String(), n
	}
}

func (c *Chunk) target(at int) string {
	t := int(binary.BigEndian.Uint32(c.Code[at:]))
	if label, ok := c.BlockAt(t); ok {
		return fmt.Sprintf("%04X (%s)", t, label)
	}
	return fmt.Sprintf("%04X", t)
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (c *Chunk) DisassembleInstruction(offset int) string {
	line, _ := c.disassembleInstruction(offset)
	return line
}

// InstructionCount returns the number of instructions in the chunk.
func (c *Chunk) InstructionCount() int {
	count := 0
	for offset := 0; offset < len(c.Code); count++ {
		offset += Opcode(c.Code[offset]).InstructionLen()
	}
	return count
}
