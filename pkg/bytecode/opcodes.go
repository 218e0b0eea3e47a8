package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Tape (0x10-0x1F)
	// ========================================================================

	OpNop  Opcode = 0x00 // No operation
	OpMove Opcode = 0x10 // Move the cursor: OpMove <delta:i16>
	OpAdd  Opcode = 0x11 // Add to the current cell: OpAdd <delta:u8>

	// ========================================================================
	// I/O (0x20-0x2F)
	// ========================================================================

	OpOutput Opcode = 0x20 // Write the current cell
	OpInput  Opcode = 0x21 // Read one byte into the current cell

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJump          Opcode = 0x30 // Jump: OpJump <target:u32>
	OpBranchNonZero Opcode = 0x31 // Branch on cell: OpBranchNonZero <then:u32> <else:u32>

	OpHalt Opcode = 0xF0 // Stop execution
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name       string // Human-readable name
	OperandLen int    // Number of operand bytes following the opcode
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpNop:           {"NOP", 0},
	OpMove:          {"MOVE", 2},
	OpAdd:           {"ADD", 1},
	OpOutput:        {"OUTPUT", 0},
	OpInput:         {"INPUT", 0},
	OpJump:          {"JUMP", 4},
	OpBranchNonZero: {"BRANCH_NZ", 8},
	OpHalt:          {"HALT", 0},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns an OpcodeInfo named "UNKNOWN(..)" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode transfers control.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpBranchNonZero
}

// IsTerminator returns true if this opcode ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op.IsJump() || op == OpHalt
}
