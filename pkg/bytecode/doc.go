// Package bytecode provides a compact register-free instruction set for
// tape programs and a virtual machine that executes it in-process.
//
// The format is designed for:
//   - Compact representation (1 byte per leaf operator, 5 or 9 per branch)
//   - Fast decoding (single-byte opcodes, fixed-width big-endian operands)
//   - Easy serialization (stored in the sqlite cache, dumped with -emit)
//
// # Architecture Overview
//
//   - Opcodes: move, add, output, input, an unconditional jump, a two-way
//     branch on the current cell, and halt.
//
//   - Chunk: a compiled unit holding code, the bounds policy it was built
//     for and a block table naming each basic block's offset. Chunks encode
//     to the "BFBC" binary format or to canonical CBOR.
//
//   - Backend: a codegen.Backend that receives the lowered block graph and
//     lays each block out contiguously, patching branch targets to absolute
//     code offsets once every block is known. Compile drives it.
//
//   - VM: a dispatch loop over a Chunk against a fresh tape. It reports the
//     same errors as the tree-walking interpreter.
//
// # Folding
//
// Runs of Add inside a block are folded into one instruction, since cell
// arithmetic is exact modulo 256. Runs of Move are folded only under the
// wrap policy: for checked and clamped tapes every single step must be
// observed, or "<>" at cell 0 would stop failing.
package bytecode
