// Package hash computes content hashes of operator trees.
package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/chazu/bfc/compiler"
)

// HashProgram computes the SHA-256 content hash of a program.
//
// The hash is computed over a deterministic serialization of the operator
// tree. Two sources with the same commands in the same nesting produce the
// same hash regardless of the commentary between them.
func HashProgram(p *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(p))
}

// Hex returns the hash as a lowercase hex string.
func Hex(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
