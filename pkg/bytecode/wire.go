package bytecode

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Canonical encoding so that equal chunks always produce equal bytes; the
// cache relies on it.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalChunk serializes a Chunk to CBOR bytes.
func MarshalChunk(c *Chunk) ([]byte, error) {
	return cborEncMode.Marshal(c)
}

// UnmarshalChunk deserializes a Chunk from CBOR bytes.
func UnmarshalChunk(data []byte) (*Chunk, error) {
	var c Chunk
	if err := cbor.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal chunk: %w", err)
	}
	if c.Version > BytecodeVersion {
		return nil, fmt.Errorf("bytecode: chunk version %d is newer than supported version %d", c.Version, BytecodeVersion)
	}
	return &c, nil
}
