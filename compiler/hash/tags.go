package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// every cached artifact keyed by a program hash.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing program hashes.
const HashVersion byte = 1

// Operator tags.
const (
	TagReservedZero byte = 0x00 // version prefix / reserved

	TagMoveRight byte = 0x01
	TagMoveLeft  byte = 0x02
	TagIncrement byte = 0x03
	TagDecrement byte = 0x04
	TagOutput    byte = 0x05
	TagInput     byte = 0x06

	// TagLoop is followed by the body length and the body.
	TagLoop byte = 0x10

	// TagProgram opens the top-level sequence.
	TagProgram byte = 0x20
)
