package hash

// ---------------------------------------------------------------------------
// Frozen tag bytes for the hashing serialization format.
//
// IMPORTANT: These tags are FROZEN. Once assigned, a tag byte must never
// change meaning. Adding new tags is fine; changing existing ones breaks
// all previously computed content hashes.
// ---------------------------------------------------------------------------

// HashVersion is the version prefix for the serialization format.
// Bumping this invalidates all existing content hashes.
const HashVersion byte = 1

// Node tags.
const (
	TagReservedZero byte = 0x00

	// Literal values
	TagIntLiteral    byte = 0x01
	TagStringLiteral byte = 0x02
	TagBoolLiteral   byte = 0x03
	TagUnitLiteral   byte = 0x04

	// Variable references
	TagBoundRef byte = 0x05 // de Bruijn: frame distance + position
	TagFreeRef  byte = 0x06 // unresolved name

	// Operators
	TagUnary  byte = 0x10
	TagBinary byte = 0x11

	// Binding and control flow
	TagLet  byte = 0x12
	TagIf   byte = 0x13
	TagFunc byte = 0x14
	TagFunk byte = 0x15
	TagCall byte = 0x16

	// Optional child markers
	TagAbsent  byte = 0x20
	TagPresent byte = 0x21
)

// allTags lists every defined tag for uniqueness verification in tests.
var allTags = []byte{
	TagReservedZero,
	TagIntLiteral, TagStringLiteral, TagBoolLiteral, TagUnitLiteral,
	TagBoundRef, TagFreeRef,
	TagUnary, TagBinary,
	TagLet, TagIf, TagFunc, TagFunk, TagCall,
	TagAbsent, TagPresent,
}
