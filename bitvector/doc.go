// Package bitvector implements a word-aligned hybrid (WAH) compressed bitmap.
//
// # Encoding
//
// A Bitmap is a sequence of 32-bit words followed by an active word that
// holds up to 30 bits not yet packed. Each word encodes one or more groups
// of 31 bits:
//
//	literal:  0xxxxxxx xxxxxxxx xxxxxxxx xxxxxxxx   31 payload bits
//	fill:     1Vnnnnnn nnnnnnnn nnnnnnnn nnnnnnnn   n groups of 31 bits equal to V
//
// The first bit of a group is the most significant payload bit (bit 30).
// Packing is canonical: a single uniform group stays a literal, two or more
// consecutive uniform groups with the same value collapse into fills. Two
// bitmaps built from the same sequence of appends therefore serialize to the
// same bytes.
//
// # Ordering
//
// Bitmaps are append-only. SetBit accepts positions at or beyond the current
// size and returns ErrOutOfOrder otherwise. Binary operations require equal
// logical sizes and return ErrLengthMismatch otherwise.
//
// # Serialization
//
//	[words ...][active value (if active bits > 0)][active bit count]
//
// All words are little-endian uint32. View decodes a serialized bitmap in
// place; the resulting Bitmap aliases the buffer and copies it on the first
// mutation.
package bitvector
