// Package indexfile reads and writes the on-disk container of a direct
// bitmap index.
//
// # Layout
//
// All integers are little-endian.
//
//	offset  size        content
//	0       5           "#IBIS"
//	5       1           index type (0x0B)
//	6       1           offset width, 4 or 8
//	7       1           0
//	8       4           nrows
//	12      4           K, the number of bitmaps
//	16      ow*(K+1)    absolute offsets of the bitmaps
//	...                 serialized bitmaps, back to back
//
// offsets[v+1]-offsets[v] is the serialized size of bitmap v, zero for an
// absent or empty one, and offsets[K] is the file length.
//
// The offset width is 4 whenever the whole file stays strictly below 2^31
// bytes. Readers accept both widths.
package indexfile
