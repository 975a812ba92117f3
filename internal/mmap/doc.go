// Package mmap maps index and blob files read-only into memory.
//
// Bitmaps are decoded in place from the mapping, so only the pages a query
// touches are ever read from disk. Prefetch asks the kernel to read a byte
// range ahead of a bulk decode.
//
// On Unix the package uses mmap(2) and madvise(2). On Windows it uses
// CreateFileMapping and MapViewOfFile, and advice is ignored.
//
// Slices obtained from a Mapping must not be used after Close.
package mmap
