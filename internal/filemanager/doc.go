// Package filemanager owns the file-backed storages that indexes read from.
//
// A [Storage] holds the bytes of one file, memory-mapped for large files and
// copied onto the heap for small or compressed ones. Storages are shared by
// path and reference counted: [Manager.GetFile] hands out a reference, and
// [Manager.Flush] unlinks the name so that the next GetFile loads the file
// again while earlier readers keep a stable snapshot until they release it.
//
// Heap copies are charged to an optional resource controller; when its
// memory budget is exhausted, uncompressed files are mapped instead.
package filemanager
