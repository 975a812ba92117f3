// Package direkte provides a direct equality bitmap index for columns of
// small non-negative integers.
//
// For a column whose values lie in [0, K) over N rows, the index keeps one
// WAH compressed bitmap per value: bit i of bitmap v is set when row i holds
// v. Equality, range and IN predicates are answered by OR-ing the bitmaps
// of the matching keys.
//
// # Quick Start
//
// Build from an in-memory column and query:
//
//	ctx := context.Background()
//	meta := column.Meta{Name: "status", Type: column.Uint8, UpperBound: 2, NRows: 6}
//	idx, _ := direkte.Build(ctx, meta, column.Array[uint8]{0, 1, 2, 1, 0, 2})
//	rows := idx.EvaluateRange(ctx, query.Compare(query.OpGreaterEqual, 1))
//	fmt.Println(rows.Count()) // 4
//
// Persist and re-open:
//
//	_ = idx.Write(ctx, "status.idx")
//	idx, _ = direkte.Open(ctx, meta, "status.idx")
//	defer idx.Close()
//
// An index opened from a file aliases the file storage, which is memory
// mapped and shared between the indexes of a FileManager. Bitmaps are
// decoded on first use, or all at once with WithPreload.
//
// Publish to object storage:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/"))
//	_ = idx.Publish(ctx, store, "status.idx")
//	idx, _ = direkte.OpenBlob(ctx, store, "status.idx", "/cache/status.idx", meta)
//
// # Planning
//
// EstimateRange counts the matching rows exactly. EstimateCost returns the
// number of index bytes a predicate touches; a range costs the smaller of
// the bitmaps inside and outside its key interval.
//
// # Errors
//
// Every error returned by this package matches one of ErrBadInput, ErrIO,
// ErrBadFormat, ErrConflict or ErrInvariant; Code maps them to the
// negative status codes 0 through -5. Queries do not fail.
package direkte
