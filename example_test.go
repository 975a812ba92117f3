package direkte_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hupe1980/direkte"
	"github.com/hupe1980/direkte/blobstore"
	"github.com/hupe1980/direkte/column"
	"github.com/hupe1980/direkte/query"
)

var statusMeta = column.Meta{Name: "status", Type: column.Uint8, UpperBound: 2, NRows: 6}

// Example_build demonstrates indexing an in-memory column and querying it.
func Example_build() {
	ctx := context.Background()
	idx, err := direkte.Build(ctx, statusMeta, column.Array[uint8]{0, 1, 2, 1, 0, 2})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(idx.EvaluateRange(ctx, query.Compare(query.OpGreaterEqual, 1)))
	fmt.Println(idx.EvaluateSet(ctx, query.NewSet(0, 2)))
	fmt.Println(idx.EstimateRange(ctx, query.Equal(1)))
	// Output:
	// 011101
	// 101011
	// 2
}

// Example_writeAndOpen demonstrates persisting an index and planning with
// the offset table of the file.
func Example_writeAndOpen() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "direkte-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	idx, _ := direkte.Build(ctx, statusMeta, column.Array[uint8]{0, 1, 2, 1, 0, 2})
	path := filepath.Join(dir, "status.idx")
	if err := idx.Write(ctx, path); err != nil {
		log.Fatal(err)
	}

	idx, err = direkte.Open(ctx, statusMeta, path)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()

	fmt.Println(idx.Offsets())
	fmt.Println(idx.EstimateCost(query.Compare(query.OpGreaterEqual, 1)))
	fmt.Println(idx.Bitmap(ctx, 2))
	// Output:
	// [32 40 48 56]
	// 8
	// 001001
}

// Example_append demonstrates growing an index with new rows and renaming
// its keys.
func Example_append() {
	ctx := context.Background()
	idx, _ := direkte.Build(ctx, statusMeta, column.Array[uint8]{0, 1, 2, 1, 0, 2})

	if err := idx.AppendRows(ctx, column.Array[uint8]{3, 0, 3, 0}, nil); err != nil {
		log.Fatal(err)
	}
	fmt.Println(idx.NRows(), idx.K())
	fmt.Println(idx.Bitmap(ctx, 0))

	if err := idx.RemapKeys(ctx, []uint32{1, 0, 3, 2}); err != nil {
		log.Fatal(err)
	}
	fmt.Println(idx.Bitmap(ctx, 1))
	// Output:
	// 10 4
	// 1000100101
	// 1000100101
}

// Example_publish demonstrates shipping an index through a blob store.
func Example_publish() {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "direkte-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := blobstore.NewMemoryStore()
	idx, _ := direkte.Build(ctx, statusMeta, column.Array[uint8]{0, 1, 2, 1, 0, 2})
	if err := idx.Publish(ctx, store, "status.idx"); err != nil {
		log.Fatal(err)
	}

	idx, err = direkte.OpenBlob(ctx, store, "status.idx", filepath.Join(dir, "status.idx"), statusMeta)
	if err != nil {
		log.Fatal(err)
	}
	defer idx.Close()
	fmt.Println(idx.Bitmap(ctx, 1))
	// Output: 010100
}

// ExampleCode demonstrates mapping errors to status codes.
func ExampleCode() {
	ctx := context.Background()
	idx, _ := direkte.Build(ctx, statusMeta, column.Array[uint8]{0, 1, 2, 1, 0, 2})
	err := idx.RemapKeys(ctx, []uint32{0, 0, 1})
	fmt.Println(direkte.Code(err))
	// Output: -4
}
