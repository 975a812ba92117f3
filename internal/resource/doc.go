// Package resource bounds what the indexes behind one file manager may
// consume: heap bytes of loaded files, concurrent bitmap decoders and the
// read rate of heap loads.
//
// Heap reservations never block. A manager that cannot reserve room for a
// heap copy maps the file instead:
//
//	res, err := budget.Reserve(size)
//	if errors.Is(err, resource.ErrOverBudget) {
//	    // map the file
//	}
//	defer res.Release()
//
// A nil *Budget grants everything.
package resource
