// Package testutil provides testing utilities for direkte.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded RNG, random column and mask generators, and a
// brute-force oracle for checking query results.
//
// # Random Columns
//
//	rng := testutil.NewRNG(seed)
//	values := rng.UniformColumn(10_000, 64)   // keys in [0, 64)
//	skewed := rng.ZipfColumn(10_000, 64, 1.2) // few hot keys
//	mask := rng.Mask(10_000, 0.9)             // ~90% non-null rows
//
// # Ground Truth
//
//	rows := testutil.MatchingRows(values, mask, func(v uint32) bool { return v < 8 })
package testutil
