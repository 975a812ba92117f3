// Package conv provides checked integer conversions for values read from
// disk (file sizes, row counts, offsets) before they are narrowed.
package conv
