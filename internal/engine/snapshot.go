package engine

import (
	"iter"
	"slices"
)

// Snapshot materializes seq into a fixed slice before the caller iterates it.
//
// Routines that walk a live, mutable ordered structure (a lister of haulable
// things, a pending job list) must not re-read it while replicated and local
// paths may mutate it mid-iteration. Taking the snapshot at the point of use
// fixes the order for the rest of the routine.
func Snapshot[T any](seq iter.Seq[T]) []T {
	out := slices.Collect(seq)
	if out == nil {
		out = []T{}
	}
	return out
}

// SnapshotSlice returns an independent copy of s.
// A nil input yields an empty, non-nil slice.
func SnapshotSlice[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)
	return out
}
