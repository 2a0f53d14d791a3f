// Package rewrite implements the instruction-stream rewriter.
//
// Some divergence comes from ordering, not randomness: a routine consumes a
// live, mutable ordered structure returned by a call, and replicated and local
// paths mutate that structure at different moments. The rewriter locates the
// consuming call in the routine's instruction sequence and inserts, directly
// after it, a constructor that copies the result into a fixed sequence.
//
// Failing to find the call site is fatal. A routine that silently keeps
// iterating the live structure reintroduces the desync the rewrite exists to
// prevent.
package rewrite
