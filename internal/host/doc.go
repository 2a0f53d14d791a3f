// Package host is the seam between the synchronization substrate and the
// simulation that calls into it.
//
// Host routines are registered by qualified "Type:Method" name, either as Go
// bodies or as instruction programs run by a small stack interpreter. The
// registry provides the two collaborator services patch application needs:
//
//   - Instrumentation: Install attaches before/after hooks that run on every
//     future invocation of an operation. There is no uninstall.
//   - Instruction access: Instructions and ReplaceInstructions expose a program
//     operation's instruction stream to the rewriter.
//
// Routines draw randomness and mint identifiers through their *Call. A draw
// made while a stream key is pushed (by an rng_wrap hook) goes through the
// engine gateway; any other draw uses the peer-local generator.
package host
