// Package harness runs lockstep scenarios over the reference colony.
//
// A scenario starts N peers from the same seed, each with its own
// synchronization context, its own patched colony and its own local random
// generators. Replicated steps run on every peer; local steps run on the peers
// they name. Each peer's replicated events are collected as a trace and hashed
// per tick, so two peers that stayed in lockstep produce identical traces and
// checksums.
//
// Scenarios are YAML:
//
//	name: ritual_duties
//	seed: 7
//	peers: 2
//	patches: builtin
//	steps:
//	  - local: update_duties
//	    args: [lord-1]
//	  - command: drop_inventory
//	  - tick: 1
//	assertions:
//	  - type: deterministic
//	  - type: trace_count
//	    kind: reissue
//	    count: 1
//
// Golden files under testdata/golden hold peer 0's trace and final state.
package harness
