// Package engine implements the lockstep synchronization substrate.
//
// The substrate makes a single-player simulation safe to drive from a lockstep
// multiplayer engine. It answers whether code runs inside a replicated command,
// serves randomness and identifiers from synchronized state when it does, and
// defers effectful work that arrives outside replicated execution until the next
// tick boundary.
//
// ARCHITECTURE:
//
// Explicit Synchronization Context:
// All process-wide state (replication flags, keyed streams, pending sets,
// identifier clock) lives on one *Context owned by the simulation driver.
// Streams and pending sets exist only between StartSession and EndSession, so
// nothing leaks from one session into the next.
//
// Single Simulation Goroutine:
// The host simulation, the replicated-command executor and the substrate run
// on one goroutine per peer. No call blocks or yields. There are no locks on
// the synchronized path; ordering comes from the replicated command order,
// which the transport guarantees to be identical on every peer.
//
// Effect Gateway:
// Host code never reaches for a global generator. It calls Gateway methods
// (Chance, Range, IntRange, MTBEventOccurs, MintID). Production wires the
// *Context, tests wire a scripted gateway.
//
// CRITICAL PATTERNS:
//
// Keyed Streams:
// Draw n of stream K is a pure function of (session seed, K, n). Declaration
// order and wall-clock interleaving never influence a value.
//
// Deferred Minting:
// Identifiers are minted only inside replicated execution. Work that would mint
// outside it is suppressed and re-issued by TickBoundary, which every peer runs
// at the same logical point.
//
// Fail Loud:
// Contract violations (unknown stream, unsynced mint) terminate the session.
// A silently wrong value is the exact desync this package exists to prevent.
package engine
