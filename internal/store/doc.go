// Package store provides the SQLite-backed desync journal.
//
// The journal is append-only and holds, per session:
//   - Sessions: peer name, agreed seed and the hash of the applied patch set
//   - Events: every replicated event (command, draw, mint, reissue, skip, tick)
//   - Tick checksums: a digest of each tick's event list plus the compressed list
//
// Two peers that stayed in sync write identical checksums for every tick.
// CompareSessions finds the first tick where they did not.
//
// # Ordering
//
// All queries order by seq or tick ASC. Wall-clock time is never stored, so a
// journal written by a replayed session is byte-identical to the original.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Checksums are computed by ir.TickChecksum over RFC 8785 canonical JSON.
package store
