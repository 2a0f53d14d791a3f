// Package ir provides the shared record types for the compatibility substrate.
//
// This package contains type definitions and canonical encoding only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Patch descriptors are plain data, loaded once and never mutated
//   - Journal events carry logical positions (seq, tick, stream pos), never
//     wall-clock timestamps
//   - Checksums and stream seeds are computed over RFC 8785 canonical JSON
//   - All JSON tags use snake_case
package ir
