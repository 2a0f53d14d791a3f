// Package patch installs descriptors onto a host.
//
// Apply is all-or-nothing. Every descriptor is checked against the live host
// before any hook is installed, and a single unresolved target aborts the load:
// running without a known fix would let peers drift apart silently.
package patch
