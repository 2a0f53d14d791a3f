package ir

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for derived values.
// Version suffix enables future algorithm migration.
const (
	DomainStream = "mpcompat/stream/v1"
	DomainTick   = "mpcompat/tick/v1"
	DomainPatch  = "mpcompat/patch/v1"
)

// sumWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func sumWithDomain(domain string, data []byte) [sha256.Size]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)

	var out [sha256.Size]byte
	copy(out[:], h.Sum(nil))
	return out
}

// StreamSeed derives the 64-bit seed of a keyed stream from the session seed.
// Every peer that shares the session seed derives the same seed for the same key,
// independent of the order in which keys were declared.
func StreamSeed(sessionSeed int64, key string) (uint64, error) {
	canonical, err := MarshalCanonical(map[string]any{
		"key":  key,
		"seed": sessionSeed,
	})
	if err != nil {
		return 0, fmt.Errorf("StreamSeed: failed to marshal: %w", err)
	}

	sum := sumWithDomain(DomainStream, canonical)
	return binary.BigEndian.Uint64(sum[:8]), nil
}

// TickChecksum hashes the replicated events of one tick.
// Two peers with equal checksums for a tick executed identical replicated work.
func TickChecksum(tick int64, events []Event) (string, error) {
	list := make([]any, len(events))
	for i, ev := range events {
		list[i] = ev.Canonical()
	}

	canonical, err := MarshalCanonical(map[string]any{
		"tick":   tick,
		"events": list,
	})
	if err != nil {
		return "", fmt.Errorf("TickChecksum: failed to marshal: %w", err)
	}

	sum := sumWithDomain(DomainTick, canonical)
	return hex.EncodeToString(sum[:]), nil
}

// PatchSetHash digests a descriptor set. Peers journal it with each session so
// a desync caused by mismatched patch sets is told apart from a real one.
// Descriptor order is significant: it is the install order.
func PatchSetHash(descs []PatchDescriptor) (string, error) {
	list := make([]any, len(descs))
	for i, d := range descs {
		m := map[string]any{
			"target": d.Target,
			"shim":   string(d.Shim),
		}
		if d.Stream != "" {
			m["stream"] = d.Stream
		}
		if d.Rewrite != nil {
			m["rewrite"] = map[string]any{
				"call":     d.Rewrite.Call,
				"snapshot": d.Rewrite.Snapshot,
			}
		}
		list[i] = m
	}

	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("PatchSetHash: failed to marshal: %w", err)
	}

	sum := sumWithDomain(DomainPatch, canonical)
	return hex.EncodeToString(sum[:]), nil
}

// MustStreamSeed is like StreamSeed but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustStreamSeed(sessionSeed int64, key string) uint64 {
	seed, err := StreamSeed(sessionSeed, key)
	if err != nil {
		panic(err)
	}
	return seed
}
