package testutil

import (
	"fmt"
	"sync"
)

// PeerSessionGenerator names sessions "<peer>/s<n>".
//
// Each simulated peer in the lockstep harness gets its own generator, so journal
// rows for peer-0 and peer-1 never collide while staying reproducible across
// runs. Unlike engine.FixedGenerator it never runs out.
//
// Thread-safety: safe for concurrent use via internal mutex.
type PeerSessionGenerator struct {
	mu   sync.Mutex
	peer string
	n    int
}

// NewPeerSessionGenerator creates a generator for one peer.
// If peer is empty, IDs use "peer".
func NewPeerSessionGenerator(peer string) *PeerSessionGenerator {
	if peer == "" {
		peer = "peer"
	}
	return &PeerSessionGenerator{peer: peer}
}

// Generate returns the next session ID.
//
// Implements engine.SessionIDGenerator.
func (g *PeerSessionGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s/s%d", g.peer, g.n)
}
