package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
)

var _ engine.SessionIDGenerator = (*PeerSessionGenerator)(nil)

func TestPeerSessionGenerator_Sequence(t *testing.T) {
	gen := NewPeerSessionGenerator("peer-1")

	assert.Equal(t, "peer-1/s1", gen.Generate())
	assert.Equal(t, "peer-1/s2", gen.Generate())
}

func TestPeerSessionGenerator_EmptyPeerDefault(t *testing.T) {
	gen := NewPeerSessionGenerator("")
	assert.Equal(t, "peer/s1", gen.Generate())
}

func TestPeerSessionGenerator_Independent(t *testing.T) {
	a := NewPeerSessionGenerator("a")
	b := NewPeerSessionGenerator("b")

	a.Generate()
	assert.Equal(t, "b/s1", b.Generate(), "peers do not share counters")
}
