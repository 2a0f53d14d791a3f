package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReplicationState_Invariant(t *testing.T) {
	var s ReplicationState

	assert.True(t, IsNoSession(s.enter()), "no command without a session")
	assert.False(t, s.IsInsideReplicatedCommand())

	s.begin()
	assert.NoError(t, s.enter())
	assert.True(t, s.IsInsideReplicatedCommand())

	// Session ends mid-command: depth resets with it.
	s.end()
	assert.False(t, s.IsReplicatedSession())
	assert.False(t, s.IsInsideReplicatedCommand())

	s.exit()
	s.begin()
	assert.False(t, s.IsInsideReplicatedCommand(), "stale exit must not underflow")
}
