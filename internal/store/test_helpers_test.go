package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSession writes a session record and returns its ID.
func createTestSession(t *testing.T, s *Store, id string) string {
	t.Helper()
	require.NoError(t, s.WriteSession(context.Background(), Session{ID: id, Peer: "peer", Seed: 42}))
	return id
}

// tickEvents builds the events of one tick: a command, one draw per value and
// the closing tick event. seq continues from start.
func tickEvents(tick, start int64, values ...int64) []ir.Event {
	seq := start
	next := func() int64 {
		seq++
		return seq
	}

	events := []ir.Event{{Seq: next(), Tick: tick, Kind: ir.EventCommand, Key: "melt_ice"}}
	for i, v := range values {
		events = append(events, ir.Event{
			Seq:   next(),
			Tick:  tick,
			Kind:  ir.EventDraw,
			Key:   "Verse.FreezeManager:DoIceMelting",
			Pos:   int64(i + 1),
			Value: v,
		})
	}
	return append(events, ir.Event{Seq: next(), Tick: tick, Kind: ir.EventTick})
}
