package engine

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// pawn is a test subject whose validity can be toggled.
type pawn struct {
	id    string
	alive bool
}

func (p *pawn) SubjectID() string { return p.id }
func (p *pawn) Valid() bool       { return p.alive }

// eventLog collects replicated events.
type eventLog struct {
	events []ir.Event
}

func (l *eventLog) Observe(ev ir.Event) {
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []ir.EventKind {
	out := make([]ir.EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

// newPeer creates a context with deterministic session IDs and local source.
func newPeer(t *testing.T, name string, keys ...string) (*Context, *eventLog) {
	t.Helper()
	log := &eventLog{}
	c := New(
		WithSessionIDGenerator(NewFixedGenerator(name+"-1", name+"-2", name+"-3")),
		WithLocalSource(rand.NewPCG(uint64(len(name)), 7)),
		WithObserver(log),
	)
	for _, k := range keys {
		require.NoError(t, c.DeclareStream(k))
	}
	return c, log
}

// drawN runs one replicated command that draws n integers from key.
func drawN(t *testing.T, c *Context, key string, n int) []int {
	t.Helper()
	var out []int
	err := c.Execute("draw", func() error {
		for i := 0; i < n; i++ {
			v, err := c.IntRange(key, 0, 1_000_000)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}
