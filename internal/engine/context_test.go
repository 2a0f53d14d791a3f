package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

func TestContext_OracleLifecycle(t *testing.T) {
	c, _ := newPeer(t, "p")

	assert.False(t, c.IsReplicatedSession())
	assert.False(t, c.IsInsideReplicatedCommand())

	id, err := c.StartSession(42)
	require.NoError(t, err)
	assert.Equal(t, "p-1", id)
	assert.True(t, c.IsReplicatedSession())
	assert.False(t, c.IsInsideReplicatedCommand())

	err = c.Execute("cmd", func() error {
		assert.True(t, c.IsReplicatedSession())
		assert.True(t, c.IsInsideReplicatedCommand())
		return nil
	})
	require.NoError(t, err)
	assert.False(t, c.IsInsideReplicatedCommand())

	c.EndSession()
	assert.False(t, c.IsReplicatedSession())
	assert.False(t, c.IsInsideReplicatedCommand())
}

func TestContext_NestedExecute(t *testing.T) {
	c, _ := newPeer(t, "p")
	_, err := c.StartSession(1)
	require.NoError(t, err)

	err = c.Execute("outer", func() error {
		return c.Execute("inner", func() error {
			assert.True(t, c.IsInsideReplicatedCommand())
			return nil
		})
	})
	require.NoError(t, err)
	assert.False(t, c.IsInsideReplicatedCommand(), "depth must unwind fully")
}

func TestContext_ExecuteWithoutSession(t *testing.T) {
	c, _ := newPeer(t, "p")

	ran := false
	err := c.Execute("cmd", func() error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, IsNoSession(err))
	assert.False(t, ran)
}

func TestContext_StartSessionTwice(t *testing.T) {
	c, _ := newPeer(t, "p")
	_, err := c.StartSession(1)
	require.NoError(t, err)

	_, err = c.StartSession(2)
	require.Error(t, err)

	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeSessionActive, re.Code)
	assert.Equal(t, int64(1), c.Seed(), "active session must be untouched")
}

func TestContext_DeclareStream(t *testing.T) {
	c, _ := newPeer(t, "p")

	require.NoError(t, c.DeclareStream("A"))
	require.NoError(t, c.DeclareStream("A"))
	require.NoError(t, c.DeclareStream("B"))
	assert.Equal(t, []string{"A", "B"}, c.Streams())

	assert.Error(t, c.DeclareStream(""))

	_, ok := c.StreamPos("A")
	assert.False(t, ok, "no cursors outside a session")

	_, err := c.StartSession(5)
	require.NoError(t, err)
	pos, ok := c.StreamPos("A")
	require.True(t, ok)
	assert.Equal(t, int64(0), pos)

	// Late declaration is live immediately.
	require.NoError(t, c.DeclareStream("C"))
	assert.Len(t, drawN(t, c, "C", 2), 2)
	pos, _ = c.StreamPos("C")
	assert.Equal(t, int64(2), pos)
}

func TestContext_NewDeferredQueue_Rejects(t *testing.T) {
	c, _ := newPeer(t, "p")
	noop := func(Subject) error { return nil }

	_, err := c.NewDeferredQueue("", noop)
	assert.Error(t, err)

	_, err = c.NewDeferredQueue("q", nil)
	assert.Error(t, err)

	_, err = c.NewDeferredQueue("q", noop)
	require.NoError(t, err)

	_, err = c.NewDeferredQueue("q", noop)
	assert.ErrorContains(t, err, "duplicate")

	q, ok := c.Queue("q")
	require.True(t, ok)
	assert.Equal(t, "q", q.Name())
	assert.Len(t, c.Queues(), 1)
}

// Scenario: RNG shim invoked 5 times for key "K" inside one replicated command
// on two peers yields the identical 5-value sequence.
func TestContext_Determinism_FiveDraws(t *testing.T) {
	p1, _ := newPeer(t, "peer1", "K")
	p2, _ := newPeer(t, "peer2", "K")

	_, err := p1.StartSession(20240501)
	require.NoError(t, err)
	_, err = p2.StartSession(20240501)
	require.NoError(t, err)

	s1 := drawN(t, p1, "K", 5)
	s2 := drawN(t, p2, "K", 5)

	assert.Len(t, s1, 5)
	assert.Equal(t, s1, s2)
}

func TestContext_Determinism_IndependentOfOtherKeys(t *testing.T) {
	p1, _ := newPeer(t, "peer1", "K", "J")
	p2, _ := newPeer(t, "peer2", "J", "K") // Declaration order differs

	_, err := p1.StartSession(9)
	require.NoError(t, err)
	_, err = p2.StartSession(9)
	require.NoError(t, err)

	// Peer 1 interleaves draws on J; K's sequence must not notice.
	drawN(t, p1, "J", 3)
	a := drawN(t, p1, "K", 4)
	b := drawN(t, p2, "K", 4)
	assert.Equal(t, a, b)
}

func TestContext_DifferentSeedsDiffer(t *testing.T) {
	p1, _ := newPeer(t, "peer1", "K")
	p2, _ := newPeer(t, "peer2", "K")

	_, err := p1.StartSession(1)
	require.NoError(t, err)
	_, err = p2.StartSession(2)
	require.NoError(t, err)

	assert.NotEqual(t, drawN(t, p1, "K", 8), drawN(t, p2, "K", 8))
}

func TestContext_StreamMonotonicity(t *testing.T) {
	c, log := newPeer(t, "p", "K")
	_, err := c.StartSession(77)
	require.NoError(t, err)

	first := drawN(t, c, "K", 3)
	drawN(t, c, "K", 2)

	var positions []int64
	for _, ev := range log.events {
		if ev.Kind == ir.EventDraw {
			positions = append(positions, ev.Pos)
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, positions)

	// Replaying from the same initial state reproduces the trajectory.
	c.EndSession()
	_, err = c.StartSession(77)
	require.NoError(t, err)
	assert.Equal(t, first, drawN(t, c, "K", 3))
}

func TestContext_ReentrantDrawsAreDepthFirst(t *testing.T) {
	p1, _ := newPeer(t, "peer1", "K")
	p2, _ := newPeer(t, "peer2", "K")
	_, err := p1.StartSession(3)
	require.NoError(t, err)
	_, err = p2.StartSession(3)
	require.NoError(t, err)

	// Recursive routine: each level draws, then recurses.
	var nested func(c *Context, depth int, out *[]int) error
	nested = func(c *Context, depth int, out *[]int) error {
		if depth == 0 {
			return nil
		}
		v, err := c.IntRange("K", 0, 100)
		if err != nil {
			return err
		}
		*out = append(*out, v)
		return nested(c, depth-1, out)
	}

	var viaRecursion []int
	require.NoError(t, p1.Execute("r", func() error { return nested(p1, 4, &viaRecursion) }))

	flat := drawN(t, p2, "K", 4)
	assert.Equal(t, flat, viaRecursion)
	pos, _ := p1.StreamPos("K")
	assert.Equal(t, int64(4), pos)
}

func TestContext_LocalDrawsDoNotAdvanceStreams(t *testing.T) {
	c, log := newPeer(t, "p", "K")
	_, err := c.StartSession(1)
	require.NoError(t, err)

	// Outside a command a value is still returned.
	_, err = c.Chance("K", 0.5)
	require.NoError(t, err)
	_, err = c.Range("undeclared", 0, 1)
	require.NoError(t, err, "local draws never fail")

	pos, _ := c.StreamPos("K")
	assert.Equal(t, int64(0), pos)
	assert.Empty(t, log.events, "local draws are not journaled")
}

func TestContext_StreamNotFoundTerminatesSession(t *testing.T) {
	c, _ := newPeer(t, "p", "K")
	_, err := c.StartSession(1)
	require.NoError(t, err)

	err = c.Execute("bad", func() error {
		_, err := c.Chance("missing", 0.5)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsStreamNotFound(err))
	assert.True(t, IsContractViolation(err))

	assert.False(t, c.IsReplicatedSession(), "violation ends the session")
	require.Error(t, c.Err())

	err = c.Execute("next", func() error { return nil })
	assert.True(t, IsSessionTerminated(err))
	assert.True(t, IsStreamNotFound(err), "terminated error wraps the cause")

	_, err = c.TickBoundary()
	assert.True(t, IsSessionTerminated(err))

	// A fresh session clears the failure.
	_, err = c.StartSession(2)
	require.NoError(t, err)
	assert.NoError(t, c.Err())
	assert.Len(t, drawN(t, c, "K", 1), 1)
}

func TestContext_MintID(t *testing.T) {
	c, log := newPeer(t, "p")

	// Single player: local, always allowed.
	id, err := c.MintID()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = c.StartSession(1)
	require.NoError(t, err)

	var minted []int64
	require.NoError(t, c.Execute("spawn", func() error {
		for i := 0; i < 3; i++ {
			id, err := c.MintID()
			if err != nil {
				return err
			}
			minted = append(minted, id)
		}
		return nil
	}))
	assert.Equal(t, []int64{1, 2, 3}, minted, "session clock restarts")
	assert.Equal(t, []ir.EventKind{ir.EventCommand, ir.EventMint, ir.EventMint, ir.EventMint}, log.kinds())

	// In session, outside a command: contract violation.
	_, err = c.MintID()
	require.Error(t, err)
	var re *RuntimeError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, ErrCodeUnsyncedMint, re.Code)
	assert.False(t, c.IsReplicatedSession())
}

func TestContext_WithIDStart(t *testing.T) {
	c := New(
		WithSessionIDGenerator(NewFixedGenerator("s1", "s2")),
		WithIDStart(40),
	)

	// Single player continues from the save as well.
	id, err := c.MintID()
	require.NoError(t, err)
	assert.Equal(t, int64(41), id)

	for range 2 {
		_, err = c.StartSession(9)
		require.NoError(t, err)
		require.NoError(t, c.Execute("spawn", func() error {
			id, err = c.MintID()
			return err
		}))
		assert.Equal(t, int64(41), id, "every session resumes from the save")
		c.EndSession()
	}
}

func TestContext_TickBoundary(t *testing.T) {
	c, log := newPeer(t, "p")

	// Without a session it is a no-op.
	report, err := c.TickBoundary()
	require.NoError(t, err)
	assert.Empty(t, report.Drains)
	assert.Empty(t, log.events)

	_, err = c.StartSession(1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.Tick())

	report, err = c.TickBoundary()
	require.NoError(t, err)
	assert.Equal(t, int64(1), report.Tick)
	assert.Empty(t, report.Drains)
	assert.Equal(t, int64(2), c.Tick())

	require.Len(t, log.events, 1)
	assert.Equal(t, ir.Event{Seq: 1, Tick: 1, Kind: ir.EventTick}, log.events[0])
}

func TestContext_TickBoundaryDrainsInsideReplicatedExecution(t *testing.T) {
	c, _ := newPeer(t, "p", "K")

	var inside []bool
	var ids []int64
	_, err := c.NewDeferredQueue("UpdateAllDuties", func(s Subject) error {
		inside = append(inside, c.IsInsideReplicatedCommand())
		id, err := c.MintID()
		ids = append(ids, id)
		return err
	})
	require.NoError(t, err)

	_, err = c.StartSession(1)
	require.NoError(t, err)

	q, _ := c.Queue("UpdateAllDuties")
	assert.True(t, q.Suppress(&pawn{id: "lord-1", alive: true}))

	report, err := c.TickBoundary()
	require.NoError(t, err)
	require.Len(t, report.Drains, 1)
	assert.Equal(t, []string{"lord-1"}, report.Drains[0].Reissued)
	assert.Equal(t, []bool{true}, inside)
	assert.Equal(t, []int64{1}, ids)
	assert.False(t, c.IsInsideReplicatedCommand())
}

func TestContext_DrainContractViolationTerminates(t *testing.T) {
	c, _ := newPeer(t, "p")
	_, err := c.NewDeferredQueue("q", func(s Subject) error {
		_, err := c.Chance("undeclared", 0.5)
		return err
	})
	require.NoError(t, err)
	_, err = c.StartSession(1)
	require.NoError(t, err)

	q, _ := c.Queue("q")
	q.Suppress(&pawn{id: "a", alive: true})

	_, err = c.TickBoundary()
	require.Error(t, err)
	assert.True(t, IsStreamNotFound(err))
	assert.False(t, c.IsReplicatedSession())
	assert.Equal(t, 0, q.Len(), "registries cleared on termination")
}

func TestContext_EndSessionClearsRegistries(t *testing.T) {
	c, _ := newPeer(t, "p", "K")
	_, err := c.NewDeferredQueue("q", func(Subject) error { return nil })
	require.NoError(t, err)

	_, err = c.StartSession(1)
	require.NoError(t, err)
	drawN(t, c, "K", 2)
	q, _ := c.Queue("q")
	q.Suppress(&pawn{id: "stale", alive: true})

	c.EndSession()
	assert.Equal(t, 0, q.Len())
	_, ok := c.StreamPos("K")
	assert.False(t, ok)

	_, err = c.StartSession(1)
	require.NoError(t, err)
	pos, _ := c.StreamPos("K")
	assert.Equal(t, int64(0), pos, "no stream state leaks into the next session")
	assert.Equal(t, int64(1), c.Tick())
	assert.Equal(t, "p-2", c.SessionID())
}

func TestContext_EventStamping(t *testing.T) {
	c, log := newPeer(t, "p", "K")
	_, err := c.StartSession(1)
	require.NoError(t, err)

	drawN(t, c, "K", 1)
	_, err = c.TickBoundary()
	require.NoError(t, err)
	drawN(t, c, "K", 1)

	require.Len(t, log.events, 5)
	for i, ev := range log.events {
		assert.Equal(t, int64(i+1), ev.Seq)
	}
	assert.Equal(t, []int64{1, 1, 1, 2, 2}, []int64{
		log.events[0].Tick, log.events[1].Tick, log.events[2].Tick,
		log.events[3].Tick, log.events[4].Tick,
	})
	assert.Equal(t, "draw", log.events[0].Key, "command event carries the command name")
	assert.Equal(t, "K", log.events[1].Key)
}
