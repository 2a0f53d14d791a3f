package engine

import (
	"log/slog"
	"math"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Chance returns true with probability p.
//
// Inside a replicated command the draw comes from the stream named by key and
// advances it by exactly one unit. Elsewhere the peer-local generator answers;
// that value may differ between peers, which is harmless for per-peer effects.
func (c *Context) Chance(key string, p float64) (bool, error) {
	u, err := c.draw(key)
	if err != nil {
		return false, err
	}
	return unitFloat(u) < p, nil
}

// Range returns a float in [lo, hi).
func (c *Context) Range(key string, lo, hi float64) (float64, error) {
	u, err := c.draw(key)
	if err != nil {
		return 0, err
	}
	return lo + unitFloat(u)*(hi-lo), nil
}

// IntRange returns an int in [lo, hi] inclusive. When hi <= lo the result is lo,
// but the draw is still consumed so the stream position stays a function of
// call count alone. Any int range is accepted, including [MinInt, MaxInt].
func (c *Context) IntRange(key string, lo, hi int) (int, error) {
	u, err := c.draw(key)
	if err != nil {
		return 0, err
	}
	if hi <= lo {
		return lo, nil
	}
	return lo + int(reduce(u, lo, hi)), nil
}

// reduce maps u onto an offset in [0, hi-lo]. The span is computed in uint64
// so ranges wider than MaxInt do not overflow; a span of 2^64 keeps u as is.
func reduce(u uint64, lo, hi int) uint64 {
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return u
	}
	return u % span
}

// MTBEventOccurs reports whether an event with mean time between occurrences
// mtb (in units of mtbUnit) happens during checkDuration.
//
// An infinite mtb never fires and a non-positive mtb always fires. Both still
// consume one unit.
func (c *Context) MTBEventOccurs(key string, mtb, mtbUnit, checkDuration float64) (bool, error) {
	u, err := c.draw(key)
	if err != nil {
		return false, err
	}
	switch {
	case math.IsInf(mtb, 1):
		return false, nil
	case mtb <= 0 || mtbUnit <= 0:
		return true, nil
	}
	return unitFloat(u) < checkDuration/(mtb*mtbUnit), nil
}

// draw consumes one unit of entropy for key.
func (c *Context) draw(key string) (uint64, error) {
	if !c.state.IsInsideReplicatedCommand() {
		return c.local.Uint64(), nil
	}

	s, ok := c.streams[key]
	if !ok {
		return 0, c.fail(NewStreamNotFoundError(key))
	}

	u := s.next()
	slog.Debug("synchronized draw",
		"key", key,
		"pos", s.pos,
		"tick", c.tick,
	)
	c.emit(ir.Event{Kind: ir.EventDraw, Key: key, Pos: s.pos, Value: int64(u)})
	return u, nil
}
