package testutil

import (
	"math"
	"sync"
)

// Draw records one call made against a ScriptedGateway.
type Draw struct {
	Key  string
	Kind string // chance, range, int_range, mtb
}

// ScriptedGateway is an engine.Gateway that answers draws from a fixed list of
// unit values in [0, 1).
//
// Values are consumed in order and cycle when exhausted; with no values every
// draw sees 0. Session and command flags are plain fields the test sets.
//
// Thread-safety: the value cursor and the draw log are guarded by an internal
// mutex. Session, Command and IDs are not; set them before sharing the gateway.
type ScriptedGateway struct {
	mu     sync.Mutex
	values []float64
	idx    int
	draws  []Draw

	Session bool
	Command bool
	IDs     *DeterministicClock
}

// NewScriptedGateway creates a gateway answering from values.
func NewScriptedGateway(values ...float64) *ScriptedGateway {
	return &ScriptedGateway{values: values, IDs: NewDeterministicClock()}
}

// IsReplicatedSession implements engine.Oracle.
func (g *ScriptedGateway) IsReplicatedSession() bool { return g.Session }

// IsInsideReplicatedCommand implements engine.Oracle.
func (g *ScriptedGateway) IsInsideReplicatedCommand() bool { return g.Session && g.Command }

// Chance returns the next value < p.
func (g *ScriptedGateway) Chance(key string, p float64) (bool, error) {
	return g.next(key, "chance") < p, nil
}

// Range maps the next value onto [lo, hi).
func (g *ScriptedGateway) Range(key string, lo, hi float64) (float64, error) {
	return lo + g.next(key, "range")*(hi-lo), nil
}

// IntRange maps the next value onto [lo, hi].
func (g *ScriptedGateway) IntRange(key string, lo, hi int) (int, error) {
	v := g.next(key, "int_range")
	if hi <= lo {
		return lo, nil
	}
	width := uint64(hi) - uint64(lo)
	off := uint64(v * (float64(width) + 1))
	return lo + int(min(off, width)), nil
}

// MTBEventOccurs compares the next value with checkDuration/(mtb*mtbUnit).
func (g *ScriptedGateway) MTBEventOccurs(key string, mtb, mtbUnit, checkDuration float64) (bool, error) {
	v := g.next(key, "mtb")
	switch {
	case math.IsInf(mtb, 1):
		return false, nil
	case mtb <= 0 || mtbUnit <= 0:
		return true, nil
	}
	return v < checkDuration/(mtb*mtbUnit), nil
}

// MintID returns the next identifier from IDs.
func (g *ScriptedGateway) MintID() (int64, error) {
	return g.IDs.Next(), nil
}

// Draws returns the calls made so far, in order.
func (g *ScriptedGateway) Draws() []Draw {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Draw(nil), g.draws...)
}

// Keys returns the key of every draw, in order.
func (g *ScriptedGateway) Keys() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	keys := make([]string, len(g.draws))
	for i, d := range g.draws {
		keys[i] = d.Key
	}
	return keys
}

func (g *ScriptedGateway) next(key, kind string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.draws = append(g.draws, Draw{Key: key, Kind: kind})
	if len(g.values) == 0 {
		return 0
	}
	v := g.values[g.idx%len(g.values)]
	g.idx++
	return v
}
