package host

import (
	"math"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
)

// Call is one invocation of a host operation. Hooks and bodies share it.
type Call struct {
	Target    string
	Subject   engine.Subject // Entity the operation acts for; may be nil
	Args      []any
	Cancelled bool // Set when a Before hook skipped the body

	reg *Registry
}

// Arg returns argument i, or nil when absent.
func (c *Call) Arg(i int) any {
	if i < 0 || i >= len(c.Args) {
		return nil
	}
	return c.Args[i]
}

// Chance returns true with probability p.
func (c *Call) Chance(p float64) (bool, error) {
	if key, ok := c.reg.stream(); ok {
		return c.reg.gateway.Chance(key, p)
	}
	return c.reg.local.Float64() < p, nil
}

// Range returns a float in [lo, hi).
func (c *Call) Range(lo, hi float64) (float64, error) {
	if key, ok := c.reg.stream(); ok {
		return c.reg.gateway.Range(key, lo, hi)
	}
	return lo + c.reg.local.Float64()*(hi-lo), nil
}

// IntRange returns an int in [lo, hi] inclusive.
func (c *Call) IntRange(lo, hi int) (int, error) {
	if key, ok := c.reg.stream(); ok {
		return c.reg.gateway.IntRange(key, lo, hi)
	}
	if hi <= lo {
		return lo, nil
	}
	span := uint64(hi) - uint64(lo) + 1
	if span == 0 {
		return int(c.reg.local.Uint64()), nil
	}
	return lo + int(c.reg.local.Uint64N(span)), nil
}

// MTBEventOccurs reports whether an event with mean time between occurrences
// mtb happens during checkDuration.
func (c *Call) MTBEventOccurs(mtb, mtbUnit, checkDuration float64) (bool, error) {
	if key, ok := c.reg.stream(); ok {
		return c.reg.gateway.MTBEventOccurs(key, mtb, mtbUnit, checkDuration)
	}
	switch {
	case math.IsInf(mtb, 1):
		return false, nil
	case mtb <= 0 || mtbUnit <= 0:
		return true, nil
	}
	return c.reg.local.Float64() < checkDuration/(mtb*mtbUnit), nil
}

// MintID mints an identifier through the gateway.
func (c *Call) MintID() (int64, error) {
	return c.reg.gateway.MintID()
}

// Invoke calls another host operation from inside this one.
func (c *Call) Invoke(name string, subject engine.Subject, args ...any) (any, error) {
	return c.reg.Invoke(name, subject, args...)
}

// Oracle exposes the execution-context oracle to hooks and bodies.
func (c *Call) Oracle() engine.Oracle {
	return c.reg.gateway
}
