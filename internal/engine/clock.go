package engine

// Clock is a monotonic logical counter.
//
// The substrate uses two of them per session: one mints synchronized
// identifiers, the other stamps journal events. Both advance only inside
// replicated execution, so every peer walks the same sequence.
//
// Clock is not safe for concurrent use. The substrate runs on the single
// simulation goroutine and never shares a Clock across goroutines.
type Clock struct {
	seq int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	return &Clock{seq: start}
}

// Next increments the clock and returns the new value. The first call on a
// fresh clock returns 1.
func (c *Clock) Next() int64 {
	c.seq++
	return c.seq
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq
}
