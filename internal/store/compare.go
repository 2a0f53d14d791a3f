package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Divergence describes the first tick two sessions disagree on.
type Divergence struct {
	Tick      int64     `json:"tick"`
	ChecksumA string    `json:"checksum_a"`
	ChecksumB string    `json:"checksum_b"`
	Index     int       `json:"index"` // Position of the first differing event within the tick
	EventA    *ir.Event `json:"event_a,omitempty"`
	EventB    *ir.Event `json:"event_b,omitempty"`
}

// Comparison is the result of comparing two journaled sessions.
type Comparison struct {
	SessionA   string      `json:"session_a"`
	SessionB   string      `json:"session_b"`
	Compared   int         `json:"compared"`          // Ticks present in both sessions
	ExtraA     int         `json:"extra_a,omitempty"` // Ticks only session A closed
	ExtraB     int         `json:"extra_b,omitempty"`
	Divergence *Divergence `json:"divergence,omitempty"`
}

// InSync reports whether every commonly closed tick matched.
func (c *Comparison) InSync() bool {
	return c.Divergence == nil
}

// CompareSessions walks the tick checksums of two sessions in tick order and
// reports the first tick whose checksums differ, with the first differing event.
//
// Sessions of different length are compared over their common ticks; the
// surplus is reported but is not a divergence.
func (s *Store) CompareSessions(ctx context.Context, a, b string) (*Comparison, error) {
	for _, id := range []string{a, b} {
		if _, err := s.ReadSession(ctx, id); err != nil {
			return nil, fmt.Errorf("compare sessions: session %s: %w", id, err)
		}
	}

	sumsA, err := s.ReadChecksums(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("compare sessions: %w", err)
	}
	sumsB, err := s.ReadChecksums(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("compare sessions: %w", err)
	}

	cmp := &Comparison{SessionA: a, SessionB: b}
	n := min(len(sumsA), len(sumsB))
	cmp.ExtraA = len(sumsA) - n
	cmp.ExtraB = len(sumsB) - n

	for i := 0; i < n; i++ {
		ta, tb := sumsA[i], sumsB[i]
		if ta.Tick == tb.Tick && ta.Checksum == tb.Checksum {
			cmp.Compared++
			continue
		}

		tick := min(ta.Tick, tb.Tick)
		d := &Divergence{Tick: tick, ChecksumA: ta.Checksum, ChecksumB: tb.Checksum}
		if err := s.locate(ctx, a, b, tick, d); err != nil {
			return nil, fmt.Errorf("compare sessions: %w", err)
		}
		cmp.Compared++
		cmp.Divergence = d
		return cmp, nil
	}
	return cmp, nil
}

// locate fills in the first differing event of a divergent tick.
func (s *Store) locate(ctx context.Context, a, b string, tick int64, d *Divergence) error {
	evA, err := s.checksummedEvents(ctx, a, tick)
	if err != nil {
		return err
	}
	evB, err := s.checksummedEvents(ctx, b, tick)
	if err != nil {
		return err
	}

	i := 0
	for i < len(evA) && i < len(evB) && evA[i] == evB[i] {
		i++
	}
	d.Index = i
	if i < len(evA) {
		d.EventA = &evA[i]
	}
	if i < len(evB) {
		d.EventB = &evB[i]
	}
	return nil
}

// checksummedEvents returns the events a tick checksum was computed over, read
// from the compressed payload. A session that never closed tick falls back to
// its raw event rows.
func (s *Store) checksummedEvents(ctx context.Context, sessionID string, tick int64) ([]ir.Event, error) {
	events, err := s.ReadTickPayload(ctx, sessionID, tick)
	if errors.Is(err, sql.ErrNoRows) {
		return s.ReadTickEvents(ctx, sessionID, tick)
	}
	if err != nil {
		return nil, fmt.Errorf("read tick %d payload of %s: %w", tick, sessionID, err)
	}
	return events, nil
}
