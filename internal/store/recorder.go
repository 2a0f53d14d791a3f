package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Recorder journals the replicated events of one peer. It implements
// engine.Observer: events are buffered until the tick event closes the tick,
// then written together with the tick checksum.
//
// Observe cannot return an error, so the first write failure is kept and
// reported by Err. Later events are dropped.
type Recorder struct {
	store   *Store
	ctx     context.Context // Observe has no context parameter
	session string
	buf     []ir.Event
	ticks   int
	err     error
}

// NewRecorder creates a recorder writing to s.
func NewRecorder(ctx context.Context, s *Store) *Recorder {
	return &Recorder{store: s, ctx: ctx}
}

// Begin starts journaling a session. Call it right after StartSession; events
// observed before Begin are ignored.
func (r *Recorder) Begin(sess Session) error {
	if err := r.store.WriteSession(r.ctx, sess); err != nil {
		return err
	}
	r.session = sess.ID
	r.buf = nil
	r.ticks = 0
	r.err = nil
	return nil
}

// Observe implements engine.Observer.
func (r *Recorder) Observe(ev ir.Event) {
	if r.session == "" || r.err != nil {
		return
	}
	r.buf = append(r.buf, ev)
	if ev.Kind != ir.EventTick {
		return
	}

	checksum, err := r.store.WriteTick(r.ctx, r.session, ev.Tick, r.buf)
	r.buf = nil
	if err != nil {
		r.err = fmt.Errorf("journal session %s: %w", r.session, err)
		slog.Error("journal write failed", "session", r.session, "tick", ev.Tick, "error", err)
		return
	}
	r.ticks++
	slog.Debug("tick journaled", "session", r.session, "tick", ev.Tick, "checksum", checksum)
}

// Flush writes the events of an unclosed tick, e.g. after the session was
// terminated mid-tick. The partial tick gets no checksum.
func (r *Recorder) Flush() error {
	if r.err != nil {
		return r.err
	}
	if r.session == "" || len(r.buf) == 0 {
		return nil
	}
	err := r.store.WriteEvents(r.ctx, r.session, r.buf)
	r.buf = nil
	if err != nil {
		r.err = fmt.Errorf("journal session %s: %w", r.session, err)
	}
	return r.err
}

// Session returns the ID of the session being journaled.
func (r *Recorder) Session() string {
	return r.session
}

// Ticks returns the number of ticks journaled for the current session.
func (r *Recorder) Ticks() int {
	return r.ticks
}

// Err returns the first write failure, if any.
func (r *Recorder) Err() error {
	return r.err
}
