package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Subject is an opaque handle to an entity that requested deferred work.
//
// The queue keys subjects by SubjectID and probes Valid at drain time. It never
// reaches into the entity itself, so the host keeps ownership.
type Subject interface {
	// SubjectID returns a stable identity, identical on every peer.
	SubjectID() string

	// Valid reports whether the entity still exists in the simulation.
	Valid() bool
}

// Effect re-issues the suppressed action for a subject.
type Effect func(s Subject) error

// DrainReport summarizes one drain of a queue.
type DrainReport struct {
	Queue    string   `json:"queue"`
	Reissued []string `json:"reissued,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Failed   []string `json:"failed,omitempty"`
}

// Empty reports whether the drain did no work.
func (r DrainReport) Empty() bool {
	return len(r.Reissued) == 0 && len(r.Skipped) == 0 && len(r.Failed) == 0
}

// DeferredQueue suppresses an effectful action outside replicated execution and
// re-issues it at the next tick boundary.
//
// The divergence risk is not the action but the moment a globally agreed
// identifier is minted. Minting during ad-hoc, per-peer code gives different
// numbers on different peers; minting inside the tick boundary, which every peer
// runs at the same logical point, restores determinism at the cost of one tick.
//
// INVARIANTS:
//   - pending holds at most one entry per SubjectID
//   - pending is private; callers only pass Subject handles in
//   - Drain processes subjects in ascending SubjectID order, so the order does
//     not depend on when each peer happened to suppress them
type DeferredQueue struct {
	name    string
	oracle  Oracle
	effect  Effect
	emit    func(ir.Event)
	pending map[string]Subject
}

// NewDeferredQueue creates a standalone queue. Queues that take part in tick
// boundaries are created through Context.NewDeferredQueue.
func NewDeferredQueue(name string, oracle Oracle, effect Effect) *DeferredQueue {
	return &DeferredQueue{
		name:    name,
		oracle:  oracle,
		effect:  effect,
		emit:    func(ir.Event) {},
		pending: make(map[string]Subject),
	}
}

// Name returns the queue name (the patched target for descriptor-built queues).
func (q *DeferredQueue) Name() string {
	return q.name
}

// Suppress decides whether the caller must abort its action now.
//
// Returns true (abort, recorded for the next drain) when a session is active and
// the call is outside a replicated command. Returns false (proceed) inside a
// replicated command, where minting is already synchronized, and outside any
// session, where there are no peers to diverge from.
//
// Repeated suppressions of the same subject before a drain collapse into one.
func (q *DeferredQueue) Suppress(s Subject) bool {
	if !q.oracle.IsReplicatedSession() || q.oracle.IsInsideReplicatedCommand() {
		return false
	}

	id := s.SubjectID()
	if _, dup := q.pending[id]; dup {
		return true
	}
	q.pending[id] = s

	slog.Debug("deferred subject",
		"queue", q.name,
		"subject", id,
		"pending", len(q.pending),
	)
	return true
}

// Drain re-issues every pending subject and empties the set.
//
// Drain is a no-op without side effects when nothing is pending or no session is
// active; the tick hook calls it unconditionally every tick.
//
// A subject that became invalid since suppression is skipped silently. An effect
// error is logged and the drain continues with the next subject, except for
// contract violations, which stop the drain and are returned.
func (q *DeferredQueue) Drain() (DrainReport, error) {
	report := DrainReport{Queue: q.name}
	if !q.oracle.IsReplicatedSession() || len(q.pending) == 0 {
		return report, nil
	}

	batch := q.snapshot()
	clear(q.pending)

	for _, s := range batch {
		id := s.SubjectID()

		if !s.Valid() {
			q.emit(ir.Event{Kind: ir.EventSkip, Key: q.name, Subject: id})
			report.Skipped = append(report.Skipped, id)
			continue
		}

		q.emit(ir.Event{Kind: ir.EventReissue, Key: q.name, Subject: id})
		if err := q.effect(s); err != nil {
			if IsContractViolation(err) {
				return report, fmt.Errorf("drain %s: reissue %s: %w", q.name, id, err)
			}
			slog.Error("deferred effect failed",
				"queue", q.name,
				"subject", id,
				"error", err,
			)
			report.Failed = append(report.Failed, id)
			continue
		}
		report.Reissued = append(report.Reissued, id)
	}

	slog.Debug("deferred queue drained",
		"queue", q.name,
		"reissued", len(report.Reissued),
		"skipped", len(report.Skipped),
		"failed", len(report.Failed),
	)
	return report, nil
}

// Len returns the number of pending subjects.
func (q *DeferredQueue) Len() int {
	return len(q.pending)
}

// Pending returns the pending subject IDs in drain order.
func (q *DeferredQueue) Pending() []string {
	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// snapshot copies the pending set into drain order.
func (q *DeferredQueue) snapshot() []Subject {
	batch := make([]Subject, 0, len(q.pending))
	for _, id := range q.Pending() {
		batch = append(batch, q.pending[id])
	}
	return batch
}

func (q *DeferredQueue) reset() {
	clear(q.pending)
}
