package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Session identifies one peer's replicated session.
type Session struct {
	ID        string `json:"id"`
	Peer      string `json:"peer"`
	Seed      int64  `json:"seed"`
	PatchHash string `json:"patch_hash,omitempty"` // Digest of the applied descriptors
}

// TickChecksum is the journaled digest of one tick.
type TickChecksum struct {
	Tick     int64  `json:"tick"`
	Checksum string `json:"checksum"`
	Events   int    `json:"events"`
}

// WriteSession inserts a session record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently ignored.
func (s *Store) WriteSession(ctx context.Context, sess Session) error {
	if sess.ID == "" {
		return fmt.Errorf("write session: id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, peer, seed, patch_hash)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, sess.ID, sess.Peer, sess.Seed, sess.PatchHash)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// WriteEvents appends events without closing a tick. Used for the partial tick
// left behind by a terminated session.
//
// Note: The session must exist (foreign key constraint).
func (s *Store) WriteEvents(ctx context.Context, sessionID string, events []ir.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := insertEvents(ctx, tx, sessionID, events); err != nil {
		return fmt.Errorf("write events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write events: commit: %w", err)
	}
	return nil
}

// WriteTick atomically appends a tick's events and its checksum.
// Returns the checksum written.
//
// A tick already journaled for the session is left untouched.
func (s *Store) WriteTick(ctx context.Context, sessionID string, tick int64, events []ir.Event) (string, error) {
	checksum, err := ir.TickChecksum(tick, events)
	if err != nil {
		return "", fmt.Errorf("write tick %d: %w", tick, err)
	}
	payload, err := compressEvents(events)
	if err != nil {
		return "", fmt.Errorf("write tick %d: %w", tick, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("write tick %d: begin tx: %w", tick, err)
	}
	defer tx.Rollback()

	if err := insertEvents(ctx, tx, sessionID, events); err != nil {
		return "", fmt.Errorf("write tick %d: %w", tick, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tick_checksums (session_id, tick, checksum, events, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id, tick) DO NOTHING
	`, sessionID, tick, checksum, len(events), payload)
	if err != nil {
		return "", fmt.Errorf("write tick %d: insert checksum: %w", tick, err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("write tick %d: commit: %w", tick, err)
	}
	return checksum, nil
}

func insertEvents(ctx context.Context, tx *sql.Tx, sessionID string, events []ir.Event) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session_id, seq, tick, kind, key, subject, pos, value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if _, err := stmt.ExecContext(ctx,
			sessionID,
			ev.Seq,
			ev.Tick,
			string(ev.Kind),
			ev.Key,
			ev.Subject,
			ev.Pos,
			ev.Value,
		); err != nil {
			return fmt.Errorf("insert event %d: %w", ev.Seq, err)
		}
	}
	return nil
}
