package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// ReadSession retrieves a session by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadSession(ctx context.Context, id string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT id, peer, seed, patch_hash
		FROM sessions
		WHERE id = ?
	`, id).Scan(&sess.ID, &sess.Peer, &sess.Seed, &sess.PatchHash)
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ListSessions returns every journaled session ordered by ID.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, peer, seed, patch_hash
		FROM sessions
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Peer, &sess.Seed, &sess.PatchHash); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// ReadEvents returns every event of a session ordered by seq.
// Returns an empty slice (not nil) if none exist.
func (s *Store) ReadEvents(ctx context.Context, sessionID string) ([]ir.Event, error) {
	return s.queryEvents(ctx, `
		SELECT seq, tick, kind, key, subject, pos, value
		FROM events
		WHERE session_id = ?
		ORDER BY seq ASC
	`, sessionID)
}

// ReadTickEvents returns the events of one tick ordered by seq.
func (s *Store) ReadTickEvents(ctx context.Context, sessionID string, tick int64) ([]ir.Event, error) {
	return s.queryEvents(ctx, `
		SELECT seq, tick, kind, key, subject, pos, value
		FROM events
		WHERE session_id = ? AND tick = ?
		ORDER BY seq ASC
	`, sessionID, tick)
}

// ReadChecksums returns the tick checksums of a session ordered by tick.
func (s *Store) ReadChecksums(ctx context.Context, sessionID string) ([]TickChecksum, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, checksum, events
		FROM tick_checksums
		WHERE session_id = ?
		ORDER BY tick ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query checksums: %w", err)
	}
	defer rows.Close()

	sums := []TickChecksum{}
	for rows.Next() {
		var c TickChecksum
		if err := rows.Scan(&c.Tick, &c.Checksum, &c.Events); err != nil {
			return nil, fmt.Errorf("scan checksum: %w", err)
		}
		sums = append(sums, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checksums: %w", err)
	}
	return sums, nil
}

// ReadTickPayload decodes the compressed event list stored with a checksum.
// Returns sql.ErrNoRows if the tick was never closed.
func (s *Store) ReadTickPayload(ctx context.Context, sessionID string, tick int64) ([]ir.Event, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT payload FROM tick_checksums
		WHERE session_id = ? AND tick = ?
	`, sessionID, tick).Scan(&payload)
	if err != nil {
		return nil, err
	}
	return decompressEvents(payload)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]ir.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []ir.Event{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// scanEvent scans a row into an Event struct.
func scanEvent(rows *sql.Rows) (ir.Event, error) {
	var ev ir.Event
	var kind string
	if err := rows.Scan(&ev.Seq, &ev.Tick, &kind, &ev.Key, &ev.Subject, &ev.Pos, &ev.Value); err != nil {
		return ir.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Kind = ir.EventKind(kind)
	return ev, nil
}
