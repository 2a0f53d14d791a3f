package engine

// Oracle answers the two questions every shim asks before acting.
// Implementations are pure reads: they never block and never fail. The absence
// of a session is a normal state, not an error.
type Oracle interface {
	// IsReplicatedSession reports whether a multiplayer session is active.
	IsReplicatedSession() bool

	// IsInsideReplicatedCommand reports whether the current call stack runs
	// inside a command whose effects all peers agreed on.
	IsInsideReplicatedCommand() bool
}

// ReplicationState tracks the session and command flags for one peer.
//
// INVARIANT: depth > 0 implies inSession. enter refuses to open a command
// outside a session and end resets depth together with the session flag.
//
// Only the Context's session and dispatch methods mutate it; shims observe it
// through the Oracle interface.
type ReplicationState struct {
	inSession bool
	depth     int // Nesting depth of replicated commands
}

// IsReplicatedSession implements Oracle.
func (s *ReplicationState) IsReplicatedSession() bool {
	return s.inSession
}

// IsInsideReplicatedCommand implements Oracle.
func (s *ReplicationState) IsInsideReplicatedCommand() bool {
	return s.inSession && s.depth > 0
}

func (s *ReplicationState) begin() {
	s.inSession = true
	s.depth = 0
}

func (s *ReplicationState) end() {
	s.inSession = false
	s.depth = 0
}

func (s *ReplicationState) enter() error {
	if !s.inSession {
		return NewNoSessionError("enter replicated command")
	}
	s.depth++
	return nil
}

// exit tolerates a session that ended while the command was running.
func (s *ReplicationState) exit() {
	if s.depth > 0 {
		s.depth--
	}
}
