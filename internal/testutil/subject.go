package testutil

// Subject is a test entity for deferred queues. Set Alive to false to model
// an entity removed from the simulation.
type Subject struct {
	ID    string
	Alive bool
}

// NewSubject creates a live subject.
func NewSubject(id string) *Subject {
	return &Subject{ID: id, Alive: true}
}

// SubjectID implements engine.Subject.
func (s *Subject) SubjectID() string { return s.ID }

// Valid implements engine.Subject.
func (s *Subject) Valid() bool { return s.Alive }

// Kill marks the subject as removed.
func (s *Subject) Kill() { s.Alive = false }
