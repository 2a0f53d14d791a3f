package engine

import (
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Observer receives every replicated event the substrate produces.
// The desync journal and the lockstep harness implement it.
type Observer interface {
	Observe(ev ir.Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ev ir.Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(ev ir.Event) {
	f(ev)
}

// TickReport summarizes one tick boundary.
type TickReport struct {
	Tick   int64         `json:"tick"`
	Drains []DrainReport `json:"drains,omitempty"`
}

// Context is the synchronization context for one peer.
//
// It owns every registry the shims need: the replication flags, the keyed
// streams, the deferred queues and the identifier clock. The simulation driver
// holds exactly one Context per peer and drives it through StartSession,
// Execute, TickBoundary and EndSession.
//
// Lifetimes:
//   - Declared stream keys and queues: process scope, registered at patch load
//   - Stream cursors, pending sets, clocks: session scope, rebuilt by
//     StartSession and cleared by EndSession
//
// INVARIANTS:
//   - queues order NEVER changes after registration (drain order)
//   - streams is nil outside a session
//   - failure, once set, makes Execute and TickBoundary refuse work until the
//     next StartSession
type Context struct {
	state      ReplicationState
	sessionGen SessionIDGenerator
	local      *rand.Rand
	observer   Observer

	declared []string
	queues   []*DeferredQueue

	sessionID string
	seed      int64
	streams   map[string]*Stream
	ids       *Clock // Synchronized identifier minting
	idStart   int64  // Last identifier minted before any session
	events    *Clock // Journal sequence numbers
	tick      int64
	failure   error
}

// Option allows configuration of a Context.
type Option func(*Context)

// WithSessionIDGenerator sets the generator used to name sessions.
// Default: UUIDv7Generator.
func WithSessionIDGenerator(gen SessionIDGenerator) Option {
	return func(c *Context) {
		c.sessionGen = gen
	}
}

// WithLocalSource sets the peer-local generator used outside replicated
// execution. Default: a randomly seeded PCG.
func WithLocalSource(src rand.Source) Option {
	return func(c *Context) {
		c.local = rand.New(src)
	}
}

// WithIDStart resumes identifier minting after start, the last identifier the
// host save already handed out. Every session restarts its clock at start, so
// the first synchronized MintID returns start+1 on every peer.
func WithIDStart(start int64) Option {
	return func(c *Context) {
		c.idStart = start
	}
}

// WithObserver registers the observer for replicated events.
func WithObserver(o Observer) Option {
	return func(c *Context) {
		c.observer = o
	}
}

// New creates an idle Context with no declared streams or queues.
func New(opts ...Option) *Context {
	c := &Context{
		sessionGen: UUIDv7Generator{},
		local:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		ids:        NewClock(),
		events:     NewClock(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ids = NewClockAt(c.idStart)
	return c
}

// IsReplicatedSession implements Oracle.
func (c *Context) IsReplicatedSession() bool {
	return c.state.IsReplicatedSession()
}

// IsInsideReplicatedCommand implements Oracle.
func (c *Context) IsInsideReplicatedCommand() bool {
	return c.state.IsInsideReplicatedCommand()
}

// DeclareStream registers a keyed stream. Declaring a key twice is a no-op, so
// several call sites may share one stream.
//
// Declarations made during a session take effect immediately.
func (c *Context) DeclareStream(key string) error {
	if key == "" {
		return fmt.Errorf("stream key is required")
	}
	for _, k := range c.declared {
		if k == key {
			return nil
		}
	}
	c.declared = append(c.declared, key)

	if c.streams != nil {
		s, err := newStream(c.seed, key)
		if err != nil {
			return err
		}
		c.streams[key] = s
	}
	return nil
}

// NewDeferredQueue registers a queue drained at every tick boundary.
// Queues drain in registration order.
func (c *Context) NewDeferredQueue(name string, effect Effect) (*DeferredQueue, error) {
	if name == "" {
		return nil, fmt.Errorf("deferred queue name is required")
	}
	if effect == nil {
		return nil, fmt.Errorf("deferred queue %s: effect is required", name)
	}
	if _, exists := c.Queue(name); exists {
		return nil, fmt.Errorf("duplicate deferred queue: %s", name)
	}

	q := NewDeferredQueue(name, c, effect)
	q.emit = c.emit
	c.queues = append(c.queues, q)
	return q, nil
}

// StartSession begins a replicated session with the agreed seed.
//
// Every declared stream starts at position 0 and the identifier clock restarts,
// so peers that start with the same seed walk identical sequences.
func (c *Context) StartSession(seed int64) (string, error) {
	if c.state.IsReplicatedSession() {
		return "", &RuntimeError{
			Code:    ErrCodeSessionActive,
			Message: fmt.Sprintf("session %s is already active", c.sessionID),
		}
	}

	streams := make(map[string]*Stream, len(c.declared))
	for _, key := range c.declared {
		s, err := newStream(seed, key)
		if err != nil {
			return "", err
		}
		streams[key] = s
	}

	c.sessionID = c.sessionGen.Generate()
	c.seed = seed
	c.streams = streams
	c.ids = NewClockAt(c.idStart)
	c.events = NewClock()
	c.tick = 1
	c.failure = nil
	c.state.begin()

	slog.Info("replicated session started",
		"session", c.sessionID,
		"seed", seed,
		"streams", len(streams),
		"queues", len(c.queues),
	)
	return c.sessionID, nil
}

// EndSession tears down session-scoped state. Pending subjects are dropped and
// stream cursors discarded so nothing leaks into the next session.
func (c *Context) EndSession() {
	if !c.state.IsReplicatedSession() && c.streams == nil {
		return
	}
	c.reset()
	slog.Info("replicated session ended",
		"session", c.sessionID,
		"tick", c.tick,
	)
}

// Execute runs cmd as a replicated command.
//
// Returns a NO_SESSION error outside a session and SESSION_TERMINATED after a
// contract violation. A contract violation returned by cmd terminates the session.
func (c *Context) Execute(name string, cmd func() error) error {
	if c.failure != nil {
		return NewSessionTerminatedError(c.failure)
	}
	if err := c.state.enter(); err != nil {
		return err
	}
	defer c.state.exit()

	c.emit(ir.Event{Kind: ir.EventCommand, Key: name})

	err := cmd()
	if err != nil && IsContractViolation(err) {
		c.fail(err)
	}
	return err
}

// TickBoundary closes the current tick: it drains every deferred queue inside
// replicated execution, then advances the tick counter.
//
// Outside a session it is a no-op. With nothing pending it only advances the
// tick, so calling it unconditionally every tick is safe.
func (c *Context) TickBoundary() (TickReport, error) {
	if c.failure != nil {
		return TickReport{}, NewSessionTerminatedError(c.failure)
	}
	if !c.state.IsReplicatedSession() {
		return TickReport{}, nil
	}

	report := TickReport{Tick: c.tick}
	if err := c.drainAll(&report); err != nil {
		return report, c.fail(err)
	}

	c.emit(ir.Event{Kind: ir.EventTick})
	c.tick++
	return report, nil
}

func (c *Context) drainAll(report *TickReport) error {
	if err := c.state.enter(); err != nil {
		return err
	}
	defer c.state.exit()

	for _, q := range c.queues {
		dr, err := q.Drain()
		if !dr.Empty() {
			report.Drains = append(report.Drains, dr)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// MintID returns the next causally sequenced identifier.
//
// Inside replicated execution the identifier comes from the session clock and is
// identical on every peer. Outside a session (single player) minting is local
// and always allowed. In a session but outside a replicated command, minting is a
// contract violation: the caller should have been suppressed first.
func (c *Context) MintID() (int64, error) {
	if !c.state.IsReplicatedSession() {
		return c.ids.Next(), nil
	}
	if !c.state.IsInsideReplicatedCommand() {
		return 0, c.fail(NewUnsyncedMintError())
	}

	id := c.ids.Next()
	c.emit(ir.Event{Kind: ir.EventMint, Value: id})
	return id, nil
}

// SessionID returns the current (or last) session ID.
func (c *Context) SessionID() string {
	return c.sessionID
}

// Seed returns the seed of the current (or last) session.
func (c *Context) Seed() int64 {
	return c.seed
}

// Tick returns the tick currently being executed.
func (c *Context) Tick() int64 {
	return c.tick
}

// Err returns the contract violation that terminated the session, if any.
func (c *Context) Err() error {
	return c.failure
}

// StreamPos returns the position of a keyed stream in the active session.
func (c *Context) StreamPos(key string) (int64, bool) {
	s, ok := c.streams[key]
	if !ok {
		return 0, false
	}
	return s.Pos(), true
}

// Streams returns the declared stream keys in declaration order.
func (c *Context) Streams() []string {
	return append([]string(nil), c.declared...)
}

// Queue looks up a deferred queue by name.
func (c *Context) Queue(name string) (*DeferredQueue, bool) {
	for _, q := range c.queues {
		if q.name == name {
			return q, true
		}
	}
	return nil, false
}

// Queues returns the deferred queues in drain order.
func (c *Context) Queues() []*DeferredQueue {
	return append([]*DeferredQueue(nil), c.queues...)
}

// fail terminates the session on a contract violation and returns err.
func (c *Context) fail(err error) error {
	if c.failure != nil {
		return err
	}
	c.failure = err
	slog.Error("replicated session terminated",
		"session", c.sessionID,
		"tick", c.tick,
		"error", err,
	)
	c.reset()
	return err
}

func (c *Context) reset() {
	c.state.end()
	c.streams = nil
	for _, q := range c.queues {
		q.reset()
	}
}

// emit stamps and forwards a replicated event.
func (c *Context) emit(ev ir.Event) {
	ev.Seq = c.events.Next()
	ev.Tick = c.tick
	if c.observer != nil {
		c.observer.Observe(ev)
	}
}
