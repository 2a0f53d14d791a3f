package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue/cuecontext"

	"github.com/T6751/Multiplayer-Compatibility/internal/compiler"
	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/host"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/patch"
	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
	"github.com/T6751/Multiplayer-Compatibility/internal/store"
	"github.com/T6751/Multiplayer-Compatibility/internal/testutil"
)

// Option configures a run.
type Option func(*config)

type config struct {
	journal  *store.Store
	peers    int
	sessions func(peer string) engine.SessionIDGenerator
}

// WithJournal records every peer's session into s.
func WithJournal(s *store.Store) Option {
	return func(c *config) {
		c.journal = s
	}
}

// WithPeers overrides the scenario's peer count when n is positive.
func WithPeers(n int) Option {
	return func(c *config) {
		c.peers = n
	}
}

// WithSessionIDs names each peer's session with the generator gen returns
// for the peer. The default names sessions "<peer>/s<n>", which repeats
// across runs; journals shared by several runs need unique IDs.
func WithSessionIDs(gen func(peer string) engine.SessionIDGenerator) Option {
	return func(c *config) {
		c.sessions = gen
	}
}

// peer is one simulated player: a synchronization context, a colony patched
// with the scenario's descriptors, and the events it produced.
type peer struct {
	name   string
	ctx    *engine.Context
	colony *sim.Colony
	rec    *store.Recorder

	trace      []ir.Event
	tick       []ir.Event
	checksums  []string
	stepErrors []string
	hashErr    error
}

// Observe implements engine.Observer.
func (p *peer) Observe(ev ir.Event) {
	p.trace = append(p.trace, ev)
	p.tick = append(p.tick, ev)
	if ev.Kind == ir.EventTick {
		sum, err := ir.TickChecksum(ev.Tick, p.tick)
		if err != nil && p.hashErr == nil {
			p.hashErr = err
		}
		p.checksums = append(p.checksums, sum)
		p.tick = nil
	}
	if p.rec != nil {
		p.rec.Observe(ev)
	}
}

// Run executes a scenario on fresh peers and returns the result.
//
// Every peer gets its own local generators, seeded from the scenario seed and the
// peer index, so unsynchronized randomness differs between peers exactly as it
// would between players while staying reproducible across runs.
//
// Execution flow:
// 1. Load the descriptor set
// 2. Build each peer, apply the descriptors and start its session
// 3. Run the steps in order
// 4. Collect per-peer results and evaluate assertions
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	descs, err := loadPatches(scenario)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	patchHash, err := ir.PatchSetHash(descs)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	n := scenario.Peers
	if cfg.peers > 0 {
		n = cfg.peers
	}

	peers := make([]*peer, n)
	for i := range peers {
		p, err := newPeer(ctx, i, scenario, descs, patchHash, cfg)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		peers[i] = p
	}

	for i, step := range scenario.Steps {
		for idx, p := range peers {
			runStep(p, idx, i, step)
		}
	}

	result := NewResult()
	for _, p := range peers {
		pr, err := p.finish()
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
		result.Peers = append(result.Peers, pr)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}

	slog.Info("scenario finished",
		"scenario", scenario.Name,
		"peers", len(peers),
		"pass", result.Pass,
	)
	return result, nil
}

func newPeer(ctx context.Context, index int, s *Scenario, descs []ir.PatchDescriptor, patchHash string, cfg *config) (*peer, error) {
	p := &peer{name: fmt.Sprintf("peer-%d", index)}

	var gen engine.SessionIDGenerator = testutil.NewPeerSessionGenerator(p.name)
	if cfg.sessions != nil {
		gen = cfg.sessions(p.name)
	}

	seed := uint64(s.Seed)
	p.ctx = engine.New(
		engine.WithSessionIDGenerator(gen),
		engine.WithIDStart(s.IDStart),
		engine.WithLocalSource(rand.NewPCG(seed, uint64(2*index+1))),
		engine.WithObserver(p),
	)

	colony, err := sim.New(p.ctx, host.WithLocalSource(rand.NewPCG(seed, uint64(2*index+2))))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}
	p.colony = colony

	if len(descs) > 0 {
		if _, err := patch.Apply(descs, colony.Host(), p.ctx); err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}

	id, err := p.ctx.StartSession(s.Seed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.name, err)
	}

	if cfg.journal != nil {
		p.rec = store.NewRecorder(ctx, cfg.journal)
		err := p.rec.Begin(store.Session{ID: id, Peer: p.name, Seed: s.Seed, PatchHash: patchHash})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
	}
	return p, nil
}

// runStep applies one step to one peer. A terminated peer ignores further steps.
func runStep(p *peer, peerIndex, stepIndex int, step Step) {
	if p.ctx.Err() != nil {
		return
	}

	var err error
	switch {
	case step.Command != "":
		err = p.ctx.Execute(step.Command, func() error {
			return p.colony.Do(step.Command, step.Args...)
		})
	case step.Local != "":
		if step.Peer != nil && *step.Peer != peerIndex {
			return
		}
		err = p.colony.Do(step.Local, step.Args...)
	default:
		for n := 0; n < step.Tick && err == nil; n++ {
			_, err = p.ctx.TickBoundary()
		}
	}

	// Contract violations are reported through ctx.Err.
	if err != nil && p.ctx.Err() == nil {
		p.stepErrors = append(p.stepErrors, fmt.Sprintf("steps[%d]: %v", stepIndex, err))
	}
}

// finish ends the peer's session and snapshots its result.
func (p *peer) finish() (PeerResult, error) {
	if p.hashErr != nil {
		return PeerResult{}, fmt.Errorf("%s: %w", p.name, p.hashErr)
	}

	pending := make(map[string]int)
	for _, q := range p.ctx.Queues() {
		if n := q.Len(); n > 0 {
			pending[q.Name()] = n
		}
	}

	pr := PeerResult{
		Name:       p.name,
		Session:    p.ctx.SessionID(),
		Trace:      slices.Clone(p.trace),
		Checksums:  slices.Clone(p.checksums),
		Metrics:    p.colony.Metrics(),
		Pending:    pending,
		Err:        p.ctx.Err(),
		StepErrors: p.stepErrors,
	}

	if p.rec != nil {
		if err := p.rec.Flush(); err != nil {
			return PeerResult{}, fmt.Errorf("%s: %w", p.name, err)
		}
	}
	p.ctx.EndSession()
	return pr, nil
}

// loadPatches resolves the scenario's descriptor set.
func loadPatches(s *Scenario) ([]ir.PatchDescriptor, error) {
	cctx := cuecontext.New()

	var descs []ir.PatchDescriptor
	var err error
	switch s.Patches {
	case PatchesNone:
		if len(s.Targets) > 0 {
			return nil, errors.New("targets require a patch set")
		}
		return nil, nil
	case PatchesBuiltin:
		descs, err = patch.Builtin(cctx)
	default:
		path := s.Patches
		if !filepath.IsAbs(path) {
			path = filepath.Join(s.dir, path)
		}
		src, readErr := os.ReadFile(path)
		if readErr != nil {
			return nil, fmt.Errorf("read patches: %w", readErr)
		}
		descs, err = compiler.CompileSource(cctx, path, src)
	}
	if err != nil {
		return nil, fmt.Errorf("load patches: %w", err)
	}

	if len(s.Targets) == 0 {
		return descs, nil
	}
	selected := make([]ir.PatchDescriptor, 0, len(s.Targets))
	for _, target := range s.Targets {
		i := slices.IndexFunc(descs, func(d ir.PatchDescriptor) bool { return d.Target == target })
		if i < 0 {
			return nil, fmt.Errorf("target %s is not in patch set %s", target, s.Patches)
		}
		selected = append(selected, descs[i])
	}
	return selected, nil
}
