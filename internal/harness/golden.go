package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
)

// TraceSnapshot captures one peer's replicated trace and final state.
// Serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string      `json:"scenario"`
	Peer         string      `json:"peer"`
	Session      string      `json:"session"`
	Trace        []ir.Event  `json:"trace"`
	Metrics      sim.Metrics `json:"metrics"`
}

// NewTraceSnapshot snapshots peer 0 of a result.
func NewTraceSnapshot(scenarioName string, result *Result) TraceSnapshot {
	p := result.Peers[0]
	return TraceSnapshot{
		ScenarioName: scenarioName,
		Peer:         p.Name,
		Session:      p.Session,
		Trace:        p.Trace,
		Metrics:      p.Metrics,
	}
}

// Marshal returns the canonical JSON of the snapshot. Tick checksums are left
// out: the trace they digest is already included.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		trace[i] = ev.Canonical()
	}

	return ir.MarshalCanonical(map[string]any{
		"scenario": s.ScenarioName,
		"peer":     s.Peer,
		"session":  s.Session,
		"trace":    trace,
		"metrics":  metricsCanonical(s.Metrics),
	})
}

func metricsCanonical(m sim.Metrics) map[string]any {
	strs := func(ss []string) []any {
		out := make([]any, len(ss))
		for i, s := range ss {
			out[i] = s
		}
		return out
	}

	jobs := make([]any, len(m.Jobs))
	for i, j := range m.Jobs {
		jobs[i] = map[string]any{"id": j.ID, "def": j.Def, "pawn": j.Pawn}
	}

	return map[string]any{
		"ice_melted":  m.IceMelted,
		"spawns":      strs(m.Spawns),
		"issued":      strs(m.Issued),
		"flecks":      m.Flecks,
		"fleck_scale": m.FleckScale,
		"hediffs":     m.Hediffs,
		"duties":      m.Duties,
		"jobs":        jobs,
		"hauled":      strs(m.Hauled),
	}
}

// RunWithGolden executes a scenario and compares peer 0's snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...Option) (*Result, error) {
	t.Helper()

	result, err := Run(t.Context(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an already computed result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
