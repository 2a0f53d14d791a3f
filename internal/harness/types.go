package harness

import (
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
)

// PeerResult is one peer's view of a scenario run.
type PeerResult struct {
	Name    string `json:"name"`
	Session string `json:"session"`

	// Trace contains every replicated event the peer produced, in seq order.
	Trace []ir.Event `json:"trace"`

	// Checksums holds one ir.TickChecksum per closed tick, in tick order.
	Checksums []string `json:"checksums"`

	Metrics sim.Metrics    `json:"metrics"`
	Pending map[string]int `json:"pending,omitempty"` // Queue name to pending subjects

	// Err is the contract violation that terminated the peer's session, if any.
	Err error `json:"-"`

	// StepErrors holds non-fatal step failures, e.g. a rejected action.
	StepErrors []string `json:"step_errors,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: true if every assertion held.
	Pass bool `json:"pass"`

	// Peers holds one result per simulated peer, peer 0 first.
	Peers []PeerResult `json:"peers"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Count returns the number of events of kind (and key, if non-empty) in the
// peer's trace.
func (p *PeerResult) Count(kind ir.EventKind, key string) int {
	n := 0
	for _, ev := range p.Trace {
		if ev.Kind == kind && (key == "" || ev.Key == key) {
			n++
		}
	}
	return n
}
