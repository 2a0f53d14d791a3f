package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
)

// Scenario defines a lockstep scenario.
// Every peer runs the same replicated steps from the same seed; local steps run
// on chosen peers only, the way player-local code does.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Seed is the agreed session seed.
	Seed int64 `yaml:"seed"`

	// IDStart is the last identifier the host save already minted. Synchronized
	// identifiers continue from IDStart+1.
	IDStart int64 `yaml:"id_start,omitempty"`

	// Peers is the number of simulated peers. Defaults to 2.
	Peers int `yaml:"peers,omitempty"`

	// Patches selects the descriptor set: "builtin" (default), "none", or a
	// path to a .cue file relative to the scenario file.
	Patches string `yaml:"patches,omitempty"`

	// Targets optionally restricts the descriptor set to these targets.
	Targets []string `yaml:"targets,omitempty"`

	// Steps run in order on every peer.
	Steps []Step `yaml:"steps"`

	// Assertions validate the peers' traces and final state.
	Assertions []Assertion `yaml:"assertions"`

	// dir is the directory of the scenario file, for resolving Patches.
	dir string
}

// Step is one of a replicated command, a local call or a tick boundary.
// Exactly one of Command, Local and Tick is set.
type Step struct {
	// Command runs a colony action as a replicated command on every peer.
	Command string `yaml:"command,omitempty"`

	// Local runs a colony action outside replicated execution.
	Local string `yaml:"local,omitempty"`

	// Peer restricts a local step to one peer. Nil means every peer.
	Peer *int `yaml:"peer,omitempty"`

	// Args are the action arguments.
	Args []string `yaml:"args,omitempty"`

	// Tick closes this many ticks on every peer.
	Tick int `yaml:"tick,omitempty"`
}

// Assertion validates the run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "deterministic": every peer produced the same trace and state
	// - "divergent": at least two peers differ
	// - "trace_count": a peer's trace holds exactly Count events of Kind (and Key)
	// - "pending": a queue holds exactly Count pending subjects on a peer
	// - "state": a peer's colony metrics contain Expect (subset match)
	// - "error": a peer's session was terminated with Code
	Type string `yaml:"type"`

	// Peer selects the peer for per-peer assertions. Defaults to 0.
	Peer int `yaml:"peer,omitempty"`

	// Kind is the event kind (used by trace_count).
	Kind string `yaml:"kind,omitempty"`

	// Key filters events by key (used by trace_count).
	Key string `yaml:"key,omitempty"`

	// Queue is the deferred queue name (used by pending).
	Queue string `yaml:"queue,omitempty"`

	// Count is the expected number (used by trace_count and pending).
	Count int `yaml:"count,omitempty"`

	// Expect contains expected metrics fields (used by state).
	Expect map[string]any `yaml:"expect,omitempty"`

	// Code is the expected runtime error code (used by error).
	Code string `yaml:"code,omitempty"`
}

// Assertion type constants.
const (
	AssertDeterministic = "deterministic"
	AssertDivergent     = "divergent"
	AssertTraceCount    = "trace_count"
	AssertPending       = "pending"
	AssertState         = "state"
	AssertError         = "error"
)

// Patch set selectors.
const (
	PatchesBuiltin = "builtin"
	PatchesNone    = "none"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	scenario.dir = filepath.Dir(path)
	return scenario, nil
}

// ParseScenario parses scenario YAML. Patch file paths resolve relative to
// the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Peers == 0 {
		scenario.Peers = 2
	}
	if scenario.Patches == "" {
		scenario.Patches = PatchesBuiltin
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Peers < 1 {
		return fmt.Errorf("peers must be at least 1, got %d", s.Peers)
	}

	if s.IDStart < 0 {
		return fmt.Errorf("id_start must not be negative, got %d", s.IDStart)
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	known := make(map[string]bool)
	for _, name := range sim.Actions() {
		known[name] = true
	}

	for i, step := range s.Steps {
		set := 0
		for _, present := range []bool{step.Command != "", step.Local != "", step.Tick != 0} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("steps[%d]: exactly one of command, local and tick is required", i)
		}
		if step.Tick < 0 {
			return fmt.Errorf("steps[%d]: tick must be positive", i)
		}
		if name := step.Command + step.Local; name != "" && !known[name] {
			return fmt.Errorf("steps[%d]: unknown action %q", i, name)
		}
		if step.Peer != nil {
			if step.Local == "" {
				return fmt.Errorf("steps[%d]: peer is only valid on local steps", i)
			}
			if *step.Peer < 0 || *step.Peer >= s.Peers {
				return fmt.Errorf("steps[%d]: peer %d out of range", i, *step.Peer)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, s.Peers); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

func validateAssertion(a Assertion, peers int) error {
	switch a.Type {
	case AssertDeterministic, AssertDivergent:
		if peers < 2 {
			return fmt.Errorf("%s needs at least 2 peers", a.Type)
		}
	case AssertTraceCount:
		if a.Kind == "" {
			return fmt.Errorf("trace_count requires kind")
		}
	case AssertPending:
		if a.Queue == "" {
			return fmt.Errorf("pending requires queue")
		}
	case AssertState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("state requires expect")
		}
	case AssertError:
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	if a.Peer < 0 || a.Peer >= peers {
		return fmt.Errorf("peer %d out of range", a.Peer)
	}
	return nil
}
