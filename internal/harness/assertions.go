package harness

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Peer     string // Peer the assertion ran against, if any
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Peer != "" {
		fmt.Fprintf(&buf, " (%s)", e.Peer)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string

	for i, a := range assertions {
		var err error
		if a.Peer < 0 || a.Peer >= len(result.Peers) {
			err = fmt.Errorf("assertion[%d]: peer %d out of range", i, a.Peer)
		} else {
			err = evaluate(result, a)
		}
		if err != nil {
			msgs = append(msgs, err.Error())
		}
	}

	return msgs
}

func evaluate(result *Result, a Assertion) error {
	p := &result.Peers[a.Peer]
	switch a.Type {
	case AssertDeterministic:
		return assertDeterministic(result.Peers)
	case AssertDivergent:
		if assertDeterministic(result.Peers) == nil {
			return &AssertionError{
				Type:     AssertDivergent,
				Expected: "at least two peers differ",
				Actual:   fmt.Sprintf("all %d peers identical", len(result.Peers)),
			}
		}
		return nil
	case AssertTraceCount:
		return assertTraceCount(p, a)
	case AssertPending:
		if n := p.Pending[a.Queue]; n != a.Count {
			return &AssertionError{
				Type:     AssertPending,
				Peer:     p.Name,
				Expected: fmt.Sprintf("%d pending in %s", a.Count, a.Queue),
				Actual:   fmt.Sprintf("%d pending", n),
			}
		}
		return nil
	case AssertState:
		return assertState(p, a)
	case AssertError:
		return assertSessionError(p, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertDeterministic compares every peer against peer 0: session outcome,
// replicated trace, tick checksums and colony state.
func assertDeterministic(peers []PeerResult) error {
	if len(peers) < 2 {
		return nil
	}
	base := peers[0]
	for _, p := range peers[1:] {
		fail := func(expected, actual string) error {
			return &AssertionError{Type: AssertDeterministic, Peer: p.Name, Expected: expected, Actual: actual}
		}

		if (base.Err == nil) != (p.Err == nil) {
			return fail(fmt.Sprintf("session error %v", base.Err), fmt.Sprintf("session error %v", p.Err))
		}
		if tick, ok := firstDivergentTick(base.Checksums, p.Checksums); ok {
			return fail(
				fmt.Sprintf("tick %d checksum %s", tick, checksumAt(base.Checksums, tick)),
				fmt.Sprintf("tick %d checksum %s", tick, checksumAt(p.Checksums, tick)),
			)
		}
		if i, ok := firstDivergentEvent(base.Trace, p.Trace); ok {
			return fail(
				fmt.Sprintf("event %d %s", i, describe(base.Trace, i)),
				fmt.Sprintf("event %d %s", i, describe(p.Trace, i)),
			)
		}
		if !base.Metrics.Equal(p.Metrics) {
			return fail(fmt.Sprintf("metrics %+v", base.Metrics), fmt.Sprintf("metrics %+v", p.Metrics))
		}
	}
	return nil
}

// firstDivergentTick returns the first tick (1-based) whose checksums differ,
// including a tick only one side closed.
func firstDivergentTick(a, b []string) (int64, bool) {
	for i := 0; i < max(len(a), len(b)); i++ {
		if i >= len(a) || i >= len(b) || a[i] != b[i] {
			return int64(i + 1), true
		}
	}
	return 0, false
}

func firstDivergentEvent(a, b []ir.Event) (int, bool) {
	if slices.Equal(a, b) {
		return 0, false
	}
	i := 0
	for i < len(a) && i < len(b) && a[i] == b[i] {
		i++
	}
	return i, true
}

func checksumAt(sums []string, tick int64) string {
	if int(tick) > len(sums) {
		return "(not closed)"
	}
	return sums[tick-1]
}

func describe(trace []ir.Event, i int) string {
	if i >= len(trace) {
		return "(end of trace)"
	}
	ev := trace[i]
	return fmt.Sprintf("%s key=%q subject=%q value=%d", ev.Kind, ev.Key, ev.Subject, ev.Value)
}

// assertTraceCount checks that a kind (and key) appears exactly Count times.
func assertTraceCount(p *PeerResult, a Assertion) error {
	n := p.Count(ir.EventKind(a.Kind), a.Key)
	if n != a.Count {
		what := a.Kind
		if a.Key != "" {
			what += " " + a.Key
		}
		return &AssertionError{
			Type:     AssertTraceCount,
			Peer:     p.Name,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, what),
			Actual:   fmt.Sprintf("%d occurrences", n),
		}
	}
	return nil
}

// assertState checks the peer's metrics against Expect using subset semantics.
// Both sides go through YAML so numbers and lists compare by value.
func assertState(p *PeerResult, a Assertion) error {
	actual, err := normalize(p.Metrics)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	actualMap, _ := actual.(map[string]any)

	expected, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}

	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		want := expected.(map[string]any)[k]
		got, ok := actualMap[k]
		if !ok && isEmpty(want) {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     AssertState,
				Peer:     p.Name,
				Expected: fmt.Sprintf("%s = %v", k, want),
				Actual:   fmt.Sprintf("%s = %v", k, got),
			}
		}
	}
	return nil
}

func normalize(v any) (any, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case []any:
		return len(val) == 0
	case int:
		return val == 0
	}
	return false
}

// assertSessionError checks that the peer's session was terminated, with Code
// if one is given.
func assertSessionError(p *PeerResult, a Assertion) error {
	if p.Err == nil {
		return &AssertionError{
			Type:     AssertError,
			Peer:     p.Name,
			Expected: fmt.Sprintf("session terminated %s", a.Code),
			Actual:   "session healthy",
		}
	}
	if a.Code == "" {
		return nil
	}
	var re *engine.RuntimeError
	if !errors.As(p.Err, &re) || string(re.Code) != a.Code {
		return &AssertionError{
			Type:     AssertError,
			Peer:     p.Name,
			Expected: fmt.Sprintf("session terminated %s", a.Code),
			Actual:   p.Err.Error(),
		}
	}
	return nil
}
