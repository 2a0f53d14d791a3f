package patch

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/T6751/Multiplayer-Compatibility/internal/compiler"
	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/host"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/rewrite"
)

// Load error codes (E300-E399)
const (
	ErrCodeInvalidDescriptor = "E300" // descriptor failed validation
	ErrCodeTargetNotFound    = "E301" // host has no such operation
	ErrCodeNoInstructions    = "E302" // rewrite target is not a program
	ErrCodeSnapshotMissing   = "E303" // snapshot constructor not registered
	ErrCodeRewriteFailed     = "E304" // call site not found
	ErrCodeInstallFailed     = "E305" // installer rejected the hook
)

// Host is the instrumentation collaborator descriptors are applied to.
// *host.Registry implements it.
type Host interface {
	Lookup(name string) (host.Info, bool)
	Install(name string, h host.Hooks) error
	Instructions(name string) ([]rewrite.Instruction, error)
	ReplaceInstructions(name string, instrs []rewrite.Instruction) error
	HasNative(name string) bool
	Invoke(name string, subject engine.Subject, args ...any) (any, error)
	PushStream(key string)
	PopStream()
}

// Substrate registers the shared state shims need.
// *engine.Context implements it.
type Substrate interface {
	engine.Oracle
	DeclareStream(key string) error
	NewDeferredQueue(name string, effect engine.Effect) (*engine.DeferredQueue, error)
}

var (
	_ Host      = (*host.Registry)(nil)
	_ Substrate = (*engine.Context)(nil)
)

// Issue is one problem found while loading descriptors.
type Issue struct {
	Target  string `json:"target"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// LoadError is a fatal load-time integrity error. It lists every issue found.
type LoadError struct {
	Issues []Issue
}

func (e *LoadError) Error() string {
	if len(e.Issues) == 1 {
		i := e.Issues[0]
		return fmt.Sprintf("%s: %s: %s", i.Code, i.Target, i.Message)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d patch load errors:", len(e.Issues))
	for _, i := range e.Issues {
		fmt.Fprintf(&b, "\n  %s: %s: %s", i.Code, i.Target, i.Message)
	}
	return b.String()
}

// IsLoadError returns true if err is a LoadError.
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Result summarizes what Apply installed, grouped by shim kind.
type Result struct {
	Streams  []string `json:"streams,omitempty"`  // rng_wrap stream keys
	Cancels  []string `json:"cancels,omitempty"`  // cancel_if_unsynced targets
	Queues   []string `json:"queues,omitempty"`   // defer_and_retry targets
	Rewrites []string `json:"rewrites,omitempty"` // rewrite_stream targets
}

// Total returns the number of installed descriptors.
func (r *Result) Total() int {
	return len(r.Streams) + len(r.Cancels) + len(r.Queues) + len(r.Rewrites)
}

// Apply validates descs against h and installs them.
//
// Nothing is installed unless every descriptor resolves: validation errors,
// unknown targets and rewrites that find no call site are all collected into
// one *LoadError.
func Apply(descs []ir.PatchDescriptor, h Host, sub Substrate) (*Result, error) {
	rewrites, err := check(descs, h)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for _, d := range descs {
		if err := install(d, h, sub, rewrites, res); err != nil {
			return nil, &LoadError{Issues: []Issue{{
				Target:  d.Target,
				Code:    ErrCodeInstallFailed,
				Message: err.Error(),
			}}}
		}
	}

	slog.Info("patches applied",
		"streams", len(res.Streams),
		"cancels", len(res.Cancels),
		"queues", len(res.Queues),
		"rewrites", len(res.Rewrites),
	)
	return res, nil
}

// check resolves every descriptor without side effects. It returns the
// rewritten instruction streams for rewrite_stream targets.
func check(descs []ir.PatchDescriptor, h Host) (map[string][]rewrite.Instruction, error) {
	var issues []Issue

	for _, ve := range compiler.Validate(descs) {
		issues = append(issues, Issue{Target: ve.Field, Code: ErrCodeInvalidDescriptor, Message: ve.Error()})
	}
	if len(issues) > 0 {
		return nil, &LoadError{Issues: issues}
	}

	rewrites := make(map[string][]rewrite.Instruction)
	for _, d := range descs {
		if _, ok := h.Lookup(d.Target); !ok {
			issues = append(issues, Issue{
				Target:  d.Target,
				Code:    ErrCodeTargetNotFound,
				Message: "target operation not found",
			})
			continue
		}
		if d.Shim != ir.ShimRewriteStream {
			continue
		}

		instrs, err := h.Instructions(d.Target)
		if err != nil {
			issues = append(issues, Issue{Target: d.Target, Code: ErrCodeNoInstructions, Message: err.Error()})
			continue
		}
		if !h.HasNative(d.Rewrite.Snapshot) {
			issues = append(issues, Issue{
				Target:  d.Target,
				Code:    ErrCodeSnapshotMissing,
				Message: fmt.Sprintf("snapshot constructor %s is not registered", d.Rewrite.Snapshot),
			})
			continue
		}

		rw, err := rewrite.NewSnapshotRewriter(d.Rewrite.Call, d.Rewrite.Snapshot)
		if err == nil {
			instrs, err = rw.Rewrite(instrs)
		}
		if err != nil {
			issues = append(issues, Issue{Target: d.Target, Code: ErrCodeRewriteFailed, Message: err.Error()})
			continue
		}
		rewrites[d.Target] = instrs
	}

	if len(issues) > 0 {
		return nil, &LoadError{Issues: issues}
	}
	return rewrites, nil
}

func install(d ir.PatchDescriptor, h Host, sub Substrate, rewrites map[string][]rewrite.Instruction, res *Result) error {
	switch d.Shim {
	case ir.ShimRngWrap:
		key := d.StreamKey()
		if err := sub.DeclareStream(key); err != nil {
			return err
		}
		err := h.Install(d.Target, host.Hooks{
			Before: func(*host.Call) (bool, error) {
				h.PushStream(key)
				return false, nil
			},
			After: func(*host.Call) error {
				h.PopStream()
				return nil
			},
		})
		if err != nil {
			return err
		}
		res.Streams = append(res.Streams, key)

	case ir.ShimCancelIfUnsynced:
		err := h.Install(d.Target, host.Hooks{
			Before: func(*host.Call) (bool, error) {
				return sub.IsReplicatedSession() && !sub.IsInsideReplicatedCommand(), nil
			},
		})
		if err != nil {
			return err
		}
		res.Cancels = append(res.Cancels, d.Target)

	case ir.ShimDeferAndRetry:
		target := d.Target
		q, err := sub.NewDeferredQueue(target, func(s engine.Subject) error {
			_, err := h.Invoke(target, s)
			return err
		})
		if err != nil {
			return err
		}
		err = h.Install(target, host.Hooks{
			Before: func(call *host.Call) (bool, error) {
				if call.Subject == nil {
					return false, fmt.Errorf("%s: deferred operation invoked without a subject", target)
				}
				return q.Suppress(call.Subject), nil
			},
		})
		if err != nil {
			return err
		}
		res.Queues = append(res.Queues, target)

	case ir.ShimRewriteStream:
		if err := h.ReplaceInstructions(d.Target, rewrites[d.Target]); err != nil {
			return err
		}
		res.Rewrites = append(res.Rewrites, d.Target)

	default:
		return fmt.Errorf("unknown shim %q", d.Shim)
	}

	slog.Debug("patch installed", "target", d.Target, "shim", d.Shim, "mod", d.Mod)
	return nil
}
