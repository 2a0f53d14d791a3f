package rewrite

import (
	"fmt"
	"log/slog"
)

// Rewriter transforms a routine's instruction stream.
type Rewriter interface {
	Rewrite(instrs []Instruction) ([]Instruction, error)
}

// RewriteError reports that a rewrite could not be applied.
// It is a load-time integrity error and must abort startup.
type RewriteError struct {
	Call    string
	Message string
}

func (e *RewriteError) Error() string {
	return fmt.Sprintf("rewrite %s: %s", e.Call, e.Message)
}

// SnapshotRewriter inserts a snapshot constructor after every call to a
// configured method.
type SnapshotRewriter struct {
	call     string // Operand of the call whose result is snapshotted
	snapshot string // Operand of the inserted newobj
}

var _ Rewriter = (*SnapshotRewriter)(nil)

// NewSnapshotRewriter creates a rewriter that follows every call or callvirt of
// call with "newobj snapshot".
func NewSnapshotRewriter(call, snapshot string) (*SnapshotRewriter, error) {
	if call == "" {
		return nil, &RewriteError{Call: call, Message: "call operand is required"}
	}
	if snapshot == "" {
		return nil, &RewriteError{Call: call, Message: "snapshot constructor is required"}
	}
	return &SnapshotRewriter{call: call, snapshot: snapshot}, nil
}

// Rewrite returns a new instruction slice; instrs is not modified.
//
// Every matching call is followed by exactly one inserted instruction and no
// other instruction changes. Returns *RewriteError when no call matches.
func (r *SnapshotRewriter) Rewrite(instrs []Instruction) ([]Instruction, error) {
	out := make([]Instruction, 0, len(instrs)+1)
	patched := 0

	for _, in := range instrs {
		out = append(out, in)
		if in.Op.IsCall() && in.Operand == r.call {
			out = append(out, Instruction{Op: OpNewobj, Operand: r.snapshot})
			patched++
		}
	}

	if patched == 0 {
		return nil, &RewriteError{Call: r.call, Message: "call site not found"}
	}

	slog.Debug("instruction stream rewritten",
		"call", r.call,
		"snapshot", r.snapshot,
		"sites", patched,
	)
	return out, nil
}
