package host

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/rewrite"
)

// ErrUnknownOperation is returned when a name does not resolve to an operation.
var ErrUnknownOperation = errors.New("unknown host operation")

// Body is the Go implementation of a host operation.
type Body func(call *Call) (any, error)

// Hooks run around every invocation of an operation.
//
// Before returns cancel=true to skip the body and the Before hooks installed
// after it. After hooks run, in reverse order, for every hook whose Before was
// reached, whether or not the body ran.
type Hooks struct {
	Before func(call *Call) (cancel bool, err error)
	After  func(call *Call) error
}

// Info describes a registered operation.
type Info struct {
	Name    string `json:"name"`
	Program bool   `json:"program"` // Defined by an instruction stream
	Hooks   int    `json:"hooks"`
}

type operation struct {
	name    string
	body    Body
	program []rewrite.Instruction
	hooks   []Hooks
}

// Registry resolves host operations by qualified name.
//
// Registry is not safe for concurrent use. It lives on the simulation goroutine
// together with the engine context it calls.
type Registry struct {
	gateway engine.Gateway
	local   *rand.Rand
	ops     map[string]*operation
	natives map[string]Native
	streams []string // Stack of rng_wrap keys, innermost last
}

// Option allows configuration of a Registry.
type Option func(*Registry)

// WithLocalSource sets the generator used for draws outside any wrapped
// operation. Default: a randomly seeded PCG, different on every peer.
func WithLocalSource(src rand.Source) Option {
	return func(r *Registry) {
		r.local = rand.New(src)
	}
}

// NewRegistry creates an empty registry that routes wrapped draws and
// identifier minting to gw.
func NewRegistry(gw engine.Gateway, opts ...Option) *Registry {
	r := &Registry{
		gateway: gw,
		local:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		ops:     make(map[string]*operation),
		natives: make(map[string]Native),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Gateway returns the effect gateway operations draw through.
func (r *Registry) Gateway() engine.Gateway {
	return r.gateway
}

// Define registers a Go-bodied operation.
func (r *Registry) Define(name string, body Body) error {
	if body == nil {
		return fmt.Errorf("define %s: body is required", name)
	}
	return r.add(&operation{name: name, body: body})
}

// DefineProgram registers an operation implemented by an instruction stream.
// Arguments passed to Invoke are available to ldarg.
func (r *Registry) DefineProgram(name string, instrs []rewrite.Instruction) error {
	if len(instrs) == 0 {
		return fmt.Errorf("define %s: empty program", name)
	}
	return r.add(&operation{name: name, program: slices.Clone(instrs)})
}

func (r *Registry) add(op *operation) error {
	if op.name == "" {
		return fmt.Errorf("operation name is required")
	}
	if _, exists := r.ops[op.name]; exists {
		return fmt.Errorf("duplicate host operation: %s", op.name)
	}
	r.ops[op.name] = op
	return nil
}

// Lookup resolves an operation by qualified name.
func (r *Registry) Lookup(name string) (Info, bool) {
	op, ok := r.ops[name]
	if !ok {
		return Info{}, false
	}
	return Info{Name: op.name, Program: op.program != nil, Hooks: len(op.hooks)}, true
}

// Names returns every registered operation name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for name := range r.ops {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Install attaches hooks to an operation for the rest of the process lifetime.
// Hooks run in installation order.
func (r *Registry) Install(name string, h Hooks) error {
	op, ok := r.ops[name]
	if !ok {
		return fmt.Errorf("install %s: %w", name, ErrUnknownOperation)
	}
	op.hooks = append(op.hooks, h)
	slog.Debug("hooks installed", "target", name, "hooks", len(op.hooks))
	return nil
}

// Instructions returns a copy of a program operation's instruction stream.
func (r *Registry) Instructions(name string) ([]rewrite.Instruction, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("instructions %s: %w", name, ErrUnknownOperation)
	}
	if op.program == nil {
		return nil, fmt.Errorf("instructions %s: operation has no instruction stream", name)
	}
	return slices.Clone(op.program), nil
}

// ReplaceInstructions swaps a program operation's instruction stream.
func (r *Registry) ReplaceInstructions(name string, instrs []rewrite.Instruction) error {
	op, ok := r.ops[name]
	if !ok {
		return fmt.Errorf("replace %s: %w", name, ErrUnknownOperation)
	}
	if op.program == nil {
		return fmt.Errorf("replace %s: operation has no instruction stream", name)
	}
	if len(instrs) == 0 {
		return fmt.Errorf("replace %s: empty program", name)
	}
	op.program = slices.Clone(instrs)
	return nil
}

// Invoke runs an operation with its hooks.
//
// Returns the body's result, or nil when a Before hook cancelled it.
func (r *Registry) Invoke(name string, subject engine.Subject, args ...any) (any, error) {
	op, ok := r.ops[name]
	if !ok {
		return nil, fmt.Errorf("invoke %s: %w", name, ErrUnknownOperation)
	}

	call := &Call{Target: name, Subject: subject, Args: args, reg: r}

	reached := 0
	var err error
	for _, h := range op.hooks {
		reached++
		if h.Before == nil {
			continue
		}
		var cancel bool
		cancel, err = h.Before(call)
		if err != nil || cancel {
			call.Cancelled = cancel
			break
		}
	}

	var result any
	if err == nil && !call.Cancelled {
		if op.program != nil {
			result, err = r.run(call, op.program)
		} else {
			result, err = op.body(call)
		}
	}

	for i := reached - 1; i >= 0; i-- {
		if after := op.hooks[i].After; after != nil {
			err = errors.Join(err, after(call))
		}
	}

	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", name, err)
	}
	return result, nil
}

// PushStream makes key the stream for draws until the matching PopStream.
func (r *Registry) PushStream(key string) {
	r.streams = append(r.streams, key)
}

// PopStream removes the innermost stream key.
func (r *Registry) PopStream() {
	if n := len(r.streams); n > 0 {
		r.streams = r.streams[:n-1]
	}
}

// stream returns the innermost stream key, if any.
func (r *Registry) stream() (string, bool) {
	if n := len(r.streams); n > 0 {
		return r.streams[n-1], true
	}
	return "", false
}
