package host

import (
	"fmt"

	"github.com/T6751/Multiplayer-Compatibility/internal/rewrite"
)

// Native is a method or constructor that program operations can call.
type Native struct {
	Arity int  // Values popped from the stack, receiver first
	Void  bool // Pushes no result
	Fn    func(call *Call, args []any) (any, error)
}

// DefineNative registers a method or constructor by qualified name.
func (r *Registry) DefineNative(name string, n Native) error {
	if name == "" {
		return fmt.Errorf("native name is required")
	}
	if n.Fn == nil {
		return fmt.Errorf("native %s: fn is required", name)
	}
	if n.Arity < 0 {
		return fmt.Errorf("native %s: negative arity", name)
	}
	if _, exists := r.natives[name]; exists {
		return fmt.Errorf("duplicate native: %s", name)
	}
	r.natives[name] = n
	return nil
}

// HasNative reports whether a native is registered under name.
func (r *Registry) HasNative(name string) bool {
	_, ok := r.natives[name]
	return ok
}

// ProgramError reports a fault while interpreting an instruction stream.
type ProgramError struct {
	Target string
	PC     int
	Instr  rewrite.Instruction
	Err    error
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s@%d (%s): %v", e.Target, e.PC, e.Instr, e.Err)
}

func (e *ProgramError) Unwrap() error {
	return e.Err
}

// run interprets instrs for call. Execution ends at ret or after the last
// instruction; the top of the stack at that point is the result.
func (r *Registry) run(call *Call, instrs []rewrite.Instruction) (any, error) {
	var stack []any
	locals := make(map[int]any)

	pop := func(n int) ([]any, error) {
		if len(stack) < n {
			return nil, fmt.Errorf("stack underflow: need %d, have %d", n, len(stack))
		}
		vals := append([]any(nil), stack[len(stack)-n:]...)
		stack = stack[:len(stack)-n]
		return vals, nil
	}

	for pc, in := range instrs {
		fault := func(err error) error {
			return &ProgramError{Target: call.Target, PC: pc, Instr: in, Err: err}
		}

		switch in.Op {
		case rewrite.OpNop:

		case rewrite.OpLdarg:
			slot, err := in.Slot()
			if err != nil {
				return nil, fault(err)
			}
			if slot >= len(call.Args) {
				return nil, fault(fmt.Errorf("argument %d out of range", slot))
			}
			stack = append(stack, call.Args[slot])

		case rewrite.OpLdloc:
			slot, err := in.Slot()
			if err != nil {
				return nil, fault(err)
			}
			stack = append(stack, locals[slot])

		case rewrite.OpStloc:
			slot, err := in.Slot()
			if err != nil {
				return nil, fault(err)
			}
			vals, err := pop(1)
			if err != nil {
				return nil, fault(err)
			}
			locals[slot] = vals[0]

		case rewrite.OpPop:
			if _, err := pop(1); err != nil {
				return nil, fault(err)
			}

		case rewrite.OpCall, rewrite.OpCallvirt, rewrite.OpNewobj:
			n, ok := r.natives[in.Operand]
			if !ok {
				return nil, fault(fmt.Errorf("unresolved method %s", in.Operand))
			}
			args, err := pop(n.Arity)
			if err != nil {
				return nil, fault(err)
			}
			if in.Op == rewrite.OpCallvirt && (len(args) == 0 || args[0] == nil) {
				return nil, fault(fmt.Errorf("null receiver"))
			}
			result, err := n.Fn(call, args)
			if err != nil {
				return nil, fault(err)
			}
			if !n.Void {
				stack = append(stack, result)
			}

		case rewrite.OpRet:
			return top(stack), nil

		default:
			return nil, fault(fmt.Errorf("unsupported opcode"))
		}
	}
	return top(stack), nil
}

func top(stack []any) any {
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1]
}
