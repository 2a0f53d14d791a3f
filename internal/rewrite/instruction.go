package rewrite

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// OpCode is an instruction mnemonic understood by the host interpreter.
type OpCode string

const (
	OpNop      OpCode = "nop"
	OpLdarg    OpCode = "ldarg"    // Push argument n
	OpLdloc    OpCode = "ldloc"    // Push local n
	OpStloc    OpCode = "stloc"    // Pop into local n
	OpPop      OpCode = "pop"      // Discard top of stack
	OpCall     OpCode = "call"     // Call a static native
	OpCallvirt OpCode = "callvirt" // Call an instance native (receiver first)
	OpNewobj   OpCode = "newobj"   // Construct via a native constructor
	OpRet      OpCode = "ret"      // Return top of stack (or nothing)
)

// validOpCodes lists every opcode with whether it takes an operand.
var validOpCodes = map[OpCode]bool{
	OpNop:      false,
	OpLdarg:    true,
	OpLdloc:    true,
	OpStloc:    true,
	OpPop:      false,
	OpCall:     true,
	OpCallvirt: true,
	OpNewobj:   true,
	OpRet:      false,
}

// IsCall reports whether the opcode invokes a method.
func (op OpCode) IsCall() bool {
	return op == OpCall || op == OpCallvirt
}

// Instruction is one element of a routine's instruction stream.
type Instruction struct {
	Op      OpCode `json:"op"`
	Operand string `json:"operand,omitempty"` // Qualified method name or slot index
}

// String returns the listing form of the instruction.
func (i Instruction) String() string {
	if i.Operand == "" {
		return string(i.Op)
	}
	return string(i.Op) + " " + i.Operand
}

// Slot parses the operand of ldarg, ldloc and stloc.
func (i Instruction) Slot() (int, error) {
	n, err := strconv.Atoi(i.Operand)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s: invalid slot %q", i.Op, i.Operand)
	}
	return n, nil
}

// ParseError reports a malformed listing line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Parse reads a text listing: one instruction per line, the mnemonic followed
// by an optional operand. Blank lines and lines starting with '#' are ignored.
func Parse(r io.Reader) ([]Instruction, error) {
	var out []Instruction

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		op, operand, _ := strings.Cut(text, " ")
		operand = strings.TrimSpace(operand)
		takesOperand, known := validOpCodes[OpCode(op)]
		switch {
		case !known:
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("unknown opcode %q", op)}
		case takesOperand && operand == "":
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("%s requires an operand", op)}
		case !takesOperand && operand != "":
			return nil, &ParseError{Line: line, Message: fmt.Sprintf("%s takes no operand", op)}
		}
		out = append(out, Instruction{Op: OpCode(op), Operand: operand})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read listing: %w", err)
	}
	return out, nil
}

// ParseString is Parse over a string.
func ParseString(s string) ([]Instruction, error) {
	return Parse(strings.NewReader(s))
}

// MustParse is like ParseString but panics on error.
// Use only for listings compiled into the binary.
func MustParse(s string) []Instruction {
	instrs, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return instrs
}

// Format writes instrs in listing form, one per line.
func Format(w io.Writer, instrs []Instruction) error {
	for _, in := range instrs {
		if _, err := fmt.Fprintln(w, in.String()); err != nil {
			return err
		}
	}
	return nil
}

// FormatString returns the listing form of instrs.
func FormatString(instrs []Instruction) string {
	var b strings.Builder
	_ = Format(&b, instrs)
	return b.String()
}
