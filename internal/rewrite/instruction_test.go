package rewrite

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	src := `
# comment
ldarg 0
  callvirt   Verse.ListerHaulables:ThingsPotentiallyNeedingHauling
stloc 1
ldloc 1
ret
`
	instrs, err := ParseString(src)
	require.NoError(t, err)
	assert.Equal(t, []Instruction{
		{Op: OpLdarg, Operand: "0"},
		{Op: OpCallvirt, Operand: "Verse.ListerHaulables:ThingsPotentiallyNeedingHauling"},
		{Op: OpStloc, Operand: "1"},
		{Op: OpLdloc, Operand: "1"},
		{Op: OpRet},
	}, instrs)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		msg  string
	}{
		{"unknown opcode", "ldarg 0\njmp somewhere", 2, `unknown opcode "jmp"`},
		{"missing operand", "call", 1, "call requires an operand"},
		{"unexpected operand", "ret 1", 1, "ret takes no operand"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(tt.src)
			require.Error(t, err)

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.msg, pe.Message)
		})
	}
}

func TestFormat_RoundTripsListing(t *testing.T) {
	src := "ldarg 0\ncall A:B\nnewobj C:.ctor\nret\n"
	instrs := MustParse(src)
	assert.Equal(t, src, FormatString(instrs))
}

func TestInstruction_Slot(t *testing.T) {
	n, err := Instruction{Op: OpLdarg, Operand: "2"}.Slot()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = Instruction{Op: OpLdarg, Operand: "x"}.Slot()
	assert.Error(t, err)
	_, err = Instruction{Op: OpLdloc, Operand: "-1"}.Slot()
	assert.Error(t, err)
}

func TestMustParse_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParse("bogus") })
}
