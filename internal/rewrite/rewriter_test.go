package rewrite

import (
	"errors"
	"os"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	haulCall     = "Verse.ListerHaulables:ThingsPotentiallyNeedingHauling"
	haulSnapshot = "System.Collections.Generic.List`1<Verse.Thing>:.ctor(IEnumerable)"
)

func newHaulRewriter(t *testing.T) *SnapshotRewriter {
	t.Helper()
	r, err := NewSnapshotRewriter(haulCall, haulSnapshot)
	require.NoError(t, err)
	return r
}

func TestRewrite_SingleSiteInsertsExactlyOne(t *testing.T) {
	in := []Instruction{
		{Op: OpLdarg, Operand: "0"},
		{Op: OpCallvirt, Operand: haulCall},
		{Op: OpRet},
	}

	out, err := newHaulRewriter(t).Rewrite(in)
	require.NoError(t, err)

	require.Len(t, out, len(in)+1)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, in[1], out[1])
	assert.Equal(t, Instruction{Op: OpNewobj, Operand: haulSnapshot}, out[2], "snapshot follows the call immediately")
	assert.Equal(t, in[2], out[3])
}

func TestRewrite_DoesNotModifyInput(t *testing.T) {
	in := []Instruction{
		{Op: OpCallvirt, Operand: haulCall},
		{Op: OpRet},
	}
	before := append([]Instruction(nil), in...)

	_, err := newHaulRewriter(t).Rewrite(in)
	require.NoError(t, err)
	assert.Equal(t, before, in)
}

func TestRewrite_EverySiteIsPatched(t *testing.T) {
	in := []Instruction{
		{Op: OpCallvirt, Operand: haulCall},
		{Op: OpPop},
		{Op: OpCall, Operand: haulCall},
		{Op: OpRet},
	}

	out, err := newHaulRewriter(t).Rewrite(in)
	require.NoError(t, err)
	assert.Equal(t, []Instruction{
		{Op: OpCallvirt, Operand: haulCall},
		{Op: OpNewobj, Operand: haulSnapshot},
		{Op: OpPop},
		{Op: OpCall, Operand: haulCall},
		{Op: OpNewobj, Operand: haulSnapshot},
		{Op: OpRet},
	}, out)
}

func TestRewrite_MissingCallSiteIsFatal(t *testing.T) {
	tests := []struct {
		name   string
		instrs []Instruction
	}{
		{"empty routine", nil},
		{"different call", []Instruction{{Op: OpCallvirt, Operand: "Verse.ListerHaulables:Notify_Spawned"}, {Op: OpRet}}},
		{"operand on non-call", []Instruction{{Op: OpNewobj, Operand: haulCall}, {Op: OpRet}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newHaulRewriter(t).Rewrite(tt.instrs)
			require.Error(t, err)
			assert.Nil(t, out, "no silent pass-through")

			var re *RewriteError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, haulCall, re.Call)
			assert.Contains(t, err.Error(), "call site not found")
		})
	}
}

func TestNewSnapshotRewriter_RequiresOperands(t *testing.T) {
	_, err := NewSnapshotRewriter("", haulSnapshot)
	assert.Error(t, err)

	_, err = NewSnapshotRewriter(haulCall, "")
	assert.Error(t, err)
}

func TestRewrite_HaulListingGolden(t *testing.T) {
	f, err := os.Open("testdata/haul_to_inventory.lst")
	require.NoError(t, err)
	defer f.Close()

	in, err := Parse(f)
	require.NoError(t, err)

	out, err := newHaulRewriter(t).Rewrite(in)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "haul_to_inventory", []byte(FormatString(out)))
}
