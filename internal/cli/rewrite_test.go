package cli

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T6751/Multiplayer-Compatibility/internal/patch"
	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
)

var haulListing = filepath.Join("testdata", "listings", "haul.lst")

func TestRewriteListingGolden(t *testing.T) {
	out, _, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}),
		"--call", "Verse.ListerHaulables:ThingsPotentiallyNeedingHauling",
		"--snapshot", sim.ThingListCtor,
		haulListing)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "rewrite_haul", []byte(out))
}

func TestRewriteFromBuiltinTarget(t *testing.T) {
	out, errOut, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text", Verbose: true}),
		"--target", sim.PotentialWorkThingsGlobal, haulListing)
	require.NoError(t, err)
	assert.Contains(t, out, "newobj "+sim.ThingListCtor)
	assert.Contains(t, errOut, "Inserted 1 snapshot(s)")
}

func TestRewriteStdinJSON(t *testing.T) {
	cmd := NewRewriteCommand(&RootOptions{Format: "json"})
	cmd.SetIn(strings.NewReader("ldarg 0\ncallvirt Verse.List:Items\ncall Verse.List:Items\nret\n"))

	out, _, err := execute(t, cmd, "--call", "Verse.List:Items", "--snapshot", "Verse.List:.ctor", "-")
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   RewriteResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Sites)
	assert.Equal(t, []string{
		"ldarg 0",
		"callvirt Verse.List:Items",
		"newobj Verse.List:.ctor",
		"call Verse.List:Items",
		"newobj Verse.List:.ctor",
		"ret",
	}, resp.Data.Instructions)
}

func TestRewriteNoCallSite(t *testing.T) {
	out, _, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}),
		"--call", "Verse.Lister:Missing", "--snapshot", sim.ThingListCtor, haulListing)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, patch.ErrCodeRewriteFailed)
	assert.Contains(t, out, "call site not found")
}

func TestRewriteCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing_snapshot", []string{"--call", "Verse.List:Items", haulListing}, ErrCodeGeneric},
		{"unknown_target", []string{"--target", sim.DoIceMelting, haulListing}, ErrCodeNotFound},
		{"missing_listing", []string{"--call", "a:b", "--snapshot", "c:d", "/nonexistent/listing.lst"}, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewRewriteCommand(&RootOptions{Format: "text"}), tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.code+"]")
		})
	}
}

func TestRewriteMalformedListing(t *testing.T) {
	cmd := NewRewriteCommand(&RootOptions{Format: "text"})
	cmd.SetIn(strings.NewReader("ldarg 0\njump 4\n"))

	out, _, err := execute(t, cmd, "--call", "a:b", "--snapshot", "c:d", "-")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeParseFailed+"]")
	assert.Contains(t, out, `line 2: unknown opcode "jump"`)
}
