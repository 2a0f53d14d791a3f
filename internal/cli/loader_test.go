package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/T6751/Multiplayer-Compatibility/internal/compiler"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

func loadErrorCode(t *testing.T, err error) string {
	t.Helper()
	var le *LoadError
	require.True(t, errors.As(err, &le), "want *LoadError, got %T: %v", err, err)
	return le.Code
}

func TestLoadPatches_Valid(t *testing.T) {
	result, errs := LoadPatches(filepath.Join("testdata", "patches", "valid"), LoadModeFailFast)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 1, result.FileCount)
	require.Len(t, result.Patches, 2)
	assert.Equal(t, "Verse.FreezeManager:DoIceMelting", result.Patches[0].Target)
	assert.Equal(t, ir.ShimRngWrap, result.Patches[0].Shim)
	assert.Equal(t, "ice melting draws randomness during map tick", result.Patches[0].Reason)
	assert.Equal(t, "RimWorld.LordToil_Ritual:UpdateAllDuties", result.Patches[1].Target)
	assert.Equal(t, ir.ShimDeferAndRetry, result.Patches[1].Shim)
}

func TestLoadPatches_ShippedDirectory(t *testing.T) {
	result, errs := LoadPatches(filepath.Join("..", "..", "patches"), LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)

	assert.Equal(t, 2, result.FileCount)
	assert.Len(t, result.Patches, 5)

	var rewrites int
	for _, d := range result.Patches {
		if d.Shim == ir.ShimRewriteStream {
			rewrites++
			require.NotNil(t, d.Rewrite)
			assert.Equal(t, "Verse.ListerHaulables:ThingsPotentiallyNeedingHauling", d.Rewrite.Call)
		}
	}
	assert.Equal(t, 1, rewrites)
}

func TestLoadPatches_DirectoryErrors(t *testing.T) {
	file := filepath.Join(t.TempDir(), "patch.cue")
	require.NoError(t, os.WriteFile(file, []byte("package x\n"), 0644))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing", "/nonexistent/patches", ErrCodeNotFound},
		{"not_a_directory", file, ErrCodeNotFound},
		{"empty", t.TempDir(), ErrCodeNoFiles},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, errs := LoadPatches(tt.dir, LoadModeFailFast)
			assert.Nil(t, result)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.code, loadErrorCode(t, errs[0]))
		})
	}
}

func TestLoadPatches_SyntaxError(t *testing.T) {
	result, errs := LoadPatches(filepath.Join("testdata", "patches", "bad_syntax"), LoadModeFailFast)
	assert.Nil(t, result)
	require.Len(t, errs, 1)
	assert.Contains(t, []string{ErrCodeLoadFailed, ErrCodeBuildFailed}, loadErrorCode(t, errs[0]))
}

func TestLoadPatches_NoPatchField(t *testing.T) {
	result, errs := LoadPatches(filepath.Join("testdata", "patches", "no_patch"), LoadModeFailFast)
	require.NotNil(t, result)
	require.Len(t, errs, 1)
	assert.Equal(t, compiler.ErrPatchSetEmpty, loadErrorCode(t, errs[0]))
}

func TestLoadPatches_CompileErrors(t *testing.T) {
	dir := t.TempDir()
	src := `package fixtures

patch: "Verse.A:One": {
	reason: "no shim"
}

patch: "Verse.B:Two": {
	shim: "rng_wrap"
}

patch: "Verse.C:Three": {
	shim: "rewrite_stream"
	rewrite: {
		call: "Verse.List:Items"
	}
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fixes.cue"), []byte(src), 0644))

	t.Run("fail_fast", func(t *testing.T) {
		result, errs := LoadPatches(dir, LoadModeFailFast)
		require.NotNil(t, result)
		require.Len(t, errs, 1)
		assert.Equal(t, compiler.ErrUnknownShim, loadErrorCode(t, errs[0]))
		assert.Empty(t, result.Patches)
	})

	t.Run("collect_all", func(t *testing.T) {
		result, errs := LoadPatches(dir, LoadModeCollectAll)
		require.NotNil(t, result)
		require.Len(t, errs, 2)
		assert.Equal(t, compiler.ErrUnknownShim, loadErrorCode(t, errs[0]))
		assert.Equal(t, compiler.ErrRewriteMissing, loadErrorCode(t, errs[1]))
		require.Len(t, result.Patches, 1)
		assert.Equal(t, "Verse.B:Two", result.Patches[0].Target)
	})
}

func TestLoadError_Format(t *testing.T) {
	err := &LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in ./patches"}
	assert.Equal(t, "E003: no CUE files found in ./patches", err.Error())
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := map[string]string{
		"patch":    compiler.ErrPatchSetEmpty,
		"target":   compiler.ErrInvalidTarget,
		"shim":     compiler.ErrUnknownShim,
		"rewrite":  compiler.ErrRewriteMissing,
		"call":     compiler.ErrRewriteMissing,
		"snapshot": compiler.ErrRewriteMissing,
		"stream":   compiler.ErrStreamUnexpected,
		"cue":      ErrCodeGeneric,
	}
	for field, want := range tests {
		assert.Equal(t, want, MapFieldToErrorCode(field), field)
	}
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "b.cue"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0644))

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "nested", "b.cue"),
	}, files)
}
