package patch

import (
	_ "embed"

	"cuelang.org/go/cue"

	"github.com/T6751/Multiplayer-Compatibility/internal/compiler"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

//go:embed builtin.cue
var builtinSource []byte

// Builtin compiles the descriptor set shipped with the binary.
func Builtin(ctx *cue.Context) ([]ir.PatchDescriptor, error) {
	return compiler.CompileSource(ctx, "builtin.cue", builtinSource)
}
