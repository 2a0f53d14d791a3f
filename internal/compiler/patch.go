package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

//go:embed schema.cue
var schemaSource string

// CompileSource compiles a CUE patch file into descriptors.
//
// The file declares descriptors under the top-level "patch" field, keyed by
// qualified target name:
//
//	patch: "Verse.FreezeManager:DoIceMelting": {
//		shim:   "rng_wrap"
//		reason: "ice melting draws randomness during map tick"
//	}
func CompileSource(ctx *cue.Context, filename string, src []byte) ([]ir.PatchDescriptor, error) {
	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileValue(v)
}

// CompileValue compiles every descriptor under the "patch" field of v.
// v is unified with the descriptor schema first, so unknown fields and shim
// kinds are reported with their source position.
func CompileValue(v cue.Value) ([]ir.PatchDescriptor, error) {
	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("descriptor schema: %w", err)
	}

	v = v.Unify(schema)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	patchVal := v.LookupPath(cue.ParsePath("patch"))
	if !patchVal.Exists() {
		return nil, &CompileError{
			Field:   "patch",
			Message: "no patch descriptors found",
			Pos:     v.Pos(),
		}
	}
	if err := patchVal.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	iter, err := patchVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var descs []ir.PatchDescriptor
	for iter.Next() {
		d, err := CompilePatch(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		descs = append(descs, *d)
	}
	if len(descs) == 0 {
		return nil, &CompileError{
			Field:   "patch",
			Message: "no patch descriptors found",
			Pos:     patchVal.Pos(),
		}
	}
	return descs, nil
}

// CompilePatch parses one descriptor struct for target.
func CompilePatch(target string, v cue.Value) (*ir.PatchDescriptor, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	d := &ir.PatchDescriptor{Target: target}

	shim, err := requiredString(v, "shim")
	if err != nil {
		return nil, err
	}
	d.Shim = ir.ShimKind(shim)

	if d.Stream, err = optionalString(v, "stream"); err != nil {
		return nil, err
	}
	if d.Mod, err = optionalString(v, "mod"); err != nil {
		return nil, err
	}
	if d.Reason, err = optionalString(v, "reason"); err != nil {
		return nil, err
	}

	rewriteVal := v.LookupPath(cue.ParsePath("rewrite"))
	if rewriteVal.Exists() {
		call, err := requiredString(rewriteVal, "call")
		if err != nil {
			return nil, err
		}
		snapshot, err := requiredString(rewriteVal, "snapshot")
		if err != nil {
			return nil, err
		}
		d.Rewrite = &ir.RewriteSpec{Call: call, Snapshot: snapshot}
	}

	return d, nil
}

func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     userPos(positions),
		}
	}

	return err
}

// userPos prefers a position in the patch file over one in the schema.
func userPos(positions []token.Pos) token.Pos {
	for _, p := range positions {
		if p.Filename() != "schema.cue" {
			return p
		}
	}
	return positions[0]
}
