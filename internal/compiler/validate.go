package compiler

import (
	"fmt"
	"strings"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
)

// Validation error codes (E200-E299)
const (
	ErrPatchSetEmpty     = "E200" // no descriptors
	ErrInvalidTarget     = "E201" // target is not "Type:Method"
	ErrUnknownShim       = "E202" // shim kind not recognized
	ErrRewriteMissing    = "E203" // rewrite_stream without rewrite block
	ErrRewriteUnexpected = "E204" // rewrite block on another shim
	ErrStreamUnexpected  = "E205" // stream key on a non-rng_wrap shim
	ErrDuplicateTarget   = "E206" // two descriptors for one target
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a descriptor set for consistency.
// Returns all errors found (does not fail-fast).
//
// Validate does not resolve targets against a host; that happens when the set
// is applied.
func Validate(descs []ir.PatchDescriptor) []ValidationError {
	var errs []ValidationError

	if len(descs) == 0 {
		return []ValidationError{{
			Field:   "patch",
			Message: "at least one descriptor is required",
			Code:    ErrPatchSetEmpty,
		}}
	}

	seen := make(map[string]int)
	for i, d := range descs {
		field := fmt.Sprintf("patch[%d]", i)
		if d.Target != "" {
			field = fmt.Sprintf("patch.%q", d.Target)
		}

		// E201: target shape
		if !validTarget(d.Target) {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("target %q must be a qualified \"Type:Method\" name", d.Target),
				Code:    ErrInvalidTarget,
			})
		}

		// E206: one descriptor per target
		if first, dup := seen[d.Target]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate descriptor for %q (first at patch[%d])", d.Target, first),
				Code:    ErrDuplicateTarget,
			})
		} else {
			seen[d.Target] = i
		}

		// E202: shim kind
		if !ir.ValidShimKinds[d.Shim] {
			errs = append(errs, ValidationError{
				Field:   field + ".shim",
				Message: fmt.Sprintf("unknown shim %q", d.Shim),
				Code:    ErrUnknownShim,
			})
			continue
		}

		// E203/E204: rewrite block belongs to rewrite_stream only
		switch {
		case d.Shim == ir.ShimRewriteStream && d.Rewrite == nil:
			errs = append(errs, ValidationError{
				Field:   field + ".rewrite",
				Message: "rewrite_stream requires rewrite.call and rewrite.snapshot",
				Code:    ErrRewriteMissing,
			})
		case d.Shim != ir.ShimRewriteStream && d.Rewrite != nil:
			errs = append(errs, ValidationError{
				Field:   field + ".rewrite",
				Message: fmt.Sprintf("rewrite is only valid for rewrite_stream, not %s", d.Shim),
				Code:    ErrRewriteUnexpected,
			})
		}

		// E205: stream key belongs to rng_wrap only
		if d.Stream != "" && d.Shim != ir.ShimRngWrap {
			errs = append(errs, ValidationError{
				Field:   field + ".stream",
				Message: fmt.Sprintf("stream is only valid for rng_wrap, not %s", d.Shim),
				Code:    ErrStreamUnexpected,
			})
		}
	}

	return errs
}

// validTarget reports whether target looks like "Namespace.Type:Method".
func validTarget(target string) bool {
	typ, method, ok := strings.Cut(target, ":")
	if !ok || typ == "" || method == "" {
		return false
	}
	if strings.Contains(method, ":") {
		return false
	}
	return !strings.ContainsAny(target, " \t\n")
}
