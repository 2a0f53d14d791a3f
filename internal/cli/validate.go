package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/T6751/Multiplayer-Compatibility/internal/compiler"
	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/patch"
	"github.com/T6751/Multiplayer-Compatibility/internal/sim"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool                       `json:"valid"`
	Patches int                        `json:"patches"`
	Errors  []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [patch-dir]",
		Short: "Validate patch descriptors",
		Long: `Validate CUE patch descriptors without starting a session.

Compiles every descriptor under the "patch" field, checks the set for
consistency, then applies it to a fresh reference colony so unknown targets,
missing snapshot constructors and rewrites without a call site are reported
the same way they would be at startup.

The directory defaults to MPCOMPAT_PATCH_DIR.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := rootOpts.PatchDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadPatches(dir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, dir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr.Pos),
			})
		}
	}

	if len(loadResult.Patches) > 0 {
		validationErrors = append(validationErrors, ValidatePatches(loadResult.Patches, formatter)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, len(loadResult.Patches))
}

// ValidatePatches checks a descriptor set for consistency and, when it is
// consistent, resolves it against a fresh reference colony.
func ValidatePatches(descs []ir.PatchDescriptor, formatter *OutputFormatter) []compiler.ValidationError {
	for _, d := range descs {
		formatter.VerboseLog("Validating %s (%s)", d.Target, d.Shim)
	}

	if errs := compiler.Validate(descs); len(errs) > 0 {
		return errs
	}

	ctx := engine.New()
	colony, err := sim.New(ctx)
	if err != nil {
		return []compiler.ValidationError{{Field: "host", Message: err.Error(), Code: ErrCodeGeneric}}
	}

	_, err = patch.Apply(descs, colony.Host(), ctx)
	if err == nil {
		return nil
	}

	var le *patch.LoadError
	if !errors.As(err, &le) {
		return []compiler.ValidationError{{Field: "apply", Message: err.Error(), Code: ErrCodeGeneric}}
	}
	errs := make([]compiler.ValidationError, len(le.Issues))
	for i, issue := range le.Issues {
		errs[i] = compiler.ValidationError{
			Field:   fmt.Sprintf("patch.%q", issue.Target),
			Message: issue.Message,
			Code:    issue.Code,
		}
	}
	return errs
}

func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

func outputValidateSuccess(formatter *OutputFormatter, n int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Patches: n})
	}

	formatter.Pass("✓ All patches valid (%d descriptor(s))", n)
	return nil
}

// outputValidateError reports a load failure. These are command errors (exit 2).
func outputValidateError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return failure
	}

	formatter.Fail("✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return failure
}
