package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/cobra"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/patch"
	"github.com/T6751/Multiplayer-Compatibility/internal/rewrite"
)

// RewriteOptions holds flags for the rewrite command.
type RewriteOptions struct {
	*RootOptions
	Call     string
	Snapshot string
	Target   string // take call and snapshot from a builtin rewrite_stream descriptor
}

// RewriteResult is the JSON payload of the rewrite command.
type RewriteResult struct {
	Call         string   `json:"call"`
	Snapshot     string   `json:"snapshot"`
	Sites        int      `json:"sites"`
	Instructions []string `json:"instructions"`
}

// NewRewriteCommand creates the rewrite command.
func NewRewriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RewriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rewrite <listing-file|->",
		Short: "Preview a snapshot rewrite of an instruction listing",
		Long: `Insert a snapshot constructor after every call to a method in a text
instruction listing and print the result.

The listing has one instruction per line ("callvirt Type:Method"); blank lines
and lines starting with '#' are ignored. Use "-" to read from stdin.

Examples:
  mpcompat rewrite --call Verse.ListerHaulables:ThingsPotentiallyNeedingHauling \
    --snapshot 'System.Collections.Generic.List` + "`" + `1<Verse.Thing>:.ctor(IEnumerable)' haul.il
  mpcompat rewrite --target PickUpAndHaul.WorkGiver_HaulToInventory:PotentialWorkThingsGlobal haul.il`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRewrite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Call, "call", "", "operand of the call whose result is snapshotted")
	cmd.Flags().StringVar(&opts.Snapshot, "snapshot", "", "operand of the inserted newobj")
	cmd.Flags().StringVar(&opts.Target, "target", "", "use the rewrite of this builtin descriptor")

	return cmd
}

func runRewrite(opts *RewriteOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	call, snapshot := opts.Call, opts.Snapshot
	if opts.Target != "" {
		spec, err := builtinRewrite(opts.Target)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --target", err)
		}
		if call == "" {
			call = spec.Call
		}
		if snapshot == "" {
			snapshot = spec.Snapshot
		}
	}

	rw, err := rewrite.NewSnapshotRewriter(call, snapshot)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid rewrite", err)
	}

	instrs, err := readListing(path, cmd.InOrStdin())
	if err != nil {
		code := ErrCodeParseFailed
		if errors.Is(err, os.ErrNotExist) {
			code = ErrCodeNotFound
		}
		_ = formatter.Error(code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read listing", err)
	}

	out, err := rw.Rewrite(instrs)
	if err != nil {
		_ = formatter.Error(patch.ErrCodeRewriteFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "rewrite failed", err)
	}

	result := RewriteResult{
		Call:         call,
		Snapshot:     snapshot,
		Sites:        len(out) - len(instrs),
		Instructions: make([]string, len(out)),
	}
	for i, in := range out {
		result.Instructions[i] = in.String()
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}

	formatter.VerboseLog("Inserted %d snapshot(s) of %s", result.Sites, call)
	if err := rewrite.Format(formatter.Writer, out); err != nil {
		return WrapExitError(ExitCommandError, "failed to write listing", err)
	}
	return nil
}

func readListing(path string, stdin io.Reader) ([]rewrite.Instruction, error) {
	if path == "-" {
		return rewrite.Parse(stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	instrs, err := rewrite.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return instrs, nil
}

// builtinRewrite returns the rewrite of the builtin rewrite_stream descriptor
// for target.
func builtinRewrite(target string) (*ir.RewriteSpec, error) {
	descs, err := patch.Builtin(cuecontext.New())
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(descs, func(d ir.PatchDescriptor) bool {
		return d.Target == target && d.Shim == ir.ShimRewriteStream
	})
	if i < 0 {
		return nil, fmt.Errorf("no builtin rewrite_stream descriptor for %s", target)
	}
	return descs[i].Rewrite, nil
}
