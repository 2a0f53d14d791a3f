package cli

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/T6751/Multiplayer-Compatibility/internal/ir"
	"github.com/T6751/Multiplayer-Compatibility/internal/store"
)

// CompareOptions holds flags for the compare command.
type CompareOptions struct {
	*RootOptions
	Database string
}

// CompareResult is the JSON payload of the compare command.
type CompareResult struct {
	*store.Comparison
	PatchesMatch bool `json:"patches_match"`
	SeedsMatch   bool `json:"seeds_match"`
}

// NewCompareCommand creates the compare command.
func NewCompareCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompareOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compare [session-a session-b]",
		Short: "Find the first tick where two journaled sessions diverge",
		Long: `Compare two sessions recorded in a desync journal.

Tick checksums are compared in tick order; at the first mismatch the tick's
events are compared one by one and the first differing pair is shown.
Without arguments the journaled sessions are listed.

Exit codes:
  0 - Sessions are in sync (or sessions listed)
  1 - Sessions diverged
  2 - Command error (missing journal or session)

Example:
  mpcompat compare --db ./desync.db
  mpcompat compare --db ./desync.db 0192f1c4-... 0192f1c4-...`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", rootOpts.DB, "path to the desync journal (required)")

	return cmd
}

func runCompare(opts *CompareOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		return NewExitError(ExitCommandError, "--db is required (or set MPCOMPAT_DB)")
	}
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("journal not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "journal not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if len(args) == 0 {
		return listSessions(formatter, st, cmd)
	}

	sessA, err := st.ReadSession(ctx, args[0])
	if err != nil {
		return sessionError(formatter, args[0], err)
	}
	sessB, err := st.ReadSession(ctx, args[1])
	if err != nil {
		return sessionError(formatter, args[1], err)
	}

	cmp, err := st.CompareSessions(ctx, sessA.ID, sessB.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "compare failed", err)
	}

	result := CompareResult{
		Comparison:   cmp,
		PatchesMatch: sessA.PatchHash == sessB.PatchHash,
		SeedsMatch:   sessA.Seed == sessB.Seed,
	}

	if opts.Format == "json" {
		status := "ok"
		if !cmp.InSync() {
			status = "error"
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		outputCompareText(formatter, sessA, sessB, result)
	}

	if !cmp.InSync() {
		return NewExitError(ExitFailure, fmt.Sprintf("sessions diverge at tick %d", cmp.Divergence.Tick))
	}
	return nil
}

func listSessions(f *OutputFormatter, st *store.Store, cmd *cobra.Command) error {
	sessions, err := st.ListSessions(cmd.Context())
	if err != nil {
		_ = f.Error(ErrCodeJournal, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}

	if f.Format == "json" {
		if sessions == nil {
			sessions = []store.Session{}
		}
		return f.Success(sessions)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(f.Writer, "No sessions journaled.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(f.Writer, "%s  %-8s seed %d  patches %s\n", s.ID, s.Peer, s.Seed, shortHash(s.PatchHash))
	}
	return nil
}

func sessionError(f *OutputFormatter, id string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("session not found: %s", id)
		_ = f.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}
	_ = f.Error(ErrCodeJournal, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to read session", err)
}

func outputCompareText(f *OutputFormatter, a, b store.Session, r CompareResult) {
	fmt.Fprintf(f.Writer, "A: %s (%s, seed %d, patches %s)\n", a.ID, a.Peer, a.Seed, shortHash(a.PatchHash))
	fmt.Fprintf(f.Writer, "B: %s (%s, seed %d, patches %s)\n", b.ID, b.Peer, b.Seed, shortHash(b.PatchHash))
	if !r.SeedsMatch {
		f.Note("! seeds differ")
	}
	if !r.PatchesMatch {
		f.Note("! patch sets differ")
	}

	if d := r.Divergence; d != nil {
		f.Fail("✗ Desync at tick %d", d.Tick)
		fmt.Fprintf(f.Writer, "  checksum A: %s\n", d.ChecksumA)
		fmt.Fprintf(f.Writer, "  checksum B: %s\n", d.ChecksumB)
		fmt.Fprintf(f.Writer, "  first differing event #%d\n", d.Index)
		fmt.Fprintf(f.Writer, "    A: %s\n", formatEvent(d.EventA))
		fmt.Fprintf(f.Writer, "    B: %s\n", formatEvent(d.EventB))
		return
	}

	f.Pass("✓ In sync through %d tick(s)", r.Compared)
	if r.ExtraA > 0 {
		f.Note("  A closed %d more tick(s)", r.ExtraA)
	}
	if r.ExtraB > 0 {
		f.Note("  B closed %d more tick(s)", r.ExtraB)
	}
}

func formatEvent(ev *ir.Event) string {
	if ev == nil {
		return "(none)"
	}
	s := fmt.Sprintf("seq %d %s", ev.Seq, ev.Kind)
	if ev.Key != "" {
		s += " " + ev.Key
	}
	if ev.Subject != "" {
		s += " subject=" + ev.Subject
	}
	if ev.Kind == ir.EventDraw {
		s += fmt.Sprintf(" pos=%d value=%d", ev.Pos, ev.Value)
	} else if ev.Value != 0 {
		s += fmt.Sprintf(" value=%d", ev.Value)
	}
	return s
}

func shortHash(h string) string {
	if h == "" {
		return "none"
	}
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
