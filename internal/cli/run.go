package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/T6751/Multiplayer-Compatibility/internal/engine"
	"github.com/T6751/Multiplayer-Compatibility/internal/harness"
	"github.com/T6751/Multiplayer-Compatibility/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Peers    int
	Filter   string // scenario filter (glob pattern on the file name)

	// Sessions overrides how journaled sessions are named (for testing).
	// If nil, every peer gets a UUIDv7 session ID.
	Sessions func(peer string) engine.SessionIDGenerator
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	Peers    int      `json:"peers"`
	Sessions []string `json:"sessions,omitempty"`
	Errors   []string `json:"errors,omitempty"`
}

// RunResult holds the overall run result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
	Database  string           `json:"database,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>",
		Short: "Run lockstep scenarios across simulated peers",
		Long: `Run YAML lockstep scenarios.

Every scenario starts N peers of the reference colony with the same seed and
patch set, feeds them the same replicated commands plus per-peer local calls,
and checks the scenario's assertions against the peers' traces.

With --db every peer's session is recorded into the desync journal; use
"mpcompat compare" on two of the printed session IDs to find where they split.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, unreadable scenario, journal errors)

Examples:
  mpcompat run ./scenarios
  mpcompat run ./scenarios/ritual_duties.yaml --db ./desync.db
  mpcompat run ./scenarios --filter "haul_*" --peers 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", opts.DB, "path to the desync journal (optional)")
	cmd.Flags().IntVar(&opts.Peers, "peers", opts.RootOptions.Peers, "override every scenario's peer count")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runScenarios(opts *RunOptions, path string, cmd *cobra.Command) error {
	if opts.Peers < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--peers must not be negative, got %d", opts.Peers))
	}

	files, err := harness.Discover(path)
	if err != nil {
		var nf *harness.ScenarioNotFoundError
		if errors.As(err, &nf) {
			return NewExitError(ExitCommandError, err.Error())
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runOpts := []harness.Option{harness.WithPeers(opts.Peers)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()

		sessions := opts.Sessions
		if sessions == nil {
			sessions = func(string) engine.SessionIDGenerator { return engine.UUIDv7Generator{} }
		}
		runOpts = append(runOpts, harness.WithJournal(st), harness.WithSessionIDs(sessions))
	}

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Database:  opts.Database,
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	for _, file := range files {
		if ctx.Err() != nil {
			slog.Info("run interrupted", "remaining", len(files)-result.Total)
			break
		}

		sr := runScenario(ctx, file, runOpts, formatter)
		result.Scenarios = append(result.Scenarios, sr)
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := outputRunJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputRunSummary(formatter, result)
	}

	if ctx.Err() != nil {
		return WrapExitError(ExitCommandError, "run interrupted", ctx.Err())
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total))
	}
	return nil
}

// filterScenarios keeps files whose base name, without extension, matches
// the glob pattern.
func filterScenarios(files []string, pattern string) ([]string, error) {
	if pattern == "" {
		return files, nil
	}
	var kept []string
	for _, f := range files {
		name := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		matched, err := filepath.Match(pattern, name)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, f)
		}
	}
	return kept, nil
}

// runScenario executes one scenario file and prints its text line.
func runScenario(ctx context.Context, file string, runOpts []harness.Option, f *OutputFormatter) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		f.Fail("✗ %s", sr.Name)
		f.Fail("  Load error: %v", err)
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		f.Fail("✗ %s", sr.Name)
		f.Fail("  Execution error: %v", err)
		return sr
	}

	sr.Pass = result.Pass
	sr.Peers = len(result.Peers)
	sr.Errors = result.Errors
	for _, p := range result.Peers {
		sr.Sessions = append(sr.Sessions, p.Session)
	}

	if sr.Pass {
		f.Pass("✓ %s (%d peers)", sr.Name, sr.Peers)
	} else {
		f.Fail("✗ %s (%d peers)", sr.Name, sr.Peers)
		for _, e := range sr.Errors {
			f.Fail("  %s", e)
		}
	}
	for _, p := range result.Peers {
		f.VerboseLog("  %s: session %s, %d events, %d ticks", p.Name, p.Session, len(p.Trace), len(p.Checksums))
		for _, e := range p.StepErrors {
			f.VerboseLog("  %s: %s", p.Name, e)
		}
	}
	return sr
}

func outputRunJSON(f *OutputFormatter, result RunResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}
	encoder := json.NewEncoder(f.Writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: status, Data: result})
}

func outputRunSummary(f *OutputFormatter, result RunResult) {
	fmt.Fprintln(f.Writer)
	line := fmt.Sprintf("%d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		f.Fail("%s", line)
	} else {
		f.Pass("%s", line)
	}
	if result.Database != "" {
		f.Note("Sessions journaled to %s", result.Database)
	}
}
