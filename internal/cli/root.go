package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/T6751/Multiplayer-Compatibility/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Environment defaults, overridden by command flags.
	PatchDir string
	DB       string
	Peers    int
	LogLevel slog.Level
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mpcompat CLI.
// Flag defaults come from the MPCOMPAT_* environment.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cfg, cfgErr := config.Load()
	if cfgErr == nil {
		opts.PatchDir = cfg.PatchDir
		opts.DB = cfg.DB
		opts.Peers = cfg.Peers
		opts.LogLevel, _ = cfg.Level()
	} else {
		cfg.Format = "text"
		opts.LogLevel = slog.LevelWarn
	}

	cmd := &cobra.Command{
		Use:   "mpcompat",
		Short: "mpcompat - lockstep multiplayer compatibility substrate",
		Long: `Tools for the lockstep synchronization substrate: validate patch
descriptors, run lockstep scenarios across simulated peers, compare desync
journals and preview instruction-stream rewrites.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfgErr != nil {
				return WrapExitError(ExitCommandError, "invalid environment", cfgErr)
			}
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			configureLogging(cmd, opts)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", cfg.Format, "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewCompareCommand(opts))
	cmd.AddCommand(NewRewriteCommand(opts))

	return cmd
}

// configureLogging installs the process logger. --verbose lowers the level to
// Debug; otherwise MPCOMPAT_LOG_LEVEL applies.
func configureLogging(cmd *cobra.Command, opts *RootOptions) {
	level := opts.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
