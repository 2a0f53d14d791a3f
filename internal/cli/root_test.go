package cli

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mpcompat", cmd.Use)
	assert.Contains(t, cmd.Long, "lockstep")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "run", "compare", "rewrite"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestEnvironmentDefaults(t *testing.T) {
	t.Setenv("MPCOMPAT_FORMAT", "json")
	t.Setenv("MPCOMPAT_DB", "/tmp/desync.db")
	t.Setenv("MPCOMPAT_PEERS", "4")

	cmd := NewRootCommand()
	assert.Equal(t, "json", cmd.PersistentFlags().Lookup("format").DefValue)

	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/desync.db", runCmd.Flags().Lookup("db").DefValue)
	assert.Equal(t, "4", runCmd.Flags().Lookup("peers").DefValue)

	compareCmd, _, err := cmd.Find([]string{"compare"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/desync.db", compareCmd.Flags().Lookup("db").DefValue)
}

func TestInvalidEnvironment(t *testing.T) {
	t.Setenv("MPCOMPAT_LOG_LEVEL", "loud")

	_, _, err := execute(t, NewRootCommand(), "validate", "testdata/patches/valid")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "MPCOMPAT_LOG_LEVEL")
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"db", "peers", "filter"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
}

func TestRewriteCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	rewriteCmd, _, err := cmd.Find([]string{"rewrite"})
	require.NoError(t, err)

	for _, name := range []string{"call", "snapshot", "target"} {
		assert.NotNil(t, rewriteCmd.Flags().Lookup(name), name)
	}
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, _, err := execute(t, NewRootCommand(), "--format", "invalid", "validate", ".")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestVerboseInstallsDebugLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	_, _, err := execute(t, NewRootCommand(), "--verbose", "validate", "testdata/patches/valid")
	require.NoError(t, err)
	assert.True(t, slog.Default().Enabled(t.Context(), slog.LevelDebug))
}
