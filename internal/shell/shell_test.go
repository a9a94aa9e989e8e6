package shell

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(t.TempDir(), nil, nil)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "echo hello", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
	assert.False(t, result.TimedOut)
}

func TestRunReportsNonZeroExitCode(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "exit 42", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, result.ExitCode)
}

func TestRunMergesStderrIntoOutput(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "echo out; echo err >&2", 0)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "out")
	assert.Contains(t, result.Output, "err")
}

func TestStatePersistsAcrossCommands(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Run(context.Background(), "MY_TEST_VAR=persisted", 0)
	require.NoError(t, err)

	result, err := s.Run(context.Background(), "echo $MY_TEST_VAR", 0)
	require.NoError(t, err)
	assert.Equal(t, "persisted\n", result.Output)
}

func TestCwdPropagatesAcrossCommands(t *testing.T) {
	s := newTestSession(t)

	sub := s.Cwd() + "/subdir"
	require.NoError(t, os.Mkdir(sub, 0755))

	result, err := s.Run(context.Background(), "cd subdir", 0)
	require.NoError(t, err)
	assert.Equal(t, sub, result.Cwd)
	assert.Equal(t, sub, s.Cwd())

	result, err = s.Run(context.Background(), "pwd", 0)
	require.NoError(t, err)
	assert.Equal(t, sub+"\n", result.Output)
}

func TestOutputWithoutTrailingNewline(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "printf no-newline", 0)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestTimeoutKillsAndRespawns(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "echo started; sleep 30", 100)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, -1, result.ExitCode)

	// The session must come back transparently after the kill.
	result, err = s.Run(context.Background(), "echo recovered", 0)
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, "recovered\n", result.Output)
	assert.Equal(t, 0, result.ExitCode)
}

func TestContextCancellationBehavesLikeTimeout(t *testing.T) {
	s := newTestSession(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		cancel()
	}()

	result, err := s.Run(ctx, "sleep 30", 0)
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
}

func TestTimeoutRespawnDropsShellState(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Run(context.Background(), "MY_TEST_VAR=gone", 0)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), "sleep 30", 100)
	require.NoError(t, err)

	// The respawned shell is fresh; shell variables do not survive a kill.
	result, err := s.Run(context.Background(), "echo \"[$MY_TEST_VAR]\"", 0)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", result.Output)
}

func TestOutputTruncation(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(),
		fmt.Sprintf("head -c %d /dev/zero | tr '\\0' 'x'", maxOutputChars+5000), 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Output), maxOutputChars+100)
	assert.Contains(t, result.Output, "output truncated")
}

func TestEnvironmentOverridesAndScrubbing(t *testing.T) {
	t.Setenv("TETHER_MARKER", "outer")

	s := NewSession(t.TempDir(), map[string]string{"INJECTED_VAR": "inner"}, nil)
	t.Cleanup(func() { s.Close() })

	result, err := s.Run(context.Background(), "echo \"[$TETHER_MARKER][$INJECTED_VAR]\"", 0)
	require.NoError(t, err)
	assert.Equal(t, "[][inner]\n", result.Output)
}

func TestRestartResetsShellProcess(t *testing.T) {
	s := newTestSession(t)

	_, err := s.Run(context.Background(), "MY_TEST_VAR=before", 0)
	require.NoError(t, err)

	s.Restart()

	result, err := s.Run(context.Background(), "echo \"[$MY_TEST_VAR]\"", 0)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", result.Output)
}

func TestSentinelNotLeakedIntoOutput(t *testing.T) {
	s := newTestSession(t)

	result, err := s.Run(context.Background(), "echo first; echo second", 0)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", result.Output)
	assert.NotContains(t, result.Output, "___TETHER_")

	// A command printing text that resembles the sentinel prefix must not
	// terminate the frame early; only the per-call token does that.
	result, err = s.Run(context.Background(), "echo ___TETHER_fake___; echo after", 0)
	require.NoError(t, err)
	assert.Contains(t, result.Output, "after")
	assert.Equal(t, 0, result.ExitCode)
}
