package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyBlocksRootDelete(t *testing.T) {
	for _, command := range []string{
		"rm -rf /",
		"rm -fr /",
		"sudo rm -rf /",
		"rm -rf /*",
		"rm -rf ~",
		"rm -rf ~/",
	} {
		match := Classify(command)
		require.NotNil(t, match, "expected block for %q", command)
		assert.Equal(t, TierBlock, match.Tier, "command %q", command)
	}
}

func TestClassifyBlocksRawDeviceWrites(t *testing.T) {
	match := Classify("dd if=image.iso of=/dev/sda bs=4M")
	require.NotNil(t, match)
	assert.Equal(t, TierBlock, match.Tier)

	match = Classify("mkfs.ext4 /dev/sdb1")
	require.NotNil(t, match)
	assert.Equal(t, TierBlock, match.Tier)
}

func TestClassifyConfirmsForcedRecursiveDelete(t *testing.T) {
	for _, command := range []string{
		"rm -rf build/",
		"rm -fr build/",
		"rm -rfi build/",
		"rm --recursive --force build/",
		"rm -r build -f",
		"rm -f -r build",
		"/bin/rm -rf build/",
		"cd /tmp && rm -rf scratch",
	} {
		match := Classify(command)
		require.NotNil(t, match, "expected confirm for %q", command)
		assert.Equal(t, TierConfirm, match.Tier, "command %q", command)
		assert.Equal(t, "recursive force delete (rm -rf)", match.Description, "command %q", command)
	}
}

func TestClassifyConfirmRules(t *testing.T) {
	tests := []struct {
		command string
		desc    string
	}{
		{"git push origin main", "git push"},
		{"git reset --hard HEAD~1", "git reset --hard (discards changes)"},
		{"git clean -fd", "git clean (deletes untracked files)"},
		{"tmux kill-server", "kill tmux session/server"},
		{"tmux kill-session -t work", "kill tmux session/server"},
		{"killall node", "kill processes by name (killall)"},
		{"pkill -f python", "kill processes by pattern (pkill)"},
	}
	for _, test := range tests {
		match := Classify(test.command)
		require.NotNil(t, match, "expected confirm for %q", test.command)
		assert.Equal(t, TierConfirm, match.Tier, "command %q", test.command)
		assert.Equal(t, test.desc, match.Description, "command %q", test.command)
	}
}

func TestClassifyIgnoresOrdinaryCommands(t *testing.T) {
	for _, command := range []string{
		"ls -la",
		"rm file.txt",
		"rm -r build",
		"rm -f lockfile",
		"git status",
		"git commit -m 'remove old code'",
		"firm -rf /",
		"grep -rf patterns.txt src/",
	} {
		assert.Nil(t, Classify(command), "expected no match for %q", command)
	}
}

func TestBlockTakesPriorityOverConfirm(t *testing.T) {
	// A root delete is also a forced recursive delete; the block tier
	// must win so it can never be approved interactively.
	match := Classify("rm -rf /")
	require.NotNil(t, match)
	assert.Equal(t, TierBlock, match.Tier)
}

func TestSeparatorResetsFlagScan(t *testing.T) {
	// The recursive and force flags belong to different rm invocations,
	// so neither invocation alone is a forced recursive delete.
	assert.Nil(t, Classify("rm -r build ; rm -f lockfile"))
}

func TestUnbalancedQuotesStillScanned(t *testing.T) {
	match := Classify(`rm -rf "unterminated`)
	require.NotNil(t, match)
	assert.Equal(t, TierConfirm, match.Tier)
}
