package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeCycle(t *testing.T) {
	assert.Equal(t, ModeDefault, ModeSafe.Next())
	assert.Equal(t, ModeYolo, ModeDefault.Next())
	assert.Equal(t, ModeSafe, ModeYolo.Next())
}

func TestParseMode(t *testing.T) {
	mode, err := ParseMode("safe")
	require.NoError(t, err)
	assert.Equal(t, ModeSafe, mode)

	mode, err = ParseMode("yolo")
	require.NoError(t, err)
	assert.Equal(t, ModeYolo, mode)

	// Empty means unconfigured, not invalid.
	mode, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDefault, mode)

	mode, err = ParseMode("bogus")
	assert.Error(t, err)
	assert.Equal(t, ModeDefault, mode)
}

func TestNeedsPermissionMatrix(t *testing.T) {
	tests := []struct {
		mode Mode
		tool string
		want bool
	}{
		{ModeSafe, ToolBash, true},
		{ModeSafe, ToolEdit, true},
		{ModeSafe, ToolWrite, true},
		{ModeSafe, ToolRead, false},

		{ModeDefault, ToolBash, false},
		{ModeDefault, ToolEdit, true},
		{ModeDefault, ToolWrite, true},
		{ModeDefault, ToolRead, false},

		{ModeYolo, ToolBash, false},
		{ModeYolo, ToolEdit, false},
		{ModeYolo, ToolWrite, false},
		{ModeYolo, ToolRead, false},
	}
	for _, test := range tests {
		got := NeedsPermission(test.mode, test.tool)
		assert.Equal(t, test.want, got, "mode=%s tool=%s", test.mode, test.tool)
	}
}
