package permission

import "fmt"

// Mode is the session's permission strictness level. It is mutated only by
// explicit operator action and cycles Safe → Default → Yolo → Safe.
type Mode int

const (
	ModeSafe Mode = iota
	ModeDefault
	ModeYolo
)

func (m Mode) String() string {
	switch m {
	case ModeSafe:
		return "safe"
	case ModeDefault:
		return "default"
	case ModeYolo:
		return "yolo"
	default:
		return "unknown"
	}
}

// Next returns the next mode in the cycle.
func (m Mode) Next() Mode {
	switch m {
	case ModeSafe:
		return ModeDefault
	case ModeDefault:
		return ModeYolo
	default:
		return ModeSafe
	}
}

// ParseMode converts a config string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "safe":
		return ModeSafe, nil
	case "default", "":
		return ModeDefault, nil
	case "yolo":
		return ModeYolo, nil
	default:
		return ModeDefault, fmt.Errorf("unknown permission mode: %q", s)
	}
}

// Tool names recognized by the permission matrix.
const (
	ToolBash  = "Bash"
	ToolRead  = "Read"
	ToolEdit  = "Edit"
	ToolWrite = "Write"
)

// NeedsPermission reports whether an ordinary call to the given tool
// requires user confirmation in the given mode. Guardrail matches are
// handled separately and override this matrix.
func NeedsPermission(mode Mode, toolName string) bool {
	if mode == ModeYolo {
		return false
	}
	switch toolName {
	case ToolEdit, ToolWrite:
		// Content-mutating tools are gated in both safe and default.
		return true
	case ToolBash:
		return mode == ModeSafe
	}
	return false
}
