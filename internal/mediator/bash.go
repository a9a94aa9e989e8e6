package mediator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"tether/internal/permission"
)

// runBash executes a shell command in the persistent session. The guardrail
// and permission sequence runs before anything touches the shell; a timeout
// is reported as a result, not an error, because the agent can act on it.
func (m *Mediator) runBash(ctx context.Context, input map[string]any) (*Result, bool) {
	command := stringInput(input, "command")
	if command == "" {
		return errorResult("command is required"), false
	}

	decision := m.gate.Decide(ctx, permission.ToolBash, input)
	if !decision.Allowed {
		return deniedResult(decision), true
	}

	timeoutMs := m.timeoutFor(input)

	cwdBefore := m.shell.Cwd()
	result, err := m.shell.Run(ctx, command, timeoutMs)
	if err != nil {
		m.logger.Error("shell execution failed",
			zap.String("command", command), zap.Error(err))
		return errorResult("failed to execute command: %v", err), false
	}

	if result.TimedOut {
		content := result.Output
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("Command timed out after %d ms", timeoutMs)
		return &Result{Content: content, IsError: true}, false
	}

	if result.ExitCode != 0 {
		content := result.Output
		if content != "" {
			content += "\n"
		}
		content += fmt.Sprintf("Command exited with code %d", result.ExitCode)
		return &Result{Content: content, IsError: true}, false
	}

	content := result.Output
	if result.Cwd != cwdBefore {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		content += fmt.Sprintf("(cwd is now %s)", result.Cwd)
	}
	return &Result{Content: content}, false
}

// timeoutFor resolves the effective timeout for one call: the requested
// timeout_ms clamped to the configured maximum, or the session default.
func (m *Mediator) timeoutFor(input map[string]any) int {
	requested, ok := input["timeout_ms"].(float64)
	if !ok || requested <= 0 {
		return m.defaultTimeoutMs
	}
	timeoutMs := int(requested)
	if timeoutMs > m.maxTimeoutMs {
		return m.maxTimeoutMs
	}
	return timeoutMs
}
