package mediator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"tether/internal/permission"
)

// runEdit replaces an exact string occurrence in an existing file. The
// ledger is consulted before the user is prompted so a stale or unread file
// never costs a confirmation; the agent re-reads and retries instead.
func (m *Mediator) runEdit(ctx context.Context, input map[string]any) (*Result, bool) {
	path := stringInput(input, "file_path")
	if path == "" {
		return errorResult("file_path is required"), false
	}
	path = m.resolvePath(path)

	oldStr := stringInput(input, "old_string")
	if oldStr == "" {
		return errorResult("old_string is required"), false
	}
	newStr := stringInput(input, "new_string")
	replaceAll, _ := input["replace_all"].(bool)

	if oldStr == newStr {
		return errorResult("old_string and new_string match exactly, nothing to apply"), false
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult("file does not exist: %s", path), false
		}
		return errorResult("failed to stat file: %v", err), false
	}
	if info.IsDir() {
		return errorResult("%s is a directory, not a file", path), false
	}

	if ok, reason := m.ledger.Check(path); !ok {
		return errorResult("%s: %s", path, reason), false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult("failed to read file: %v", err), false
	}
	content := string(data)

	count := strings.Count(content, oldStr)
	if count == 0 && strings.HasSuffix(oldStr, "\n") {
		// The read tool strips the trailing newline from the last line,
		// so the agent may quote the target without it.
		trimmed := strings.TrimSuffix(oldStr, "\n")
		if strings.Count(content, trimmed) > 0 {
			oldStr = trimmed
			newStr = strings.TrimSuffix(newStr, "\n")
			count = strings.Count(content, oldStr)
		}
	}
	if count == 0 {
		return errorResult("old_string not found in %s", path), false
	}
	if count > 1 && !replaceAll {
		return errorResult(
			"old_string appears %d times in %s; provide more surrounding context or set replace_all",
			count, path), false
	}

	decision := m.gate.Decide(ctx, permission.ToolEdit, input)
	if !decision.Allowed {
		return deniedResult(decision), true
	}

	var updated string
	if replaceAll {
		updated = strings.ReplaceAll(content, oldStr, newStr)
	} else {
		updated = strings.Replace(content, oldStr, newStr, 1)
	}

	if err := os.WriteFile(path, []byte(updated), info.Mode()); err != nil {
		m.logger.Error("failed to write edited file",
			zap.String("path", path), zap.Error(err))
		return errorResult("failed to write file: %v", err), false
	}

	m.ledger.RecordWrite(path)

	if replaceAll {
		return &Result{Content: fmt.Sprintf("Edited %s: replaced %d occurrences", path, count)}, false
	}
	return &Result{Content: fmt.Sprintf("Edited %s: replaced 1 occurrence", path)}, false
}
