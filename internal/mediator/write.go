package mediator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"tether/internal/permission"
)

// runWrite creates or fully replaces a file. Creating a new file needs no
// prior read; overwriting one goes through the same ledger check as edits,
// and again the check runs before any confirmation prompt.
func (m *Mediator) runWrite(ctx context.Context, input map[string]any) (*Result, bool) {
	path := stringInput(input, "file_path")
	if path == "" {
		return errorResult("file_path is required"), false
	}
	path = m.resolvePath(path)

	content, ok := input["content"].(string)
	if !ok {
		return errorResult("content is required"), false
	}

	mode := os.FileMode(0644)
	existed := false
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return errorResult("%s is a directory, not a file", path), false
		}
		existed = true
		mode = info.Mode()
	} else if !os.IsNotExist(err) {
		return errorResult("failed to stat file: %v", err), false
	}

	if existed {
		if ok, reason := m.ledger.Check(path); !ok {
			return errorResult("%s: %s", path, reason), false
		}
	}

	decision := m.gate.Decide(ctx, permission.ToolWrite, input)
	if !decision.Allowed {
		return deniedResult(decision), true
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errorResult("failed to create parent directories: %v", err), false
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		m.logger.Error("failed to write file",
			zap.String("path", path), zap.Error(err))
		return errorResult("failed to write file: %v", err), false
	}

	m.ledger.RecordWrite(path)

	lineCount := strings.Count(content, "\n")
	if content != "" && !strings.HasSuffix(content, "\n") {
		lineCount++
	}
	if existed {
		return &Result{Content: fmt.Sprintf("Overwrote %s (%d lines)", path, lineCount)}, false
	}
	return &Result{Content: fmt.Sprintf("Created %s (%d lines)", path, lineCount)}, false
}
