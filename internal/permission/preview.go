package permission

import (
	"fmt"
	"os"
	"strings"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
	"github.com/samber/lo"
)

const newFilePreviewLines = 15

// BuildPreview renders a human-readable preview of what a tool call would
// do: a line diff for edits, a diff or capped content preview for writes,
// and the command itself for shell calls.
func BuildPreview(toolName string, input map[string]any) string {
	switch toolName {
	case ToolEdit:
		return previewEdit(input)
	case ToolWrite:
		return previewWrite(input)
	case ToolBash:
		return previewBash(input)
	}
	return ""
}

func previewEdit(input map[string]any) string {
	path, _ := input["file_path"].(string)
	if path == "" {
		path = "unknown"
	}
	oldStr, _ := input["old_string"].(string)
	newStr, _ := input["new_string"].(string)
	return unifiedDiff(path, oldStr, newStr)
}

func previewWrite(input map[string]any) string {
	path, _ := input["file_path"].(string)
	if path == "" {
		path = "unknown"
	}
	content, _ := input["content"].(string)

	if existing, err := os.ReadFile(path); err == nil {
		return unifiedDiff(path, string(existing), content)
	}

	// New file: show a capped content preview.
	lines := strings.Split(content, "\n")
	n := len(lines)
	parts := []string{fmt.Sprintf("new file (%d lines)", n)}
	parts = append(parts, lo.Map(lo.Slice(lines, 0, newFilePreviewLines), func(line string, _ int) string {
		return "+" + line
	})...)
	if n > newFilePreviewLines {
		parts = append(parts, fmt.Sprintf("... (%d more lines)", n-newFilePreviewLines))
	}
	return strings.Join(parts, "\n")
}

func previewBash(input map[string]any) string {
	command, _ := input["command"].(string)
	desc, _ := input["description"].(string)
	if desc != "" {
		return desc + "\n$ " + command
	}
	return "$ " + command
}

func unifiedDiff(path, before, after string) string {
	edits := myers.ComputeEdits(span.URIFromPath(path), before, after)
	return strings.TrimRight(fmt.Sprint(gotextdiff.ToUnified(path, path, before, edits)), "\n")
}
