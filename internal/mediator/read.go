package mediator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	defaultReadLimit = 2000
	maxLineChars     = 2000
)

// Extensions the read tool refuses to render as text.
var binaryExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true,
	".ico": true, ".webp": true, ".pdf": true, ".zip": true, ".tar": true,
	".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".jar": true,
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".bin": true, ".dat": true, ".pyc": true, ".class": true,
	".wasm": true, ".mp3": true, ".mp4": true, ".wav": true, ".avi": true,
	".mov": true, ".sqlite": true, ".db": true,
}

// runRead reads a file (or a line window of it) and returns numbered lines.
// Reads are always allowed; their side effect is the ledger record that
// later entitles mutations of the same path.
func (m *Mediator) runRead(input map[string]any) *Result {
	path := stringInput(input, "file_path")
	if path == "" {
		return errorResult("file_path is required")
	}
	path = m.resolvePath(path)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errorResult("file does not exist: %s", path)
		}
		return errorResult("failed to stat file: %v", err)
	}
	if info.IsDir() {
		return errorResult("%s is a directory, not a file", path)
	}
	if ext := strings.ToLower(filepath.Ext(path)); binaryExtensions[ext] {
		return errorResult("cannot read binary file %s (%s)",
			path, humanize.Bytes(uint64(info.Size())))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errorResult("failed to read file: %v", err)
	}

	if len(data) == 0 {
		m.markRead(path, false)
		return &Result{Content: "(file is empty)"}
	}

	lines := strings.Split(string(data), "\n")
	// A trailing newline produces one empty element past the last line.
	if len(lines) > 1 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	total := len(lines)

	offset := intInput(input, "offset", 1)
	if offset < 1 {
		offset = 1
	}
	limit := intInput(input, "limit", defaultReadLimit)
	if limit < 1 {
		limit = defaultReadLimit
	}

	if offset > total {
		return &Result{Content: fmt.Sprintf(
			"offset %d is past the end of the file (%d lines)", offset, total)}
	}

	end := offset - 1 + limit
	if end > total {
		end = total
	}

	var sb strings.Builder
	for i := offset - 1; i < end; i++ {
		line := lines[i]
		if len(line) > maxLineChars {
			line = line[:maxLineChars] + "... (line truncated)"
		}
		fmt.Fprintf(&sb, "%5d:%s\n", i+1, line)
	}

	partial := offset > 1 || end < total
	m.markRead(path, partial)

	return &Result{Content: strings.TrimRight(sb.String(), "\n")}
}

// markRead records the read in the ledger and, when the path is an inbox
// message, marks it read so it stops being surfaced.
func (m *Mediator) markRead(path string, partial bool) {
	m.ledger.RecordRead(path, partial)
	if m.mailbox != nil {
		m.mailbox.MarkRead(path)
	}
}

// resolvePath makes relative paths relative to the shell's tracked working
// directory so the agent's view of the filesystem stays consistent across
// tools.
func (m *Mediator) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	base := ""
	if m.shell != nil {
		base = m.shell.Cwd()
	}
	if base == "" {
		base, _ = os.Getwd()
	}
	return filepath.Join(base, path)
}

func intInput(input map[string]any, key string, fallback int) int {
	switch v := input[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return fallback
}
