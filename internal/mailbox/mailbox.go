// Package mailbox delivers messages between agents through per-agent inbox
// directories on disk. Messages are markdown files with YAML frontmatter; a
// sibling .read marker file records that a message has been surfaced. The
// mailbox is an opaque sink keyed by agent identity; guardrail and
// permission logic never consult it.
package mailbox

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type frontmatter struct {
	Summary   string `yaml:"summary"`
	Priority  string `yaml:"priority"`
	Timestamp string `yaml:"timestamp"`
}

// Mailbox is one agent's view of the shared inbox root.
type Mailbox struct {
	root    string
	agentID string
	logger  *zap.Logger
}

func New(root, agentID string, logger *zap.Logger) *Mailbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mailbox{
		root:    root,
		agentID: agentID,
		logger:  logger,
	}
}

// Inbox returns this agent's inbox directory.
func (m *Mailbox) Inbox() string {
	return filepath.Join(m.root, m.agentID)
}

// Send writes a message into the recipient's inbox and returns the path of
// the message file.
func (m *Mailbox) Send(to, summary, body, priority string) (string, error) {
	if priority == "" {
		priority = "normal"
	}

	inbox := filepath.Join(m.root, to)
	if err := os.MkdirAll(inbox, 0755); err != nil {
		return "", fmt.Errorf("failed to create inbox for %s: %w", to, err)
	}

	now := time.Now().UTC()
	fm, err := yaml.Marshal(frontmatter{
		Summary:   summary,
		Priority:  priority,
		Timestamp: now.Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message frontmatter: %w", err)
	}

	name := fmt.Sprintf("msg-%s-%s.md", now.Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(inbox, name)
	content := fmt.Sprintf("---\n%s---\n\n%s\n", fm, body)

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	m.logger.Debug("message sent",
		zap.String("to", to), zap.String("path", path))
	return path, nil
}

// UnreadSummaries lists one line per unread message in this agent's inbox,
// oldest first. Messages whose .read marker exists are skipped.
func (m *Mailbox) UnreadSummaries() []string {
	entries, err := os.ReadDir(m.Inbox())
	if err != nil {
		return nil
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var summaries []string
	for _, name := range names {
		path := filepath.Join(m.Inbox(), name)
		if _, err := os.Stat(readMarkerPath(path)); err == nil {
			continue
		}
		summary := extractSummary(path)
		if summary != "" {
			summaries = append(summaries, fmt.Sprintf("[Message] %s (full message at %s)", summary, path))
		}
	}
	return summaries
}

// MarkRead drops a .read marker beside the message so it stops being
// surfaced. Marking a non-message path is a no-op.
func (m *Mailbox) MarkRead(path string) {
	if !strings.HasSuffix(path, ".md") {
		return
	}
	rel, err := filepath.Rel(m.Inbox(), path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := os.WriteFile(readMarkerPath(path), nil, 0644); err != nil {
		m.logger.Debug("failed to write read marker",
			zap.String("path", path), zap.Error(err))
	}
}

func readMarkerPath(msgPath string) string {
	return strings.TrimSuffix(msgPath, ".md") + ".read"
}

// extractSummary pulls the summary field from a message's YAML frontmatter,
// falling back to the first line of the body.
func extractSummary(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	text := string(data)

	if strings.HasPrefix(text, "---\n") {
		rest := text[4:]
		if end := strings.Index(rest, "\n---"); end >= 0 {
			var fm frontmatter
			if err := yaml.Unmarshal([]byte(rest[:end]), &fm); err == nil && fm.Summary != "" {
				return fm.Summary
			}
		}
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "---") {
			if len(line) > 200 {
				line = line[:200]
			}
			return line
		}
	}
	return ""
}
