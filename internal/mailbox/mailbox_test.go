package mailbox

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAndUnreadSummaries(t *testing.T) {
	root := t.TempDir()
	alice := New(root, "alice", nil)
	bob := New(root, "bob", nil)

	path, err := alice.Send("bob", "ready for review", "The branch is pushed.", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(path, bob.Inbox()))

	summaries := bob.UnreadSummaries()
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0], "ready for review")
	assert.Contains(t, summaries[0], path)

	// The sender's own inbox is unaffected.
	assert.Empty(t, alice.UnreadSummaries())
}

func TestMarkReadRemovesFromSummaries(t *testing.T) {
	root := t.TempDir()
	alice := New(root, "alice", nil)
	bob := New(root, "bob", nil)

	path, err := alice.Send("bob", "first", "one", "")
	require.NoError(t, err)
	_, err = alice.Send("bob", "second", "two", "high")
	require.NoError(t, err)

	require.Len(t, bob.UnreadSummaries(), 2)

	bob.MarkRead(path)
	summaries := bob.UnreadSummaries()
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0], "second")

	// Marking twice is harmless.
	bob.MarkRead(path)
	assert.Len(t, bob.UnreadSummaries(), 1)
}

func TestMarkReadIgnoresForeignPaths(t *testing.T) {
	root := t.TempDir()
	bob := New(root, "bob", nil)

	outside := root + "/alice/msg-x.md"
	bob.MarkRead(outside)
	bob.MarkRead("/etc/hosts")

	_, err := os.Stat(root + "/alice/msg-x.read")
	assert.True(t, os.IsNotExist(err))
}

func TestMessageCarriesFrontmatterAndBody(t *testing.T) {
	root := t.TempDir()
	alice := New(root, "alice", nil)

	path, err := alice.Send("bob", "a summary", "the body text", "high")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.True(t, strings.HasPrefix(content, "---\n"))
	assert.Contains(t, content, "summary: a summary")
	assert.Contains(t, content, "priority: high")
	assert.Contains(t, content, "the body text")
}

func TestUnreadSummariesOnEmptyInbox(t *testing.T) {
	bob := New(t.TempDir(), "bob", nil)
	assert.Empty(t, bob.UnreadSummaries())
}

func TestSummaryFallsBackToFirstBodyLine(t *testing.T) {
	root := t.TempDir()
	bob := New(root, "bob", nil)
	require.NoError(t, os.MkdirAll(bob.Inbox(), 0755))

	// A message dropped in by hand, without frontmatter.
	path := bob.Inbox() + "/msg-manual.md"
	require.NoError(t, os.WriteFile(path, []byte("\njust a note\nmore\n"), 0644))

	summaries := bob.UnreadSummaries()
	require.Len(t, summaries, 1)
	assert.Contains(t, summaries[0], "just a note")
}
