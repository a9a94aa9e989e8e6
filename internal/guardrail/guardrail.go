// Package guardrail classifies shell commands by danger tier. The rules are
// static string and pattern matches, independent of the session's permission
// mode: a Block-tier match is never executable, a Confirm-tier match always
// requires interactive approval. Detection is best-effort: commands
// obfuscated through variable expansion or command substitution can evade
// it, and no attempt is made to parse shell semantics.
package guardrail

import (
	"regexp"
	"strings"

	"mvdan.cc/sh/v3/shell"
)

// Tier is the danger level assigned to a flagged command.
type Tier int

const (
	// TierConfirm marks commands that are destructive but sometimes
	// legitimate; they require explicit user approval in every mode.
	TierConfirm Tier = iota + 1
	// TierBlock marks commands that are never allowed.
	TierBlock
)

func (t Tier) String() string {
	switch t {
	case TierConfirm:
		return "confirm"
	case TierBlock:
		return "block"
	default:
		return "unknown"
	}
}

// Match describes why a command was flagged.
type Match struct {
	Tier        Tier
	Description string
}

type rule struct {
	pattern *regexp.Regexp
	desc    string
}

// Block rules are checked first and take priority over confirm rules.
var blockRules = []rule{
	{regexp.MustCompile(`\brm\s+-\S*r\S*\s+/\s*$`), "recursive delete from filesystem root"},
	{regexp.MustCompile(`\brm\s+-\S*r\S*\s+/\*`), "recursive delete from filesystem root"},
	{regexp.MustCompile(`\brm\s+-\S*r\S*\s+~/?\s*$`), "recursive delete of home directory"},
	{regexp.MustCompile(`\bmkfs\b`), "format filesystem"},
	{regexp.MustCompile(`\bdd\b.*\bof\s*=\s*/dev/`), "write directly to raw device"},
}

var confirmRules = []rule{
	{regexp.MustCompile(`\bgit\s+push\b`), "git push"},
	{regexp.MustCompile(`\bgit\s+reset\s+--hard\b`), "git reset --hard (discards changes)"},
	{regexp.MustCompile(`\bgit\s+clean\b.*-\w*f`), "git clean (deletes untracked files)"},
	{regexp.MustCompile(`\btmux\s+kill-(session|server)\b`), "kill tmux session/server"},
	{regexp.MustCompile(`\bkillall\s`), "kill processes by name (killall)"},
	{regexp.MustCompile(`\bpkill\s`), "kill processes by pattern (pkill)"},
}

// separators end the flag scan for a single rm invocation.
var separators = map[string]bool{
	"&&": true,
	"||": true,
	"|":  true,
	";":  true,
}

// Classify returns the danger tier of a command, or nil if the command is
// not flagged. A nil result does not grant execution; it only means the
// guardrail layer has no opinion.
func Classify(command string) *Match {
	for _, r := range blockRules {
		if r.pattern.MatchString(command) {
			return &Match{Tier: TierBlock, Description: r.desc}
		}
	}

	if hasForcedRecursiveDelete(command) {
		return &Match{Tier: TierConfirm, Description: "recursive force delete (rm -rf)"}
	}

	for _, r := range confirmRules {
		if r.pattern.MatchString(command) {
			return &Match{Tier: TierConfirm, Description: r.desc}
		}
	}

	return nil
}

// hasForcedRecursiveDelete reports whether the command invokes rm with both
// the recursive and force flags in any arrangement: bundled (-rf, -fr),
// split (-r ... -f), or combined with other letters (-rfi). It tokenizes
// the command into words rather than matching a single literal pattern.
func hasForcedRecursiveDelete(command string) bool {
	if !strings.Contains(command, "rm") {
		return false
	}

	words, err := shell.Fields(command, func(string) string { return "" })
	if err != nil {
		// Unparseable input (unbalanced quotes etc.) falls back to
		// whitespace splitting so a malformed command can't slip past
		// the scan entirely.
		words = strings.Fields(command)
	}

	inRM := false
	recursive := false
	force := false
	for _, w := range words {
		if separators[w] {
			if recursive && force {
				return true
			}
			inRM = false
			recursive = false
			force = false
			continue
		}
		if !inRM {
			if w == "rm" || strings.HasSuffix(w, "/rm") {
				inRM = true
			}
			continue
		}
		if !strings.HasPrefix(w, "-") {
			continue
		}
		if w == "--recursive" {
			recursive = true
			continue
		}
		if w == "--force" {
			force = true
			continue
		}
		flags := strings.TrimLeft(w, "-")
		if strings.Contains(flags, "r") || strings.Contains(flags, "R") {
			recursive = true
		}
		if strings.Contains(flags, "f") {
			force = true
		}
	}

	return inRM && recursive && force
}
