// Package mediator is the choke point every tool call passes through. It
// validates input, runs the permission and guardrail sequence, applies the
// read ledger to mutations, executes the operation, and records usage. No
// other component executes tool calls.
package mediator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tether/internal/ledger"
	"tether/internal/mailbox"
	"tether/internal/permission"
	"tether/internal/shell"
	"tether/internal/usage"
)

// Request is one tool call from the agent. AgentID overrides the session's
// configured agent identity for usage attribution when set.
type Request struct {
	Name    string         `json:"name"`
	Input   map[string]any `json:"input"`
	AgentID string         `json:"agent_id,omitempty"`
}

// Result is what the agent sees. IsError results carry a user-visible
// explanation in Content; the agent is expected to adapt and retry.
type Result struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error"`
}

// Mediator owns one session's tool execution. Calls are handled one at a
// time in arrival order; the shell session below enforces that with its own
// lock.
type Mediator struct {
	agentID string

	shell   *shell.Session
	ledger  *ledger.Ledger
	gate    *permission.Gate
	usage   *usage.Recorder
	mailbox *mailbox.Mailbox
	logger  *zap.Logger

	defaultTimeoutMs int
	maxTimeoutMs     int
}

// Deps carries the collaborators a Mediator needs. Usage and Mailbox may be
// nil; the corresponding bookkeeping is skipped.
type Deps struct {
	AgentID string

	Shell   *shell.Session
	Ledger  *ledger.Ledger
	Gate    *permission.Gate
	Usage   *usage.Recorder
	Mailbox *mailbox.Mailbox
	Logger  *zap.Logger

	DefaultTimeoutMs int
	MaxTimeoutMs     int
}

func New(deps Deps) *Mediator {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultTimeout := deps.DefaultTimeoutMs
	if defaultTimeout <= 0 {
		defaultTimeout = shell.DefaultTimeoutMs
	}
	maxTimeout := deps.MaxTimeoutMs
	if maxTimeout < defaultTimeout {
		maxTimeout = defaultTimeout
	}
	return &Mediator{
		agentID:          deps.AgentID,
		shell:            deps.Shell,
		ledger:           deps.Ledger,
		gate:             deps.Gate,
		usage:            deps.Usage,
		mailbox:          deps.Mailbox,
		logger:           logger,
		defaultTimeoutMs: defaultTimeout,
		maxTimeoutMs:     maxTimeout,
	}
}

// Dispatch runs one tool call end to end and always returns a Result, even
// for denials and infrastructure failures. Unread inbox messages are
// surfaced by appending their summaries to the result.
func (m *Mediator) Dispatch(ctx context.Context, req *Request) *Result {
	start := time.Now()

	var (
		res    *Result
		denied bool
	)
	switch req.Name {
	case permission.ToolBash:
		res, denied = m.runBash(ctx, req.Input)
	case permission.ToolRead:
		res = m.runRead(req.Input)
	case permission.ToolEdit:
		res, denied = m.runEdit(ctx, req.Input)
	case permission.ToolWrite:
		res, denied = m.runWrite(ctx, req.Input)
	default:
		res = errorResult("unknown tool: %s", req.Name)
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = m.agentID
	}
	m.recordUsage(agentID, req.Name, time.Since(start).Milliseconds(), res.IsError, denied)

	if !denied {
		m.appendInboxSummaries(res)
	}

	m.logger.Debug("tool call completed",
		zap.String("tool", req.Name),
		zap.Bool("isError", res.IsError),
		zap.Bool("denied", denied),
		zap.Int64("durationMs", time.Since(start).Milliseconds()))
	return res
}

func (m *Mediator) recordUsage(agentID, tool string, durationMs int64, isError, denied bool) {
	if m.usage == nil {
		return
	}
	if err := m.usage.Record(agentID, tool, durationMs, isError, denied); err != nil {
		m.logger.Warn("failed to record tool usage", zap.Error(err))
	}
}

func (m *Mediator) appendInboxSummaries(res *Result) {
	if m.mailbox == nil {
		return
	}
	summaries := m.mailbox.UnreadSummaries()
	if len(summaries) == 0 {
		return
	}
	res.Content = res.Content + "\n\n" + strings.Join(summaries, "\n")
}

// deniedResult renders a permission denial for the agent.
func deniedResult(d permission.Decision) *Result {
	return &Result{Content: d.Reason, IsError: true}
}

func errorResult(format string, args ...any) *Result {
	return &Result{Content: fmt.Sprintf(format, args...), IsError: true}
}

func stringInput(input map[string]any, key string) string {
	s, _ := input[key].(string)
	return s
}
