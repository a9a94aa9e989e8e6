// Package permission decides, per tool call, whether human confirmation is
// required, and runs the asynchronous confirmation rendezvous with the
// interactive front-end. Block-tier guardrail matches are denied outright in
// every mode; Confirm-tier matches always prompt, even in yolo mode.
package permission

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"tether/internal/guardrail"
)

// Decision is the outcome of a per-call permission check.
type Decision struct {
	Allowed bool
	// Reason explains a denial in user-visible terms.
	Reason string
	// Final marks denials that are never re-attemptable (guardrail
	// Block tier), as opposed to a user declining this particular call.
	Final bool
	// Guardrail marks decisions that originated from the guardrail layer
	// rather than the mode matrix, so the front-end can render them
	// distinctly.
	Guardrail bool
}

// Gate holds the session's permission mode and coordinates confirmation.
// One gate exists per session; it is never shared across sessions.
type Gate struct {
	mu      sync.Mutex
	mode    Mode
	pending *Request

	requests chan *Request
	logger   *zap.Logger
}

// NewGate creates a gate starting in the given mode.
func NewGate(mode Mode, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		mode:     mode,
		requests: make(chan *Request, 1),
		logger:   logger,
	}
}

// Mode returns the current permission mode.
func (g *Gate) Mode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mode
}

// CycleMode advances the mode (safe → default → yolo → safe) and returns
// the new mode. The change affects only future decisions; an outstanding
// confirmation request is unaffected.
func (g *Gate) CycleMode() Mode {
	g.mu.Lock()
	defer g.mu.Unlock()

	prev := g.mode
	g.mode = g.mode.Next()
	g.logger.Info("permission mode changed",
		zap.Stringer("from", prev), zap.Stringer("to", g.mode))
	return g.mode
}

// Requests is consumed by the interactive front-end; each received request
// must be resolved exactly once via its Resolve method.
func (g *Gate) Requests() <-chan *Request {
	return g.requests
}

// Pending returns the outstanding confirmation request, or nil.
func (g *Gate) Pending() *Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending
}

// Decide runs the per-call decision sequence for a tool call. For shell
// calls the command is classified first: Block-tier matches are denied
// immediately regardless of mode, Confirm-tier matches always prompt. All
// other calls consult the mode matrix and prompt only when it requires
// confirmation. Decide suspends the caller during the rendezvous without
// blocking other session activity; if ctx is cancelled while a prompt is
// outstanding, the request is resolved as denied exactly once.
func (g *Gate) Decide(ctx context.Context, toolName string, input map[string]any) Decision {
	if toolName == ToolBash {
		command, _ := input["command"].(string)
		if match := guardrail.Classify(command); match != nil {
			if match.Tier == guardrail.TierBlock {
				g.logger.Warn("guardrail blocked command",
					zap.String("command", command),
					zap.String("reason", match.Description))
				return Decision{
					Reason: fmt.Sprintf("Blocked by guardrail: %s. This command is never allowed.",
						match.Description),
					Final:     true,
					Guardrail: true,
				}
			}

			preview := fmt.Sprintf("DANGEROUS: %s\n\n%s", match.Description, previewBash(input))
			decision := g.await(ctx, toolName, input, preview, true)
			decision.Guardrail = true
			if !decision.Allowed {
				decision.Reason = fmt.Sprintf("User rejected dangerous command: %s", match.Description)
			}
			return decision
		}
	}

	if !NeedsPermission(g.Mode(), toolName) {
		return Decision{Allowed: true}
	}

	decision := g.await(ctx, toolName, input, BuildPreview(toolName, input), false)
	if !decision.Allowed {
		decision.Reason = "User rejected tool call"
	}
	return decision
}

// await publishes a confirmation request to the front-end and suspends
// until it is resolved or ctx is cancelled. At most one request is
// outstanding because tool calls from one agent are already sequential.
func (g *Gate) await(ctx context.Context, toolName string, input map[string]any, preview string, dangerous bool) Decision {
	req := newRequest(toolName, input, preview, dangerous)

	g.mu.Lock()
	g.pending = req
	g.mu.Unlock()
	g.requests <- req

	var allowed bool
	select {
	case allowed = <-req.decision:
	case <-ctx.Done():
		// Auto-resolve as denied; Resolve is a no-op if the front-end
		// raced us and already answered, in which case we honor that
		// answer.
		req.Resolve(false)
		allowed = <-req.decision
	}

	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()

	// Pull the request back off the front-end channel if nothing consumed
	// it; the single-outstanding invariant means any queued element is req.
	select {
	case <-g.requests:
	default:
	}

	return Decision{Allowed: allowed}
}
