package permission

import "sync"

// Request is the data handed to the interactive front-end when a tool call
// needs confirmation. Exactly one request is outstanding at a time; it is
// discarded after resolution.
type Request struct {
	ToolName  string
	ToolInput map[string]any
	Preview   string

	// Dangerous marks guardrail-originated confirmations so the
	// front-end can render them more loudly than ordinary prompts.
	Dangerous bool

	once     sync.Once
	decision chan bool
}

func newRequest(toolName string, input map[string]any, preview string, dangerous bool) *Request {
	return &Request{
		ToolName:  toolName,
		ToolInput: input,
		Preview:   preview,
		Dangerous: dangerous,
		decision:  make(chan bool, 1),
	}
}

// Resolve records the user's decision. Only the first call has any effect;
// later calls (including the automatic denial on interrupt) are ignored.
func (r *Request) Resolve(allowed bool) {
	r.once.Do(func() {
		r.decision <- allowed
	})
}
