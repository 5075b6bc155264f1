package agent

import "context"

// Chat is one model conversation context. Implementations own the turn
// history; every Send appends the request and the model's reply to it.
// A Chat is not safe for concurrent use; the engine serializes turns.
type Chat interface {
	// Send submits parts as the next turn. When tools is non-empty the
	// model may answer with function-call parts instead of text.
	Send(ctx context.Context, parts []Part, tools []ToolSpec) (*Response, error)
}

// Provider creates chat contexts against a model backend.
type Provider interface {
	StartChat(ctx context.Context, mode Mode) (Chat, error)
}
