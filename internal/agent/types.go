// Package agent implements the conversation engine: a per-session chat with a
// hosted model that may request tool invocations before producing an answer.
package agent

// Mode selects the underlying model family for a chat context.
type Mode string

const (
	// ModeChat is the nominal text mode with tool calling enabled.
	ModeChat Mode = "chat"
	// ModeVision is used once a turn carries image attachments. Tool
	// calling is disabled in this mode, and the switch is sticky for the
	// remainder of the session.
	ModeVision Mode = "vision"
)

// FinishReason classifies why the model stopped generating.
type FinishReason string

const (
	FinishStop   FinishReason = "stop"
	FinishSafety FinishReason = "safety"
	FinishOther  FinishReason = "other"
)

// Blob is raw inline data attached to a turn, typically an image.
type Blob struct {
	MIMEType string
	Data     []byte
}

// FunctionCall is a model-issued request to invoke a named tool.
type FunctionCall struct {
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool outcome back to the model.
type FunctionResponse struct {
	Name     string
	Response map[string]any
}

// Part is one element of an outbound turn. Exactly one field is set.
type Part struct {
	Text             string
	Blob             *Blob
	FunctionResponse *FunctionResponse
}

// ResponsePart is one element of a model response. A part is either text or
// a function call; a response mixing both kinds across its parts is treated
// as text (the first text part wins).
type ResponsePart struct {
	Text         string
	FunctionCall *FunctionCall
}

// Usage holds running token totals for a chat context.
type Usage struct {
	PromptTokens int64
	TotalTokens  int64
}

// Add accumulates another usage sample into the running totals.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.TotalTokens += other.TotalTokens
}

// Response is one model reply.
type Response struct {
	FinishReason FinishReason
	Parts        []ResponsePart
	Usage        Usage
}
