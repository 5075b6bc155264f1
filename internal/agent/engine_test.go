package agent

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// scriptedChat replays canned responses and records everything sent to it.
type scriptedChat struct {
	responses []*Response
	errAt     map[int]error

	sends [][]Part
	tools [][]ToolSpec
}

func (c *scriptedChat) Send(_ context.Context, parts []Part, tools []ToolSpec) (*Response, error) {
	i := len(c.sends)
	c.sends = append(c.sends, parts)
	c.tools = append(c.tools, tools)
	if err := c.errAt[i]; err != nil {
		return nil, err
	}
	if i < len(c.responses) {
		return c.responses[i], nil
	}
	return textResponse("fallback"), nil
}

type fakeProvider struct {
	chat  *scriptedChat
	modes []Mode
}

func (p *fakeProvider) StartChat(_ context.Context, mode Mode) (Chat, error) {
	p.modes = append(p.modes, mode)
	return p.chat, nil
}

type fakeResolver struct {
	resolved []string
}

func (r *fakeResolver) Resolve(_ context.Context, ref, _ string) (Blob, error) {
	r.resolved = append(r.resolved, ref)
	return Blob{MIMEType: "image/png", Data: []byte(ref)}, nil
}

type fakeTool struct {
	spec    ToolSpec
	outcome Outcome
	calls   []map[string]any
}

func (t *fakeTool) Spec() ToolSpec { return t.spec }

func (t *fakeTool) Call(_ context.Context, args map[string]any) Outcome {
	t.calls = append(t.calls, args)
	return t.outcome
}

func textResponse(text string) *Response {
	return &Response{
		FinishReason: FinishStop,
		Parts:        []ResponsePart{{Text: text}},
	}
}

func toolCallResponse(name string, args map[string]any) *Response {
	return &Response{
		FinishReason: FinishStop,
		Parts:        []ResponsePart{{FunctionCall: &FunctionCall{Name: name, Args: args}}},
	}
}

func newTestEngine(chat *scriptedChat, tools ...Tool) (*Engine, *fakeProvider) {
	provider := &fakeProvider{chat: chat}
	registry := NewRegistry()
	for _, tool := range tools {
		registry.Register(tool)
	}
	engine := NewEngine(EngineConfig{
		Provider: provider,
		Registry: registry,
		Resolver: &fakeResolver{},
	})
	return engine, provider
}

func TestSendTurnPlainText(t *testing.T) {
	chat := &scriptedChat{responses: []*Response{textResponse("hello there")}}
	engine, _ := newTestEngine(chat, &fakeTool{spec: ToolSpec{Name: "current_time"}})

	answer, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if answer != "hello there" {
		t.Fatalf("answer = %q, want %q", answer, "hello there")
	}
	if len(chat.sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(chat.sends))
	}
	if len(chat.tools[0]) != 1 {
		t.Fatalf("expected tools offered on first send, got %d", len(chat.tools[0]))
	}
}

func TestSendTurnDispatchesClockTool(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)
	tool := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: now},
	}
	chat := &scriptedChat{responses: []*Response{
		toolCallResponse("current_time", nil),
		textResponse("Today is " + now),
	}}
	engine, _ := newTestEngine(chat, tool)

	answer, err := engine.SendTurn(context.Background(), Turn{Text: "what is today's date?"}, nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if answer != "Today is "+now {
		t.Fatalf("answer = %q", answer)
	}
	if len(tool.calls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(tool.calls))
	}

	// The second send must carry the tool result, not user text.
	feedback := chat.sends[1]
	if len(feedback) != 1 || feedback[0].FunctionResponse == nil {
		t.Fatalf("expected a function response part, got %+v", feedback)
	}
	fr := feedback[0].FunctionResponse
	if fr.Name != "current_time" {
		t.Fatalf("function response name = %q", fr.Name)
	}
	if fr.Response["result"] != true {
		t.Fatalf("expected result=true in %v", fr.Response)
	}
	if msg, _ := fr.Response["message"].(string); msg == "" {
		t.Fatalf("expected non-empty message in %v", fr.Response)
	}
}

func TestSendTurnUnknownToolTriggersReprompt(t *testing.T) {
	chat := &scriptedChat{responses: []*Response{
		toolCallResponse("delete_everything", map[string]any{"q": "all"}),
		textResponse("I cannot do that."),
	}}
	engine, _ := newTestEngine(chat, &fakeTool{spec: ToolSpec{Name: "current_time"}})

	answer, err := engine.SendTurn(context.Background(), Turn{Text: "wipe it"}, nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if answer != "I cannot do that." {
		t.Fatalf("answer = %q", answer)
	}

	// Zero tool results: the engine sends the fixed re-prompt instead.
	feedback := chat.sends[1]
	if len(feedback) != 1 || feedback[0].Text != reconsiderPrompt {
		t.Fatalf("expected re-prompt, got %+v", feedback)
	}
}

func TestSendTurnSafetyBlockedShortCircuits(t *testing.T) {
	tool := &fakeTool{spec: ToolSpec{Name: "current_time"}}
	chat := &scriptedChat{responses: []*Response{
		{FinishReason: FinishSafety},
	}}
	engine, _ := newTestEngine(chat, tool)

	answer, err := engine.SendTurn(context.Background(), Turn{Text: "something nasty"}, nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if answer != SafetyNotice {
		t.Fatalf("answer = %q, want safety notice", answer)
	}
	if len(tool.calls) != 0 {
		t.Fatalf("expected no tool dispatch after safety block")
	}
	if len(chat.sends) != 1 {
		t.Fatalf("expected no further sends, got %d", len(chat.sends))
	}
}

func TestSendTurnRoundCapDisablesTools(t *testing.T) {
	tool := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: "tick"},
	}
	// The model stubbornly calls tools forever.
	var responses []*Response
	for i := 0; i < 10; i++ {
		responses = append(responses, toolCallResponse("current_time", nil))
	}
	chat := &scriptedChat{responses: responses}
	engine, _ := newTestEngine(chat, tool)

	_, err := engine.SendTurn(context.Background(), Turn{Text: "loop"}, nil)
	if !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("SendTurn() error = %v, want ErrNoAnswer", err)
	}

	// Initial send plus one per dispatch round.
	if len(chat.sends) != DefaultMaxToolRounds+1 {
		t.Fatalf("expected %d sends, got %d", DefaultMaxToolRounds+1, len(chat.sends))
	}
	// Tools stay enabled until the cap, then the final send withholds them.
	for i := 0; i < DefaultMaxToolRounds; i++ {
		if len(chat.tools[i]) == 0 {
			t.Fatalf("send %d: expected tools enabled", i)
		}
	}
	if len(chat.tools[DefaultMaxToolRounds]) != 0 {
		t.Fatalf("final send: expected tools disabled")
	}
	if len(tool.calls) != DefaultMaxToolRounds {
		t.Fatalf("expected %d dispatches, got %d", DefaultMaxToolRounds, len(tool.calls))
	}
}

func TestSendTurnCapThenTextAnswer(t *testing.T) {
	tool := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: "tick"},
	}
	var responses []*Response
	for i := 0; i < DefaultMaxToolRounds; i++ {
		responses = append(responses, toolCallResponse("current_time", nil))
	}
	responses = append(responses, textResponse("fine, here is your answer"))
	chat := &scriptedChat{responses: responses}
	engine, _ := newTestEngine(chat, tool)

	answer, err := engine.SendTurn(context.Background(), Turn{Text: "loop"}, nil)
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if answer != "fine, here is your answer" {
		t.Fatalf("answer = %q", answer)
	}
}

func TestSendTurnBlockedFeedbackSend(t *testing.T) {
	tool := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: "tick"},
	}
	chat := &scriptedChat{
		responses: []*Response{toolCallResponse("current_time", nil)},
		errAt:     map[int]error{1: fmt.Errorf("%w: upstream refused", ErrResponseBlocked)},
	}
	engine, _ := newTestEngine(chat, tool)

	_, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, nil)
	if !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("SendTurn() error = %v, want ErrNoAnswer", err)
	}
}

func TestSendTurnTransportErrorPropagates(t *testing.T) {
	transportErr := errors.New("connection reset")
	chat := &scriptedChat{errAt: map[int]error{0: transportErr}}
	engine, _ := newTestEngine(chat)

	_, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, nil)
	if !errors.Is(err, transportErr) {
		t.Fatalf("SendTurn() error = %v, want wrapped transport error", err)
	}
}

func TestSendTurnProgressCallback(t *testing.T) {
	tool := &fakeTool{
		spec:    ToolSpec{Name: "web_search", Progress: "Google検索を開始", Params: []ParamSpec{{Name: "q"}}},
		outcome: Outcome{OK: true, Message: "results"},
	}
	silent := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: "tick"},
	}
	chat := &scriptedChat{responses: []*Response{
		{FinishReason: FinishStop, Parts: []ResponsePart{
			{FunctionCall: &FunctionCall{Name: "web_search", Args: map[string]any{"q": "weather"}}},
			{FunctionCall: &FunctionCall{Name: "current_time"}},
		}},
		textResponse("done"),
	}}
	engine, _ := newTestEngine(chat, tool, silent)

	var notices []string
	_, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, func(status string) {
		notices = append(notices, status)
	})
	if err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if len(notices) != 1 || notices[0] != "Google検索を開始" {
		t.Fatalf("notices = %v, want the search announcement only", notices)
	}
	if len(tool.calls) != 1 || len(silent.calls) != 1 {
		t.Fatalf("expected both tools dispatched in order")
	}
}

func TestSendTurnVisionModeSwitch(t *testing.T) {
	chat := &scriptedChat{responses: []*Response{
		textResponse("text answer"),
		textResponse("a cat"),
		textResponse("still vision"),
	}}
	engine, provider := newTestEngine(chat, &fakeTool{spec: ToolSpec{Name: "current_time"}})

	if _, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if engine.Mode() != ModeChat {
		t.Fatalf("mode = %v, want chat", engine.Mode())
	}

	if _, err := engine.SendTurn(context.Background(), Turn{
		Text:      "what is this?",
		ImageRefs: []string{"https://example.org/cat.png"},
	}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if engine.Mode() != ModeVision {
		t.Fatalf("mode = %v, want vision", engine.Mode())
	}
	// Vision turns carry the image part and no tools.
	parts := chat.sends[1]
	if len(parts) != 2 || parts[1].Blob == nil {
		t.Fatalf("expected text+image parts, got %+v", parts)
	}
	if len(chat.tools[1]) != 0 {
		t.Fatalf("expected tools disabled in vision mode")
	}

	// The switch is sticky: an image-free follow-up stays in vision mode.
	if _, err := engine.SendTurn(context.Background(), Turn{Text: "and now?"}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if engine.Mode() != ModeVision {
		t.Fatalf("mode = %v, want sticky vision", engine.Mode())
	}
	if len(provider.modes) != 2 {
		t.Fatalf("expected 2 chat contexts (chat, vision), got %v", provider.modes)
	}
	if provider.modes[1] != ModeVision {
		t.Fatalf("second context mode = %v, want vision", provider.modes[1])
	}
}

func TestSendTurnExplicitModeSwitchBack(t *testing.T) {
	chat := &scriptedChat{responses: []*Response{
		textResponse("a cat"),
		textResponse("back to chat"),
	}}
	engine, provider := newTestEngine(chat, &fakeTool{spec: ToolSpec{Name: "current_time"}})

	if _, err := engine.SendTurn(context.Background(), Turn{
		Text:      "what is this?",
		ImageRefs: []string{"img"},
	}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if _, err := engine.SendTurn(context.Background(), Turn{Text: "hi", Mode: ModeChat}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	if engine.Mode() != ModeChat {
		t.Fatalf("mode = %v, want chat after explicit switch", engine.Mode())
	}
	if len(provider.modes) != 2 || provider.modes[1] != ModeChat {
		t.Fatalf("expected a fresh chat context, got %v", provider.modes)
	}
}

func TestSendTurnAccumulatesUsage(t *testing.T) {
	r1 := toolCallResponse("current_time", nil)
	r1.Usage = Usage{PromptTokens: 10, TotalTokens: 25}
	r2 := textResponse("done")
	r2.Usage = Usage{PromptTokens: 40, TotalTokens: 90}

	tool := &fakeTool{
		spec:    ToolSpec{Name: "current_time"},
		outcome: Outcome{OK: true, Message: "tick"},
	}
	chat := &scriptedChat{responses: []*Response{r1, r2}}
	engine, _ := newTestEngine(chat, tool)

	if _, err := engine.SendTurn(context.Background(), Turn{Text: "hi"}, nil); err != nil {
		t.Fatalf("SendTurn() error = %v", err)
	}
	usage := engine.Usage()
	if usage.PromptTokens != 50 || usage.TotalTokens != 115 {
		t.Fatalf("usage = %+v, want 50/115", usage)
	}
}
