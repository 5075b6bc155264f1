package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/parley/internal/observability"
)

// Fixed strings the engine returns or sends in place of structured data.
// They are part of the conversation itself, so they stay localized.
const (
	// SafetyNotice is returned as the final answer when generation is
	// blocked by the safety filter.
	SafetyNotice = "安全な応答が生成されませんでした。"

	// reconsiderPrompt is sent when a tool-call round produced no
	// results, nudging the model toward a usable reply.
	reconsiderPrompt = "もう一度考えてください。"
)

// DefaultMaxToolRounds caps tool-dispatch rounds within a single turn.
const DefaultMaxToolRounds = 5

// DefaultSendTimeout bounds one model call.
const DefaultSendTimeout = 120 * time.Second

// AttachmentResolver normalizes an image reference (URL, local path, data
// URI, or raw base64) into inline data.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref, mimeTypeHint string) (Blob, error)
}

// ProgressFunc receives short status strings while a turn is in flight,
// for UI feedback. It must not block.
type ProgressFunc func(status string)

// Turn is one user submission.
type Turn struct {
	Text      string
	ImageRefs []string

	// Mode optionally requests a model mode for image-free turns. Ignored
	// when ImageRefs is non-empty (images force ModeVision).
	Mode Mode
}

// EngineConfig configures a conversation engine.
type EngineConfig struct {
	Provider Provider
	Registry *Registry
	Resolver AttachmentResolver
	Logger   *slog.Logger

	// MaxToolRounds caps tool-dispatch rounds per SendTurn.
	// Default: DefaultMaxToolRounds.
	MaxToolRounds int

	// SendTimeout bounds each individual model call.
	// Default: DefaultSendTimeout.
	SendTimeout time.Duration

	// Metrics records model and tool telemetry when set.
	Metrics *observability.Metrics
}

// Engine owns one conversation context and drives the tool-calling loop:
// it sends user turns to the model, executes requested tools, feeds results
// back, and repeats until the model yields a text answer or the round cap
// forces one.
//
// An engine serves one session and at most one in-flight turn at a time;
// callers must not invoke SendTurn concurrently.
type Engine struct {
	provider Provider
	registry *Registry
	resolver AttachmentResolver
	logger   *slog.Logger
	metrics  *observability.Metrics

	maxRounds   int
	sendTimeout time.Duration

	chat  Chat
	mode  Mode
	usage Usage
}

// NewEngine creates an engine. The chat context is started lazily on the
// first turn so mode selection can account for attachments.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxToolRounds
	}
	sendTimeout := cfg.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Engine{
		provider:    cfg.Provider,
		registry:    registry,
		resolver:    cfg.Resolver,
		logger:      logger.With("component", "engine"),
		metrics:     cfg.Metrics,
		maxRounds:   maxRounds,
		sendTimeout: sendTimeout,
	}
}

// Usage returns the token totals accumulated across every model call made
// by this engine.
func (e *Engine) Usage() Usage {
	return e.usage
}

// Mode returns the current model mode.
func (e *Engine) Mode() Mode {
	if e.mode == "" {
		return ModeChat
	}
	return e.mode
}

// SendTurn submits one user turn and runs the conversation loop to a final
// text answer.
//
// A safety-blocked response is not an error: the fixed notice text is
// returned as the answer. ErrNoAnswer is returned when the loop ends without
// text (blocked feedback send, or round-cap exhaustion with the model still
// emitting tool calls); callers should report it but keep the session.
// Any other error means the model transport failed and the engine should be
// replaced by its owner.
func (e *Engine) SendTurn(ctx context.Context, turn Turn, progress ProgressFunc) (string, error) {
	if err := e.ensureChat(ctx, turn); err != nil {
		return "", err
	}

	parts, err := e.buildParts(ctx, turn)
	if err != nil {
		return "", err
	}

	var tools []ToolSpec
	if e.mode == ModeChat && e.registry.Len() > 0 {
		tools = e.registry.Specs()
	}

	resp, err := e.send(ctx, parts, tools)
	if err != nil {
		return "", fmt.Errorf("model send: %w", err)
	}

	for round := 1; ; round++ {
		if resp.FinishReason == FinishSafety {
			e.logger.Warn("generation safety blocked", "round", round)
			return SafetyNotice, nil
		}
		if text, ok := firstText(resp.Parts); ok {
			return text, nil
		}
		if round > e.maxRounds {
			e.logger.Error("tool loop exhausted without a text answer",
				"rounds", e.maxRounds)
			return "", ErrNoAnswer
		}

		results := e.dispatch(ctx, resp.Parts, progress)

		// Past the cap the send still happens, but with tools
		// withheld so the model is forced toward a text answer.
		next := tools
		if round >= e.maxRounds {
			next = nil
		}

		if len(results) == 0 {
			resp, err = e.send(ctx, []Part{{Text: reconsiderPrompt}}, next)
			if err != nil {
				return "", fmt.Errorf("model send: %w", err)
			}
			continue
		}

		resp, err = e.send(ctx, results, next)
		if err != nil {
			if errors.Is(err, ErrResponseBlocked) {
				e.logger.Error("tool result send blocked", "error", err)
				return "", ErrNoAnswer
			}
			return "", fmt.Errorf("model send: %w", err)
		}
	}
}

// ensureChat starts or replaces the chat context according to the turn's
// mode. Attachments force ModeVision and the switch is sticky: once a
// session has seen images it stays in vision mode unless the caller asks
// for ModeChat on a later image-free turn. Switching modes discards the
// accumulated history, which is logged so the reset is observable.
func (e *Engine) ensureChat(ctx context.Context, turn Turn) error {
	mode := e.Mode()
	switch {
	case len(turn.ImageRefs) > 0:
		mode = ModeVision
	case turn.Mode != "":
		mode = turn.Mode
	}

	if e.chat != nil && mode == e.mode {
		return nil
	}
	if e.chat != nil {
		e.logger.Info("conversation history reset on mode switch",
			"from", e.mode, "to", mode)
	}
	chat, err := e.provider.StartChat(ctx, mode)
	if err != nil {
		return fmt.Errorf("start chat: %w", err)
	}
	e.chat = chat
	e.mode = mode
	return nil
}

// buildParts assembles the outbound turn: the text part first, then every
// resolved attachment in the order supplied.
func (e *Engine) buildParts(ctx context.Context, turn Turn) ([]Part, error) {
	parts := []Part{{Text: turn.Text}}
	for _, ref := range turn.ImageRefs {
		blob, err := e.resolver.Resolve(ctx, ref, "")
		if err != nil {
			return nil, fmt.Errorf("resolve attachment: %w", err)
		}
		parts = append(parts, Part{Blob: &blob})
	}
	return parts, nil
}

func (e *Engine) send(ctx context.Context, parts []Part, tools []ToolSpec) (*Response, error) {
	sendCtx, cancel := context.WithTimeout(ctx, e.sendTimeout)
	defer cancel()

	start := time.Now()
	resp, err := e.chat.Send(sendCtx, parts, tools)
	if e.metrics != nil {
		e.metrics.ObserveModelCall(string(e.Mode()), time.Since(start), err == nil)
	}
	if err != nil {
		return nil, err
	}
	e.usage.Add(resp.Usage)
	if e.metrics != nil {
		e.metrics.AddTokens(resp.Usage.PromptTokens, resp.Usage.TotalTokens)
	}
	return resp, nil
}

// dispatch executes the function calls of one response in received order.
// Unknown tool names are logged and skipped without producing a result.
func (e *Engine) dispatch(ctx context.Context, parts []ResponsePart, progress ProgressFunc) []Part {
	var results []Part
	for _, part := range parts {
		call := part.FunctionCall
		if call == nil {
			continue
		}
		tool, ok := e.registry.Get(call.Name)
		if !ok {
			e.logger.Warn("model requested unregistered tool", "tool", call.Name)
			continue
		}
		spec := tool.Spec()
		if progress != nil && spec.Progress != "" {
			progress(spec.Progress)
		}

		start := time.Now()
		out := tool.Call(ctx, call.Args)
		if e.metrics != nil {
			e.metrics.ObserveToolExecution(call.Name, time.Since(start), out.OK)
		}
		e.logger.Debug("tool executed",
			"tool", call.Name, "ok", out.OK, "elapsed", time.Since(start))

		results = append(results, Part{FunctionResponse: &FunctionResponse{
			Name:     call.Name,
			Response: out.Response(),
		}})
	}
	return results
}

func firstText(parts []ResponsePart) (string, bool) {
	for _, part := range parts {
		if part.Text != "" {
			return part.Text, true
		}
	}
	return "", false
}
