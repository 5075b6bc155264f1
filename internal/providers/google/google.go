// Package google implements the agent chat provider on the Google Gen AI SDK.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/haasonsaas/parley/internal/agent"
)

const (
	defaultChatModel   = "gemini-2.0-flash"
	defaultVisionModel = "gemini-2.0-flash"

	defaultMaxOutputTokens = 2048
)

// Config holds provider settings.
type Config struct {
	// APIKey authenticates against the Gemini API (required).
	APIKey string

	// ChatModel serves text turns with tool calling. Default: gemini-2.0-flash.
	ChatModel string

	// VisionModel serves turns carrying image attachments.
	// Default: gemini-2.0-flash.
	VisionModel string

	// MaxOutputTokens bounds each model reply. Default: 2048.
	MaxOutputTokens int32

	Logger *slog.Logger
}

// Provider creates Gemini chat contexts. It is safe for concurrent use;
// each chat owns its own history.
type Provider struct {
	client *genai.Client
	cfg    Config
	logger *slog.Logger
}

// New creates a provider backed by the Gemini API.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = defaultChatModel
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = defaultVisionModel
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = defaultMaxOutputTokens
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: create client: %w", err)
	}
	return &Provider{
		client: client,
		cfg:    cfg,
		logger: logger.With("component", "google"),
	}, nil
}

// StartChat opens a fresh conversation context for the given mode.
func (p *Provider) StartChat(_ context.Context, mode agent.Mode) (agent.Chat, error) {
	model := p.cfg.ChatModel
	if mode == agent.ModeVision {
		model = p.cfg.VisionModel
	}
	return &chat{provider: p, model: model}, nil
}

// chat holds one conversation's turn history. The history is kept explicitly
// so tool availability can change between sends within the same context.
type chat struct {
	provider *Provider
	model    string
	history  []*genai.Content
}

// Send submits parts as the next user turn and appends both the turn and the
// model's reply to the history. A reply the API withholds entirely (prompt
// blocked, no candidates) is reported as agent.ErrResponseBlocked.
func (c *chat) Send(ctx context.Context, parts []agent.Part, tools []agent.ToolSpec) (*agent.Response, error) {
	contents := append(c.history, &genai.Content{
		Role:  genai.RoleUser,
		Parts: toGenaiParts(parts),
	})

	resp, err := c.provider.client.Models.GenerateContent(ctx, c.model, contents, c.buildConfig(tools))
	if err != nil {
		return nil, fmt.Errorf("google: generate content: %w", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", agent.ErrResponseBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates returned", agent.ErrResponseBlocked)
	}

	cand := resp.Candidates[0]
	c.history = contents
	if cand.Content != nil {
		c.history = append(c.history, cand.Content)
	}

	out := &agent.Response{FinishReason: mapFinishReason(cand.FinishReason)}
	if cand.Content != nil {
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.Text != "":
				out.Parts = append(out.Parts, agent.ResponsePart{Text: part.Text})
			case part.FunctionCall != nil:
				out.Parts = append(out.Parts, agent.ResponsePart{
					FunctionCall: &agent.FunctionCall{
						Name: part.FunctionCall.Name,
						Args: part.FunctionCall.Args,
					},
				})
			}
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = agent.Usage{
			PromptTokens: int64(resp.UsageMetadata.PromptTokenCount),
			TotalTokens:  int64(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

func (c *chat) buildConfig(tools []agent.ToolSpec) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0.9)),
		TopP:            genai.Ptr(float32(1)),
		TopK:            genai.Ptr(float32(1)),
		MaxOutputTokens: c.provider.cfg.MaxOutputTokens,
		SafetySettings:  safetySettings(),
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toGenaiDeclarations(tools)}}
	}
	return config
}

func toGenaiParts(parts []agent.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, part := range parts {
		switch {
		case part.Blob != nil:
			out = append(out, &genai.Part{
				InlineData: &genai.Blob{
					MIMEType: part.Blob.MIMEType,
					Data:     part.Blob.Data,
				},
			})
		case part.FunctionResponse != nil:
			out = append(out, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     part.FunctionResponse.Name,
					Response: part.FunctionResponse.Response,
				},
			})
		default:
			out = append(out, &genai.Part{Text: part.Text})
		}
	}
	return out
}

func toGenaiDeclarations(tools []agent.ToolSpec) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		params := &genai.Schema{
			Type:       genai.TypeObject,
			Properties: map[string]*genai.Schema{},
		}
		for _, p := range tool.Params {
			params.Properties[p.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: p.Description,
			}
		}
		params.Required = tool.Required
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters:  params,
		})
	}
	return decls
}

func mapFinishReason(reason genai.FinishReason) agent.FinishReason {
	switch reason {
	case genai.FinishReasonSafety:
		return agent.FinishSafety
	case genai.FinishReasonStop:
		return agent.FinishStop
	default:
		return agent.FinishOther
	}
}

// safetySettings blocks medium-and-above content across the four harm
// categories.
func safetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHateSpeech,
		genai.HarmCategoryDangerousContent,
		genai.HarmCategoryHarassment,
		genai.HarmCategorySexuallyExplicit,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  cat,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		})
	}
	return settings
}
