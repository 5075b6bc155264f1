package websearch

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/parley/internal/agent"
)

// Tool adapts Client to the agent tool contract.
type Tool struct {
	client *Client
}

// New creates the web-search tool.
func New(cfg Config, logger *slog.Logger) *Tool {
	return &Tool{client: NewClient(cfg, logger)}
}

// Client exposes the underlying search client, for tests.
func (t *Tool) Client() *Client { return t.client }

func (t *Tool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "web_search",
		Description: "When you need to search, do a google search",
		Params: []agent.ParamSpec{
			{Name: "q", Description: "Query used for google search. Be able to search by word."},
		},
		Required: []string{"q"},
		Progress: "Google検索を開始",
	}
}

func (t *Tool) Call(ctx context.Context, args map[string]any) agent.Outcome {
	query, _ := args["q"].(string)
	result, err := t.client.Search(ctx, query)
	if err != nil {
		return agent.Outcome{OK: false, Message: err.Error()}
	}
	return agent.Outcome{OK: true, Message: result}
}
