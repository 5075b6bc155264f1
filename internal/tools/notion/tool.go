package notion

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/haasonsaas/parley/internal/agent"
)

// missMessage is fed back to the model when the search returned no hits.
const missMessage = "Notionの検索に失敗しました。queryを確認してください。"

// Tool adapts Client to the agent tool contract.
type Tool struct {
	client *Client
}

// NewTool creates the knowledge-base search tool.
func NewTool(cfg Config, logger *slog.Logger) *Tool {
	return &Tool{client: NewClient(cfg, logger)}
}

// Client exposes the underlying Notion client, for tests.
func (t *Tool) Client() *Client { return t.client }

func (t *Tool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "notion_search",
		Description: "Search the user's personal Notion workspace for notes, login information, and details about their own services.",
		Params: []agent.ParamSpec{
			{Name: "q", Description: "Query used for Notion. Be able to search by word."},
			{Name: "start_cursor", Description: "Start Id of next page. Be able to also search with notion"},
		},
		Required: []string{"q"},
		Progress: "Notion検索を開始",
	}
}

func (t *Tool) Call(ctx context.Context, args map[string]any) agent.Outcome {
	query, _ := args["q"].(string)
	startCursor, _ := args["start_cursor"].(string)

	result, err := t.client.Search(ctx, query, startCursor)
	if err != nil {
		return agent.Outcome{OK: false, Message: err.Error()}
	}
	if len(result.Result) == 0 {
		return agent.Outcome{OK: false, Message: missMessage}
	}
	encoded, err := json.Marshal(result)
	if err != nil {
		return agent.Outcome{OK: false, Message: err.Error()}
	}
	return agent.Outcome{OK: true, Message: string(encoded)}
}
