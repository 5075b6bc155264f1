// Package webfetch provides the page-content tool: it fetches a URL and
// returns its HTML stripped down to bare markup the model can read.
package webfetch

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/haasonsaas/parley/internal/agent"
)

const fetchTimeout = 10 * time.Second

// failureMessage is fed back to the model when the page yields nothing.
const failureMessage = "URLが不正 or 取得できませんでした"

// Tool fetches a page and sanitizes its HTML. Every expected failure (bad
// scheme, non-200, timeout, unparsable body) produces an empty fetch result
// and a failed outcome, never an error.
type Tool struct {
	client *http.Client
	logger *slog.Logger
}

// New creates the page-fetch tool with a bounded HTTP client.
func New(logger *slog.Logger) *Tool {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tool{
		client: &http.Client{Timeout: fetchTimeout},
		logger: logger.With("tool", "web_fetch"),
	}
}

func (t *Tool) Spec() agent.ToolSpec {
	return agent.ToolSpec{
		Name:        "web_fetch",
		Description: "Used when you want to get more detailed information based on the URL",
		Params: []agent.ParamSpec{
			{Name: "q", Description: "URL"},
		},
		Required: []string{"q"},
		Progress: "スクレイピングを開始",
	}
}

func (t *Tool) Call(ctx context.Context, args map[string]any) agent.Outcome {
	rawURL, _ := args["q"].(string)
	html := t.Fetch(ctx, rawURL)
	if html == "" {
		return agent.Outcome{OK: false, Message: failureMessage}
	}
	return agent.Outcome{OK: true, Message: html}
}

// Fetch retrieves rawURL and returns its sanitized HTML, or "" on any
// failure.
func (t *Tool) Fetch(ctx context.Context, rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return ""
	}
	// The placeholder domain the model likes to invent.
	if parsed.Host == "example.com" || parsed.Host == "www.example.com" {
		return ""
	}

	t.logger.Info("fetching page", "host", parsed.Host)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return ""
	}
	resp, err := t.client.Do(req)
	if err != nil {
		t.logger.Debug("fetch failed", "host", parsed.Host, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.logger.Debug("fetch rejected", "host", parsed.Host, "status", resp.StatusCode)
		return ""
	}

	sanitized, err := Sanitize(resp.Body)
	if err != nil {
		return ""
	}
	return sanitized
}
