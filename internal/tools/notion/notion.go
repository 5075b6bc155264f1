// Package notion provides the knowledge-base search tool against the Notion
// API.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	apiVersion = "2022-06-28"
	pageSize   = 10

	// requestTimeout bounds one Notion API call.
	requestTimeout = 15 * time.Second
)

// Config holds the Notion integration token. The tool is only registered
// when the token is set.
type Config struct {
	APIKey string `yaml:"api_key"`
}

// Enabled reports whether a token is configured.
func (c Config) Enabled() bool { return c.APIKey != "" }

// Page is one search hit. Database rows carrying a URL property surface
// title and url with no body; plain pages carry body text in Content.
type Page struct {
	Title   string `json:"title"`
	PageID  string `json:"pageId"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// SearchResult is a page of search hits with pagination state.
type SearchResult struct {
	Result     []Page `json:"result"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// Client queries the Notion search and blocks endpoints.
type Client struct {
	cfg     Config
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Notion client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: "https://api.notion.com",
		logger:  logger.With("tool", "notion_search"),
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type searchRequest struct {
	Query       string `json:"query"`
	PageSize    int    `json:"page_size"`
	StartCursor string `json:"start_cursor,omitempty"`
}

type richText struct {
	PlainText string `json:"plain_text"`
}

type titleProperty struct {
	Title []richText `json:"title"`
}

type urlProperty struct {
	URL string `json:"url"`
}

type searchHit struct {
	Object     string                     `json:"object"`
	ID         string                     `json:"id"`
	Properties map[string]json.RawMessage `json:"properties"`
}

type searchEnvelope struct {
	Results    []searchHit `json:"results"`
	HasMore    bool        `json:"has_more"`
	NextCursor string      `json:"next_cursor"`
}

// Search queries the workspace. Page hits are enriched with their body text
// via a second blocks-children call; database rows with a URL property
// surface title and url only.
func (c *Client) Search(ctx context.Context, query, startCursor string) (SearchResult, error) {
	c.logger.Info("searching workspace", "query", query)

	payload, err := json.Marshal(searchRequest{
		Query:       query,
		PageSize:    pageSize,
		StartCursor: startCursor,
	})
	if err != nil {
		return SearchResult{}, err
	}

	var envelope searchEnvelope
	if err := c.do(ctx, http.MethodPost, "/v1/search", payload, &envelope); err != nil {
		return SearchResult{}, err
	}

	result := SearchResult{
		HasMore:    envelope.HasMore,
		NextCursor: envelope.NextCursor,
		Result:     []Page{},
	}
	for _, hit := range envelope.Results {
		if hit.Object != "page" {
			continue
		}
		if raw, ok := hit.Properties["title"]; ok {
			var prop titleProperty
			if err := json.Unmarshal(raw, &prop); err != nil || len(prop.Title) == 0 {
				continue
			}
			result.Result = append(result.Result, Page{
				Title:   joinPlainText(prop.Title),
				PageID:  hit.ID,
				Content: c.pageContents(ctx, hit.ID),
			})
			continue
		}
		if raw, ok := hit.Properties["URL"]; ok {
			var prop urlProperty
			if err := json.Unmarshal(raw, &prop); err != nil {
				continue
			}
			title, ok := rowTitle(hit.Properties)
			if !ok {
				continue
			}
			result.Result = append(result.Result, Page{
				Title:  title,
				PageID: hit.ID,
				URL:    prop.URL,
			})
		}
	}
	return result, nil
}

// pageContents flattens a page's block children into plain text. Failures
// degrade to an empty body rather than failing the search.
func (c *Client) pageContents(ctx context.Context, pageID string) string {
	if pageID == "" {
		return ""
	}

	var envelope struct {
		Results []map[string]json.RawMessage `json:"results"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/blocks/"+pageID+"/children", nil, &envelope); err != nil {
		c.logger.Debug("page contents unavailable", "page", pageID, "error", err)
		return ""
	}

	var sb bytes.Buffer
	for _, block := range envelope.Results {
		var blockType string
		if raw, ok := block["type"]; ok {
			_ = json.Unmarshal(raw, &blockType)
		}
		raw, ok := block[blockType]
		if !ok {
			continue
		}
		var body struct {
			RichText []richText `json:"rich_text"`
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			continue
		}
		for _, rt := range body.RichText {
			sb.WriteString(rt.PlainText)
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (c *Client) do(ctx context.Context, method, path string, payload []byte, out any) error {
	var body *bytes.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notion: %s %s: status %d", method, path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// rowTitle extracts the title of a database row, whose title property key is
// the user-visible column name rather than "title".
func rowTitle(properties map[string]json.RawMessage) (string, bool) {
	for key, raw := range properties {
		if key == "URL" {
			continue
		}
		var prop titleProperty
		if err := json.Unmarshal(raw, &prop); err != nil || len(prop.Title) == 0 {
			continue
		}
		return joinPlainText(prop.Title), true
	}
	return "", false
}

func joinPlainText(parts []richText) string {
	var sb bytes.Buffer
	for _, part := range parts {
		sb.WriteString(part.PlainText)
	}
	return sb.String()
}
