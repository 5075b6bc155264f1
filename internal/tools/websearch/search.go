// Package websearch provides the web-search tool backed by the Google
// Custom Search JSON API.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	endpoint    = "https://customsearch.googleapis.com/customsearch/v1"
	resultCount = 10

	// requestTimeout bounds one Custom Search API call.
	requestTimeout = 15 * time.Second

	// noResultSentinel is fed back to the model verbatim when the search
	// returns nothing usable.
	noResultSentinel = "No good Google Search Result was found"
)

// Config holds Custom Search credentials. The tool is only registered when
// both fields are set.
type Config struct {
	APIKey   string `yaml:"api_key"`
	EngineID string `yaml:"engine_id"`
}

// Enabled reports whether the credentials are complete.
func (c Config) Enabled() bool {
	return c.APIKey != "" && c.EngineID != ""
}

// Client queries the Custom Search API.
type Client struct {
	cfg     Config
	client  *http.Client
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a search client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: requestTimeout},
		baseURL: endpoint,
		logger:  logger.With("tool", "web_search"),
	}
}

// SetBaseURL overrides the API endpoint, for tests.
func (c *Client) SetBaseURL(u string) { c.baseURL = u }

type searchItem struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Items []searchItem `json:"items"`
}

// Search runs a query and returns a readable concatenation of result
// snippets, one JSON object per hit joined by spaces, or the no-result
// sentinel when nothing came back.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	c.logger.Info("searching", "query", query)

	params := url.Values{}
	params.Set("key", c.cfg.APIKey)
	params.Set("cx", c.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(resultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("websearch: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("websearch: decode response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return noResultSentinel, nil
	}

	snippets := make([]string, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Snippet == "" {
			continue
		}
		encoded, err := json.Marshal(item)
		if err != nil {
			continue
		}
		snippets = append(snippets, string(encoded))
	}
	if len(snippets) == 0 {
		return noResultSentinel, nil
	}
	return strings.Join(snippets, " "), nil
}
