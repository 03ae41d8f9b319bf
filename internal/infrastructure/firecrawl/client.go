// Package firecrawl adapts the external scraping service into the
// Scraper port: one URL in, normalized markdown plus attachment links out.
package firecrawl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/config"
	"DeliberoScan/internal/domain"
	"DeliberoScan/internal/ports"
)

// Client talks to the Firecrawl HTTP API.
type Client struct {
	endpoint string
	apiKey   string
	waitFor  int
	http     *http.Client
}

var _ ports.Scraper = (*Client)(nil)

// NewClient builds a reusable client from configuration.
func NewClient(cfg config.FirecrawlConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		waitFor:  cfg.WaitFor,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

type scrapeRequest struct {
	URL             string   `json:"url"`
	Formats         []string `json:"formats"`
	OnlyMainContent bool     `json:"onlyMainContent"`
	WaitFor         int      `json:"waitFor,omitempty"`
}

type scrapePayload struct {
	Markdown string   `json:"markdown"`
	Links    []string `json:"links"`
	Metadata struct {
		Title string `json:"title"`
	} `json:"metadata"`
}

type scrapeResponse struct {
	Success bool          `json:"success"`
	Error   string        `json:"error"`
	Data    scrapePayload `json:"data"`

	// older API revisions inline the payload at the top level
	scrapePayload
}

// Scrape fetches one page. URLs without a scheme are assumed https.
func (c *Client) Scrape(ctx context.Context, pageURL string) (domain.ScrapeResult, error) {
	if c.apiKey == "" {
		return domain.ScrapeResult{}, fmt.Errorf("firecrawl api key: %w", apperr.ErrConfiguration)
	}

	formatted := NormalizeURL(pageURL)

	body, err := json.Marshal(scrapeRequest{
		URL:             formatted,
		Formats:         []string{"markdown", "links"},
		OnlyMainContent: true,
		WaitFor:         c.waitFor,
	})
	if err != nil {
		return domain.ScrapeResult{}, fmt.Errorf("marshal scrape request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return domain.ScrapeResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ScrapeResult{}, apperr.Upstream("scrape", 0, err.Error())
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.ScrapeResult{}, apperr.Upstream("scrape", resp.StatusCode, err.Error())
	}

	var decoded scrapeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return domain.ScrapeResult{}, apperr.Upstream("scrape", resp.StatusCode, "malformed response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := decoded.Error
		if message == "" {
			message = fmt.Sprintf("firecrawl error %d", resp.StatusCode)
		}
		return domain.ScrapeResult{}, apperr.Upstream("scrape", resp.StatusCode, message)
	}

	payload := decoded.Data
	if payload.Markdown == "" && decoded.scrapePayload.Markdown != "" {
		payload = decoded.scrapePayload
	}

	return domain.ScrapeResult{
		Markdown:  payload.Markdown,
		Title:     payload.Metadata.Title,
		Allegati:  domain.AllegatiFromLinks(payload.Links),
		SourceURL: formatted,
	}, nil
}

// NormalizeURL trims the input and prefixes https:// when no scheme is given.
func NormalizeURL(raw string) string {
	formatted := strings.TrimSpace(raw)
	if !strings.HasPrefix(formatted, "http://") && !strings.HasPrefix(formatted, "https://") {
		formatted = "https://" + formatted
	}
	return formatted
}
