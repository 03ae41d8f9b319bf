// Package direct fetches pages without the scraping service. It is a
// degraded Scraper used when no Firecrawl key is configured: static
// HTML only, no JS rendering.
package direct

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/domain"
	"DeliberoScan/internal/infrastructure/firecrawl"
	"DeliberoScan/internal/ports"
)

// Scraper downloads a page and extracts its main text and links.
type Scraper struct {
	client    *http.Client
	userAgent string
}

var _ ports.Scraper = (*Scraper)(nil)

// NewScraper wires an HTTP client; a nil client gets a 20s timeout default.
func NewScraper(client *http.Client, userAgent string) *Scraper {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if userAgent == "" {
		userAgent = "DeliberoScan/1.0"
	}
	return &Scraper{client: client, userAgent: userAgent}
}

// Scrape fetches the page and renders a plain-text approximation of its
// main content plus attachment links.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (domain.ScrapeResult, error) {
	formatted := firecrawl.NormalizeURL(pageURL)

	doc, err := s.fetchDocument(ctx, formatted)
	if err != nil {
		return domain.ScrapeResult{}, err
	}

	base, err := url.Parse(formatted)
	if err != nil {
		return domain.ScrapeResult{}, fmt.Errorf("parse url %s: %w", formatted, err)
	}

	content := doc.Find("main")
	if content.Length() == 0 {
		content = doc.Find("body")
	}

	var links []string
	content.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		resolved, rErr := base.Parse(href)
		if rErr != nil {
			return
		}
		links = append(links, resolved.String())
	})

	return domain.ScrapeResult{
		Markdown:  normalizeText(content.Text()),
		Title:     strings.TrimSpace(doc.Find("title").First().Text()),
		Allegati:  domain.AllegatiFromLinks(links),
		SourceURL: formatted,
	}, nil
}

func (s *Scraper) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Upstream("scrape", 0, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apperr.Upstream("scrape", resp.StatusCode, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, apperr.Upstream("scrape", resp.StatusCode, "parse document: "+err.Error())
	}

	return doc, nil
}

func normalizeText(raw string) string {
	lines := strings.Split(raw, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
