package firecrawl

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DeliberoScan/internal/apperr"
	"DeliberoScan/internal/config"
)

func testConfig(endpoint string) config.FirecrawlConfig {
	return config.FirecrawlConfig{
		Endpoint: endpoint,
		APIKey:   "fc-test",
		WaitFor:  3000,
		Timeout:  5 * time.Second,
	}
}

func TestScrape(t *testing.T) {
	t.Parallel()

	var captured scrapeRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fc-test" {
			t.Errorf("missing bearer credential")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"markdown": "# Delibera 20/2026/R/com\n\nTesto.",
				"links": []string{
					"https://www.arera.it/allegati/docs/26/020-26.pdf",
					"https://www.arera.it/altro",
				},
				"metadata": map[string]string{"title": "Delibera 20/2026"},
			},
		})
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL))

	result, err := c.Scrape(context.Background(), "www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}

	if captured.URL != "https://www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26" {
		t.Fatalf("scheme was not prefixed: %s", captured.URL)
	}
	if len(captured.Formats) != 2 || !captured.OnlyMainContent {
		t.Fatalf("unexpected scrape options: %+v", captured)
	}
	if result.Title != "Delibera 20/2026" {
		t.Fatalf("unexpected title: %s", result.Title)
	}
	if len(result.Allegati) != 1 || result.Allegati[0].Nome != "020-26.pdf" {
		t.Fatalf("unexpected allegati: %+v", result.Allegati)
	}
	if result.SourceURL != "https://www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26" {
		t.Fatalf("unexpected source url: %s", result.SourceURL)
	}
}

func TestScrapeUpstreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"success":false,"error":"insufficient credits"}`))
	}))
	defer server.Close()

	c := NewClient(testConfig(server.URL))

	_, err := c.Scrape(context.Background(), "https://www.arera.it/x")
	var ue *apperr.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if ue.Status != http.StatusPaymentRequired || ue.Message != "insufficient credits" {
		t.Fatalf("unexpected upstream error: %+v", ue)
	}
}

func TestScrapeMissingKey(t *testing.T) {
	t.Parallel()

	c := NewClient(config.FirecrawlConfig{Endpoint: "http://unused", Timeout: time.Second})

	_, err := c.Scrape(context.Background(), "https://www.arera.it/x")
	if !errors.Is(err, apperr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"www.arera.it/x":         "https://www.arera.it/x",
		"  www.arera.it/x ":      "https://www.arera.it/x",
		"http://www.arera.it/x":  "http://www.arera.it/x",
		"https://www.arera.it/x": "https://www.arera.it/x",
	}
	for in, want := range cases {
		if got := NormalizeURL(in); got != want {
			t.Fatalf("NormalizeURL(%q) = %q, want %q", in, got, want)
		}
	}
}
