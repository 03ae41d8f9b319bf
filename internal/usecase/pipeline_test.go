package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"DeliberoScan/internal/config"
	"DeliberoScan/internal/domain"
)

const listingFixture = `**20/2026/R/com**\\\\
\\\\
Aggiornamento delle condizioni economiche](https://www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26)

**21/2026/R/eel**\\\\
\\\\
Disposizioni in materia di misura](https://www.arera.it/atti-e-provvedimenti/dettaglio/26/21-26)
`

type fakeScraper struct {
	scrapeFn func(url string) (domain.ScrapeResult, error)
	calls    []string
}

func (f *fakeScraper) Scrape(_ context.Context, url string) (domain.ScrapeResult, error) {
	f.calls = append(f.calls, url)
	return f.scrapeFn(url)
}

type fakeExtractor struct {
	extractFn func(text, title string) (domain.Extraction, error)
}

func (f *fakeExtractor) Extract(_ context.Context, text, title string) (domain.Extraction, error) {
	return f.extractFn(text, title)
}

type fakeRepo struct {
	stored    map[string]domain.Delibera
	lookupErr error
	upsertErr error
	lookups   int
	nextID    int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{stored: map[string]domain.Delibera{}}
}

func (f *fakeRepo) ExistingNumeri(_ context.Context, numeri []string) (map[string]bool, error) {
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	existing := map[string]bool{}
	for _, numero := range numeri {
		if _, ok := f.stored[numero]; ok {
			existing[numero] = true
		}
	}
	return existing, nil
}

func (f *fakeRepo) Upsert(_ context.Context, d domain.Delibera) (domain.Delibera, error) {
	if f.upsertErr != nil {
		return domain.Delibera{}, f.upsertErr
	}
	if prev, ok := f.stored[d.Numero]; ok {
		d.ID = prev.ID
	} else {
		f.nextID++
		d.ID = f.nextID
	}
	f.stored[d.Numero] = d
	return d, nil
}

func listingConfig() config.ListingConfig {
	return config.ListingConfig{
		BaseURL:        "https://www.arera.it/atti-e-provvedimenti",
		Parser:         "arera",
		DefaultSettori: "4",
		PageSize:       50,
	}
}

func detailScraper(listing string) *fakeScraper {
	return &fakeScraper{scrapeFn: func(url string) (domain.ScrapeResult, error) {
		if strings.Contains(url, "?") {
			return domain.ScrapeResult{Markdown: listing, SourceURL: url}, nil
		}
		return domain.ScrapeResult{
			Markdown:  "testo della delibera " + url,
			Title:     "Dettaglio",
			SourceURL: url,
		}, nil
	}}
}

func numberedExtractor() *fakeExtractor {
	return &fakeExtractor{extractFn: func(text, _ string) (domain.Extraction, error) {
		numero := "20/2026/R/com"
		if strings.Contains(text, "21-26") {
			numero = "21/2026/R/eel"
		}
		return domain.Extraction{
			Numero:    numero,
			Titolo:    "Titolo estratto",
			Riassunto: "riassunto di " + text,
			Settori:   []string{domain.SettoreElettricita},
		}, nil
	}}
}

func newTestPipeline(scraper *fakeScraper, extractor *fakeExtractor, repo *fakeRepo) *Pipeline {
	p := NewPipeline(PipelineDeps{
		Scraper:    scraper,
		Extractor:  extractor,
		Repository: repo,
		Listing:    listingConfig(),
	})
	p.delay = 0
	return p
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	refs := []domain.DeliberaRef{
		{Numero: "A"}, {Numero: "C"}, {Numero: "D"}, {Numero: "C"},
	}
	fresh := reconcile(refs, map[string]bool{"A": true, "B": true})

	if len(fresh) != 2 {
		t.Fatalf("expected 2 fresh refs, got %d", len(fresh))
	}
	if fresh[0].Numero != "C" || fresh[1].Numero != "D" {
		t.Fatalf("unexpected order: %+v", fresh)
	}
}

func TestSyncProcessesOnlyUnknown(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.stored["20/2026/R/com"] = domain.Delibera{ID: 1, Numero: "20/2026/R/com"}

	p := newTestPipeline(detailScraper(listingFixture), numberedExtractor(), repo)

	report, err := p.Sync(context.Background(), SyncRequest{Anno: 2026})
	if err != nil {
		t.Fatalf("sync: %v", err)
	}

	if report.Found != 2 || report.AlreadyInDB != 1 || report.Processed != 1 || report.Successful != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, ok := repo.stored["21/2026/R/eel"]; !ok {
		t.Fatal("new delibera was not persisted")
	}
	if repo.lookups != 1 {
		t.Fatalf("expected a single batched lookup, got %d", repo.lookups)
	}
}

func TestSyncSecondRunIsIdempotent(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	p := newTestPipeline(detailScraper(listingFixture), numberedExtractor(), repo)

	first, err := p.Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("first sync: %v", err)
	}
	if first.Processed != 2 || first.Successful != 2 {
		t.Fatalf("unexpected first report: %+v", first)
	}

	second, err := p.Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if second.Processed != 0 || second.AlreadyInDB != 2 {
		t.Fatalf("unexpected second report: %+v", second)
	}
}

func TestSyncContinuesAfterItemFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	extractor := &fakeExtractor{extractFn: func(text, _ string) (domain.Extraction, error) {
		if strings.Contains(text, "20-26") {
			return domain.Extraction{}, errors.New("modello fuori servizio")
		}
		return domain.Extraction{Numero: "21/2026/R/eel", Titolo: "ok"}, nil
	}}

	p := newTestPipeline(detailScraper(listingFixture), extractor, repo)

	report, err := p.Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("sync must survive item failures: %v", err)
	}

	if report.Processed != 2 || report.Successful != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Results) != 2 {
		t.Fatalf("expected 2 item results, got %d", len(report.Results))
	}
	if report.Results[0].Success || report.Results[0].Error == "" {
		t.Fatalf("first item should carry its failure: %+v", report.Results[0])
	}
	if !strings.Contains(report.Results[0].Error, "analysis failed") {
		t.Fatalf("failure should be stage-tagged: %s", report.Results[0].Error)
	}
	if !report.Results[1].Success {
		t.Fatalf("second item should succeed: %+v", report.Results[1])
	}
}

func TestSyncFatalOnListingFailure(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{scrapeFn: func(string) (domain.ScrapeResult, error) {
		return domain.ScrapeResult{}, errors.New("listing unreachable")
	}}
	p := newTestPipeline(scraper, numberedExtractor(), newFakeRepo())

	if _, err := p.Sync(context.Background(), SyncRequest{}); err == nil {
		t.Fatal("expected fatal error when the listing fetch fails")
	}
}

func TestSyncFatalOnLookupFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.lookupErr = errors.New("db down")
	p := newTestPipeline(detailScraper(listingFixture), numberedExtractor(), repo)

	if _, err := p.Sync(context.Background(), SyncRequest{}); err == nil {
		t.Fatal("expected fatal error when reconciliation lookup fails")
	}
}

func TestSyncEmptyListing(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{scrapeFn: func(url string) (domain.ScrapeResult, error) {
		return domain.ScrapeResult{Markdown: "Nessun risultato."}, nil
	}}
	repo := newFakeRepo()
	p := newTestPipeline(scraper, numberedExtractor(), repo)

	report, err := p.Sync(context.Background(), SyncRequest{})
	if err != nil {
		t.Fatalf("empty listing must not error: %v", err)
	}
	if report.Found != 0 || report.Processed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if repo.lookups != 0 {
		t.Fatal("no lookup expected for an empty listing")
	}
}

func TestProcessOneUpsertOverwrites(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	riassunto := "prima versione"
	extractor := &fakeExtractor{extractFn: func(string, string) (domain.Extraction, error) {
		return domain.Extraction{Numero: "50/2026/R/gas", Titolo: "Titolo", Riassunto: riassunto}, nil
	}}
	scraper := detailScraper("")
	p := newTestPipeline(scraper, extractor, repo)

	if _, err := p.ProcessOne(context.Background(), "https://www.arera.it/dettaglio/26/50-26"); err != nil {
		t.Fatalf("first process: %v", err)
	}

	riassunto = "seconda versione"
	stored, err := p.ProcessOne(context.Background(), "https://www.arera.it/dettaglio/26/50-26")
	if err != nil {
		t.Fatalf("second process: %v", err)
	}

	if len(repo.stored) != 1 {
		t.Fatalf("expected exactly one stored record, got %d", len(repo.stored))
	}
	if repo.stored["50/2026/R/gas"].RiassuntoAI != "seconda versione" {
		t.Fatalf("stored record should reflect the latest content: %+v", repo.stored["50/2026/R/gas"])
	}
	if stored.ID != 1 {
		t.Fatalf("overwrite must keep the original id, got %d", stored.ID)
	}
}

func TestProcessOneStageTags(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.upsertErr = errors.New("constraint violation")
	p := newTestPipeline(detailScraper(""), numberedExtractor(), repo)

	_, err := p.ProcessOne(context.Background(), "https://www.arera.it/dettaglio/26/20-26")
	if err == nil || !strings.Contains(err.Error(), "db save failed") {
		t.Fatalf("expected db stage tag, got %v", err)
	}

	failing := &fakeScraper{scrapeFn: func(string) (domain.ScrapeResult, error) {
		return domain.ScrapeResult{}, errors.New("timeout")
	}}
	p = newTestPipeline(failing, numberedExtractor(), newFakeRepo())

	_, err = p.ProcessOne(context.Background(), "https://www.arera.it/dettaglio/26/20-26")
	if err == nil || !strings.Contains(err.Error(), "scrape failed") {
		t.Fatalf("expected scrape stage tag, got %v", err)
	}
}

func TestProcessOneStampsIngestionDate(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	p := newTestPipeline(detailScraper(""), numberedExtractor(), repo)
	fixed := time.Date(2026, time.February, 9, 15, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	stored, err := p.ProcessOne(context.Background(), "https://www.arera.it/dettaglio/26/20-26")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if stored.DataPubblicazione.IsZero() {
		t.Fatal("missing extraction date must fall back to the ingestion date")
	}
	if stored.DataPubblicazione.Year() != 2026 {
		t.Fatalf("unexpected stamped date: %v", stored.DataPubblicazione)
	}
}
