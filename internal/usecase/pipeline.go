package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"DeliberoScan/internal/config"
	"DeliberoScan/internal/domain"
	"DeliberoScan/internal/listing"
	"DeliberoScan/internal/ports"
)

// defaultItemDelay throttles the upstream scraping and model services
// between candidates. This is deliberate pacing, not a performance knob.
const defaultItemDelay = 2 * time.Second

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Scraper    ports.Scraper
	Extractor  ports.Extractor
	Repository ports.DeliberaRepository
	Parsers    *listing.Registry
	Listing    config.ListingConfig
	Logger     *slog.Logger
}

// Pipeline implements the bulletin-ingestion workflow: listing fetch,
// candidate reconciliation, then a strictly sequential per-candidate
// scrape, extract and persist sweep.
type Pipeline struct {
	scraper    ports.Scraper
	extractor  ports.Extractor
	repository ports.DeliberaRepository
	parsers    *listing.Registry
	listing    config.ListingConfig
	logger     *slog.Logger
	delay      time.Duration
	now        func() time.Time
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	parsers := deps.Parsers
	if parsers == nil {
		parsers = listing.NewRegistry()
	}
	return &Pipeline{
		scraper:    deps.Scraper,
		extractor:  deps.Extractor,
		repository: deps.Repository,
		parsers:    parsers,
		listing:    deps.Listing,
		logger:     deps.Logger,
		delay:      defaultItemDelay,
		now:        time.Now,
	}
}

// SyncRequest selects which listing to sweep. Zero values fall back to
// the current year and the configured default sector code.
type SyncRequest struct {
	Anno    int    `json:"anno"`
	Settori string `json:"settori"`
}

// Sync runs one full ingestion sweep and returns the run report. Only
// the listing fetch and the reconciliation lookup are fatal; per-item
// failures are recorded and the sweep continues.
func (p *Pipeline) Sync(ctx context.Context, req SyncRequest) (domain.SyncReport, error) {
	anno := req.Anno
	if anno == 0 {
		anno = p.now().Year()
	}
	settori := req.Settori
	if settori == "" {
		settori = p.listing.DefaultSettori
	}

	parser, err := p.parsers.Resolve(p.listing.Parser)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("resolve listing parser: %w", err)
	}

	listingURL := p.listingURL(anno, settori)
	p.log("fetching listing", "anno", anno, "settori", settori, "url", listingURL)

	page, err := p.scraper.Scrape(ctx, listingURL)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("listing scrape: %w", err)
	}

	refs := parser.Parse(page.Markdown)
	p.log("listing parsed", "found", len(refs))

	report := domain.SyncReport{Found: len(refs), Results: []domain.ItemResult{}}
	if len(refs) == 0 {
		return report, nil
	}

	numeri := make([]string, len(refs))
	for i, ref := range refs {
		numeri[i] = ref.Numero
	}

	existing, err := p.repository.ExistingNumeri(ctx, numeri)
	if err != nil {
		return domain.SyncReport{}, fmt.Errorf("load existing numeri: %w", err)
	}

	fresh := reconcile(refs, existing)
	report.AlreadyInDB = len(existing)
	report.Processed = len(fresh)
	p.log("reconciled", "alreadyInDb", len(existing), "new", len(fresh))

	for _, ref := range fresh {
		if _, err := p.process(ctx, ref.URL); err != nil {
			p.log("candidate failed", "numero", ref.Numero, "error", err)
			report.Results = append(report.Results, domain.ItemResult{
				Numero:  ref.Numero,
				Success: false,
				Error:   err.Error(),
			})
		} else {
			report.Successful++
			report.Results = append(report.Results, domain.ItemResult{
				Numero:  ref.Numero,
				Success: true,
			})
		}

		if err := p.pause(ctx); err != nil {
			return report, err
		}
	}

	p.log("sync complete", "processed", report.Processed, "successful", report.Successful)
	return report, nil
}

// ProcessOne runs the scrape, extract and persist chain for a single
// bulletin URL and returns the stored record.
func (p *Pipeline) ProcessOne(ctx context.Context, pageURL string) (domain.Delibera, error) {
	return p.process(ctx, pageURL)
}

func (p *Pipeline) process(ctx context.Context, pageURL string) (domain.Delibera, error) {
	scraped, err := p.scraper.Scrape(ctx, pageURL)
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("scrape failed: %w", err)
	}

	extraction, err := p.extractor.Extract(ctx, scraped.Markdown, scraped.Title)
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("analysis failed: %w", err)
	}

	titolo := extraction.Titolo
	if titolo == "" {
		titolo = scraped.Title
	}
	data := extraction.DataPubblicazione
	if data.IsZero() {
		data = p.now().Truncate(24 * time.Hour)
	}

	stored, err := p.repository.Upsert(ctx, domain.Delibera{
		Numero:                    extraction.Numero,
		Titolo:                    titolo,
		DataPubblicazione:         data,
		RiassuntoAI:               extraction.Riassunto,
		PuntiSalienti:             extraction.PuntiSalienti,
		Settori:                   extraction.Settori,
		LinkOriginale:             scraped.SourceURL,
		Allegati:                  scraped.Allegati,
		IsAggiornamentoTariffario: extraction.IsAggiornamentoTariffario,
	})
	if err != nil {
		return domain.Delibera{}, fmt.Errorf("db save failed: %w", err)
	}

	return stored, nil
}

// reconcile keeps candidates whose numero is not yet stored, preserving
// input order and dropping in-run repeats of the same numero.
func reconcile(refs []domain.DeliberaRef, existing map[string]bool) []domain.DeliberaRef {
	var fresh []domain.DeliberaRef
	seen := map[string]bool{}
	for _, ref := range refs {
		if existing[ref.Numero] || seen[ref.Numero] {
			continue
		}
		seen[ref.Numero] = true
		fresh = append(fresh, ref)
	}
	return fresh
}

func (p *Pipeline) listingURL(anno int, settori string) string {
	query := url.Values{}
	query.Set("anno", strconv.Itoa(anno))
	query.Set("numero", "")
	query.Set("tipologia", "Delibera")
	query.Set("keyword", "")
	query.Set("settore", settori)
	query.Set("orderby", "")
	query.Set("orderbydir", "")
	query.Set("numelements", strconv.Itoa(p.listing.PageSize))
	return p.listing.BaseURL + "?" + query.Encode()
}

func (p *Pipeline) pause(ctx context.Context) error {
	if p.delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay):
		return nil
	}
}

func (p *Pipeline) log(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Info(msg, args...)
	}
}
