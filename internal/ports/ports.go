package ports

import (
	"context"
	"time"

	"DeliberoScan/internal/domain"
)

// Scraper fetches one page through the scraping service and returns its
// normalized text plus document attachment links.
type Scraper interface {
	Scrape(ctx context.Context, url string) (domain.ScrapeResult, error)
}

// Extractor turns raw bulletin text into a validated structured record.
type Extractor interface {
	Extract(ctx context.Context, text, title string) (domain.Extraction, error)
}

// DeliberaRepository persists bulletins keyed by their numero.
type DeliberaRepository interface {
	// ExistingNumeri performs a single batched existence lookup.
	ExistingNumeri(ctx context.Context, numeri []string) (map[string]bool, error)
	// Upsert inserts or replaces the record with the same numero.
	Upsert(ctx context.Context, delibera domain.Delibera) (domain.Delibera, error)
}

// OTPRepository stores per-phone verification state.
type OTPRepository interface {
	// Get returns nil with no error when the phone is unknown.
	Get(ctx context.Context, phone string) (*domain.OTPRecord, error)
	// UpsertPending overwrites any prior pending code for the phone.
	UpsertPending(ctx context.Context, phone, hash string, expiresAt time.Time) error
	// MarkVerified flips the verified flag and clears the code fields.
	MarkVerified(ctx context.Context, phone string, at time.Time) error
}

// Messenger dispatches a text message to a phone number.
type Messenger interface {
	SendText(ctx context.Context, phone, text string) error
}

// Scheduler controls when recurring sync sweeps execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
