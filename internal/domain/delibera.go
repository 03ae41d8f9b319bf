package domain

import "time"

// Settori recognized by the extraction schema; anything else is discarded.
const (
	SettoreElettricita = "elettricita"
	SettoreGas         = "gas"
)

// DeliberaRef is a candidate bulletin reference extracted from a listing page.
// It lives only within a single sync run and is never persisted directly.
type DeliberaRef struct {
	Numero  string
	Titolo  string
	URL     string
	Settori []string
	Data    time.Time
}

// Allegato is a document attachment linked from a bulletin detail page.
type Allegato struct {
	Nome string `json:"nome"`
	URL  string `json:"url"`
	Tipo string `json:"tipo"`
}

// PuntoSaliente is one highlight bullet produced by the analysis step.
type PuntoSaliente struct {
	Punto string `json:"punto"`
}

// Delibera is the persisted bulletin record. Numero is the natural key:
// re-ingesting a known numero overwrites the stored row.
type Delibera struct {
	ID                        int64           `json:"id"`
	Numero                    string          `json:"numero"`
	Titolo                    string          `json:"titolo"`
	DataPubblicazione         time.Time       `json:"data_pubblicazione"`
	RiassuntoAI               string          `json:"riassunto_ai,omitempty"`
	PuntiSalienti             []PuntoSaliente `json:"punti_salienti"`
	Settori                   []string        `json:"settori"`
	LinkOriginale             string          `json:"link_originale,omitempty"`
	Allegati                  []Allegato      `json:"allegati,omitempty"`
	IsAggiornamentoTariffario bool            `json:"is_aggiornamento_tariffario"`
	CreatedAt                 time.Time       `json:"created_at,omitempty"`
	UpdatedAt                 time.Time       `json:"updated_at,omitempty"`
}

// ScrapeResult is the normalized output of one detail-page fetch,
// consumed once by the extractor and then discarded.
type ScrapeResult struct {
	Markdown  string     `json:"markdown"`
	Title     string     `json:"title"`
	Allegati  []Allegato `json:"allegati"`
	SourceURL string     `json:"sourceUrl"`
}

// Extraction is the validated structured output of the analysis step.
// A zero DataPubblicazione means the model did not locate a date.
type Extraction struct {
	Numero                    string
	Titolo                    string
	DataPubblicazione         time.Time
	Riassunto                 string
	PuntiSalienti             []PuntoSaliente
	Settori                   []string
	IsAggiornamentoTariffario bool
}

// ItemResult is the outcome of processing a single candidate bulletin.
type ItemResult struct {
	Numero  string `json:"numero"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// SyncReport aggregates one full ingestion sweep.
type SyncReport struct {
	Found       int          `json:"found"`
	AlreadyInDB int          `json:"alreadyInDb"`
	Processed   int          `json:"processed"`
	Successful  int          `json:"successful"`
	Results     []ItemResult `json:"results"`
}
