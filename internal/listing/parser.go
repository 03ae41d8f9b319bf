// Package listing extracts candidate bulletin references from the raw
// markdown rendering of the regulator's listing page. Parsing is pure
// text work so strategies stay independently testable against fixture
// pages and swappable without touching the orchestrator.
package listing

import (
	"regexp"

	"DeliberoScan/internal/domain"
)

// Parser captures a single candidate-extraction strategy.
type Parser interface {
	Name() string
	Parse(markdown string) []domain.DeliberaRef
}

var (
	// The listing markdown renders each entry as a bold numero, two
	// escaped line breaks, the title text, and the detail-page link:
	//   **20/2026/R/com**\\
	//   \\
	//   Titolo...](https://www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26)
	entryExpr = regexp.MustCompile(`(?s)\*\*(\d+/\d{4}/R/\w+)\*\*\\\\\s*\\\\?\s*\n\\\\\s*\\\\?\s*\n(.*?)\]\((https://www\.arera\.it/atti-e-provvedimenti/dettaglio/\d+/[\w-]+)\)`)

	detailURLExpr = regexp.MustCompile(`\(https://www\.arera\.it/atti-e-provvedimenti/dettaglio/(\d+)/([\w-]+)\)`)
	numeroExpr    = regexp.MustCompile(`\*\*(\d+/\d{4}/R/\w+)\*\*`)
)

// AreraParser implements the primary structural pattern with a
// positional fallback when the site layout drifts.
type AreraParser struct{}

// NewAreraParser builds the default strategy.
func NewAreraParser() *AreraParser {
	return &AreraParser{}
}

// Name identifies the strategy inside the registry.
func (p *AreraParser) Name() string {
	return "arera"
}

// Parse returns candidate references in order of appearance. Duplicate
// numeri are not removed here; reconciliation handles them later. An
// empty result is a valid outcome for "nothing published".
func (p *AreraParser) Parse(markdown string) []domain.DeliberaRef {
	var refs []domain.DeliberaRef

	for _, m := range entryExpr.FindAllStringSubmatch(markdown, -1) {
		refs = append(refs, domain.DeliberaRef{
			Numero: m[1],
			Titolo: trimTitle(m[2]),
			URL:    m[3],
		})
	}
	if len(refs) > 0 {
		return refs
	}

	// Layout drift: pair all detail URLs with all bold numeri
	// positionally, up to the shorter sequence. Titles stay empty.
	urls := detailURLExpr.FindAllStringSubmatch(markdown, -1)
	numeri := numeroExpr.FindAllStringSubmatch(markdown, -1)

	n := len(urls)
	if len(numeri) < n {
		n = len(numeri)
	}
	for i := 0; i < n; i++ {
		refs = append(refs, domain.DeliberaRef{
			Numero: numeri[i][1],
			URL:    "https://www.arera.it/atti-e-provvedimenti/dettaglio/" + urls[i][1] + "/" + urls[i][2],
		})
	}

	return refs
}

var spaceExpr = regexp.MustCompile(`\s+`)

func trimTitle(raw string) string {
	return spaceExpr.ReplaceAllString(trimSpaceAndEscapes(raw), " ")
}

func trimSpaceAndEscapes(raw string) string {
	for len(raw) > 0 && (raw[0] == ' ' || raw[0] == '\n' || raw[0] == '\t' || raw[0] == '\\' || raw[0] == '\r') {
		raw = raw[1:]
	}
	for len(raw) > 0 {
		last := raw[len(raw)-1]
		if last == ' ' || last == '\n' || last == '\t' || last == '\\' || last == '\r' {
			raw = raw[:len(raw)-1]
			continue
		}
		break
	}
	return raw
}
