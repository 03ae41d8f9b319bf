package domain

import "testing"

func TestAllegatiFromLinks(t *testing.T) {
	t.Parallel()

	links := []string{
		"https://www.arera.it/allegati/docs/26/020-26.pdf",
		"https://www.arera.it/allegati/docs/26/relazione%20tecnica.PDF?v=2",
		"https://www.arera.it/allegati/docs/26/tabella.xlsx",
		"https://www.arera.it/atti-e-provvedimenti/dettaglio/26/20-26",
		"https://www.arera.it/img/logo.png",
	}

	allegati := AllegatiFromLinks(links)

	if len(allegati) != 3 {
		t.Fatalf("expected 3 attachments, got %d: %+v", len(allegati), allegati)
	}
	if allegati[0].Nome != "020-26.pdf" || allegati[0].Tipo != "PDF" {
		t.Fatalf("unexpected first attachment: %+v", allegati[0])
	}
	if allegati[1].Nome != "relazione tecnica.PDF" {
		t.Fatalf("name must be url-decoded without the query: %+v", allegati[1])
	}
	if allegati[1].Tipo != "PDF" {
		t.Fatalf("type must be uppercased: %+v", allegati[1])
	}
	if allegati[2].Tipo != "XLSX" {
		t.Fatalf("unexpected xlsx type: %+v", allegati[2])
	}
}

func TestAllegatiFromLinksEmpty(t *testing.T) {
	t.Parallel()

	if out := AllegatiFromLinks(nil); out != nil {
		t.Fatalf("expected nil for no links, got %+v", out)
	}
	if out := AllegatiFromLinks([]string{"https://example.org/page"}); out != nil {
		t.Fatalf("expected nil for no document links, got %+v", out)
	}
}
