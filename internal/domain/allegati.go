package domain

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	documentExpr = regexp.MustCompile(`(?i)\.(pdf|doc|docx|xls|xlsx)(\?|$)`)
	extExpr      = regexp.MustCompile(`\.(\w+)(\?|$)`)
)

// AllegatiFromLinks filters page hyperlinks down to document attachments
// and derives a display name and type tag for each.
func AllegatiFromLinks(links []string) []Allegato {
	var allegati []Allegato
	for _, link := range links {
		if !documentExpr.MatchString(link) {
			continue
		}
		allegati = append(allegati, Allegato{
			Nome: attachmentName(link),
			URL:  link,
			Tipo: attachmentType(link),
		})
	}
	return allegati
}

func attachmentName(link string) string {
	segment := link
	if idx := strings.LastIndex(segment, "/"); idx >= 0 {
		segment = segment[idx+1:]
	}
	if idx := strings.Index(segment, "?"); idx >= 0 {
		segment = segment[:idx]
	}
	if segment == "" {
		return "documento"
	}
	if decoded, err := url.QueryUnescape(segment); err == nil {
		return decoded
	}
	return segment
}

func attachmentType(link string) string {
	if m := extExpr.FindStringSubmatch(link); m != nil {
		return strings.ToUpper(m[1])
	}
	return "PDF"
}
