package core

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText composes (NFC), case-folds and trims text. It is applied
// identically to summaries at ingestion time and to query text at search time.
func NormalizeText(text string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(text)))
}

// Summarize builds the normalized summary text for a set of attributes:
// "inventors | entity type | filing date".
func Summarize(a Attributes) string {
	return NormalizeText(a.InventorList() + " | " + a.EntityType + " | " + a.FilingDate)
}
