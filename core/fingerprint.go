package core

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// FingerprintFields lists, in order, the fields hashed into a fingerprint.
// Changing the list or its order changes dedup semantics for every corpus.
var FingerprintFields = []string{AttrApplicationNumber, "derived_text"}

const fingerprintSeparator = "-"

// Fingerprint returns the hex SHA-256 digest identifying duplicate documents.
func Fingerprint(doc *Document) string {
	parts := []string{doc.Attributes.ApplicationNumber, doc.DerivedText}
	sum := sha256.Sum256([]byte(strings.Join(parts, fingerprintSeparator)))
	return hex.EncodeToString(sum[:])
}

// QualityScore counts populated inventor names and adds one when a filing
// date is present. It is metadata only and never used for ranking.
func QualityScore(doc *Document) int {
	score := 0
	for _, name := range doc.Attributes.Inventors {
		if strings.TrimSpace(name) != "" {
			score++
		}
	}
	if doc.Attributes.FilingDate != "" {
		score++
	}
	return score
}

// Fingerprinted fills in Fingerprint, QualityScore and the content-derived Id.
func Fingerprinted(doc *Document) *Document {
	doc.Fingerprint = Fingerprint(doc)
	doc.QualityScore = QualityScore(doc)
	doc.Id = IDFromContent(doc.Fingerprint)
	return doc
}
