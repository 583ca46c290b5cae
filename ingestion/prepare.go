package ingestion

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/source"
)

// prepared is the outcome of normalizing one batch of records.
type prepared struct {
	docs       []*core.Document
	duplicates int
	malformed  int
}

// prepare normalizes and fingerprints records, keeping the first occurrence
// of each fingerprint. Malformed records are skipped and counted.
func prepare(records []source.Record, logger *slog.Logger) (*prepared, error) {
	out := &prepared{docs: make([]*core.Document, 0, len(records))}
	byFingerprint := make(map[string]struct{}, len(records))
	byID := make(map[core.ID]string, len(records))

	for i, rec := range records {
		doc, err := source.Normalize(rec)
		if err != nil {
			if errors.Is(err, core.ErrMalformedRecord) {
				out.malformed++
				logger.Warn("skipping malformed record", "index", i, "err", err)
				continue
			}
			return nil, err
		}
		doc = core.Fingerprinted(doc)

		if _, ok := byFingerprint[doc.Fingerprint]; ok {
			out.duplicates++
			logger.Debug("skipping duplicate record", "index", i,
				"application_number", doc.Attributes.ApplicationNumber, "err", core.ErrDuplicateDocument)
			continue
		}
		if other, ok := byID[doc.Id]; ok {
			return nil, fmt.Errorf("%w: %d derived from %s and %s", ErrIDCollision, doc.Id, other, doc.Fingerprint)
		}
		byFingerprint[doc.Fingerprint] = struct{}{}
		byID[doc.Id] = doc.Fingerprint
		out.docs = append(out.docs, doc)
	}
	return out, nil
}
