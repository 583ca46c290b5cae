package ingestion

import (
	"log/slog"
	"testing"

	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepare_FirstOccurrenceWins(t *testing.T) {
	first := record("17123456", "2024-01-01", "UNDISCOUNTED", "Alice Smith")
	first.CorrespondenceAddressBag = map[string]any{"city": "Springfield"}
	second := record("17123456", "2024-01-01", "undiscounted", "ALICE SMITH")
	second.CorrespondenceAddressBag = map[string]any{"city": "Shelbyville"}

	out, err := prepare([]source.Record{first, second}, slog.Default())
	require.NoError(t, err)

	require.Len(t, out.docs, 1)
	assert.Equal(t, 1, out.duplicates)
	assert.Equal(t, "UNDISCOUNTED", out.docs[0].Attributes.EntityType)
	assert.Contains(t, out.docs[0].Attributes.CorrespondenceText, "Springfield")
}

func TestPrepare_AssignsContentIDs(t *testing.T) {
	out, err := prepare(sampleRecords(), slog.Default())
	require.NoError(t, err)

	require.Len(t, out.docs, 3)
	assert.Equal(t, 1, out.malformed)
	for _, doc := range out.docs {
		assert.Equal(t, core.IDFromContent(doc.Fingerprint), doc.Id)
		assert.NoError(t, core.ValidateDocument(doc))
	}

	again, err := prepare(sampleRecords(), slog.Default())
	require.NoError(t, err)
	assert.Equal(t, out.docs, again.docs, "preparation is deterministic")
}
