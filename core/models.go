package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for documents within a snapshot.
// It is derived from the document fingerprint so rebuilding unchanged
// input always yields the same ids.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Attribute names, in the order Attributes.Pairs reports them.
const (
	AttrApplicationNumber  = "application_number"
	AttrFilingDate         = "filing_date"
	AttrEntityType         = "entity_type"
	AttrFirstInventorFlag  = "first_inventor_flag"
	AttrInventors          = "inventors"
	AttrCorrespondenceText = "correspondence_text"
)

// Attributes holds the structured fields extracted from one source record.
// Missing fields are empty strings, never nil.
type Attributes struct {
	ApplicationNumber  string
	FilingDate         string
	EntityType         string
	FirstInventorFlag  string
	Inventors          []string
	CorrespondenceText string
}

// Attribute is one named structured field.
type Attribute struct {
	Name  string
	Value string
}

// InventorList returns the inventor names joined the way they appear in
// summaries and in the structured table.
func (a Attributes) InventorList() string {
	return strings.Join(a.Inventors, ", ")
}

// Pairs returns the attributes as an ordered list of name/value pairs.
func (a Attributes) Pairs() []Attribute {
	return []Attribute{
		{Name: AttrApplicationNumber, Value: a.ApplicationNumber},
		{Name: AttrFilingDate, Value: a.FilingDate},
		{Name: AttrEntityType, Value: a.EntityType},
		{Name: AttrFirstInventorFlag, Value: a.FirstInventorFlag},
		{Name: AttrInventors, Value: a.InventorList()},
		{Name: AttrCorrespondenceText, Value: a.CorrespondenceText},
	}
}

// Document is the canonical, immutable unit of the corpus.
type Document struct {
	Id           ID
	Attributes   Attributes
	DerivedText  string // normalized summary; embedded and stored as summary_text
	Fingerprint  string // hex SHA-256, see FingerprintFields
	QualityScore int
}

// VectorEntry carries everything the vector index stores for one document.
// Keeping id, vector and metadata together avoids positional zips.
type VectorEntry struct {
	Id       ID                `json:"id"`
	Vector   []float32         `json:"vector"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// VectorMatch is one nearest-neighbour hit.
type VectorMatch struct {
	Id       ID
	Distance float32 // cosine distance, lower is closer
	Metadata map[string]string
}

// SearchResult pairs a retrieved document with its distance to the query.
type SearchResult struct {
	Document *Document
	Distance float32
}

// SnapshotInfo describes one published table/collection pair.
type SnapshotInfo struct {
	Generation uint64    `json:"generation"`
	Table      string    `json:"table"`
	Collection string    `json:"collection"`
	Documents  int       `json:"documents"`
	RunID      string    `json:"run_id"`
	BuiltAt    time.Time `json:"built_at"`
}

// BuildReport summarizes one build pass.
type BuildReport struct {
	RunID      string
	Generation uint64
	Records    int // records read from the source
	Documents  int // unique documents published
	Duplicates int
	Malformed  int
	Elapsed    time.Duration
	FinishedAt time.Time
}
