package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/search"
	"github.com/poiesic/patentindex/storage"
)

// StatusClientClosedRequest reports a request the client abandoned before a
// response was ready.
const StatusClientClosedRequest = 499

// APIError is the body of every error response.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// DocumentView is the wire form of a search hit.
type DocumentView struct {
	Summary           string `json:"summary"`
	ApplicationNumber string `json:"application_number"`
	FilingDate        string `json:"filing_date"`
	EntityType        string `json:"entity_type"`
	QualityScore      int    `json:"quality_score"`
	SourceFingerprint string `json:"source_fingerprint"`
}

// DocumentDetail adds the remaining structured attributes to DocumentView.
type DocumentDetail struct {
	DocumentView
	FirstInventorFlag  string   `json:"first_inventor_flag"`
	Inventors          []string `json:"inventors"`
	CorrespondenceText string   `json:"correspondence_text"`
}

func newDocumentView(doc *core.Document) DocumentView {
	return DocumentView{
		Summary:           doc.DerivedText,
		ApplicationNumber: doc.Attributes.ApplicationNumber,
		FilingDate:        doc.Attributes.FilingDate,
		EntityType:        doc.Attributes.EntityType,
		QualityScore:      doc.QualityScore,
		SourceFingerprint: doc.Fingerprint,
	}
}

func newDocumentDetail(doc *core.Document) DocumentDetail {
	inventors := doc.Attributes.Inventors
	if inventors == nil {
		inventors = []string{}
	}
	return DocumentDetail{
		DocumentView:       newDocumentView(doc),
		FirstInventorFlag:  doc.Attributes.FirstInventorFlag,
		Inventors:          inventors,
		CorrespondenceText: doc.Attributes.CorrespondenceText,
	}
}

// BuildView is the wire form of a finished rebuild.
type BuildView struct {
	RunID      string    `json:"run_id"`
	Generation uint64    `json:"generation"`
	Records    int       `json:"records"`
	Documents  int       `json:"documents"`
	Duplicates int       `json:"duplicates"`
	Malformed  int       `json:"malformed"`
	ElapsedMS  int64     `json:"elapsed_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

func newBuildView(report *core.BuildReport) BuildView {
	return BuildView{
		RunID:      report.RunID,
		Generation: report.Generation,
		Records:    report.Records,
		Documents:  report.Documents,
		Duplicates: report.Duplicates,
		Malformed:  report.Malformed,
		ElapsedMS:  report.Elapsed.Milliseconds(),
		FinishedAt: report.FinishedAt,
	}
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{
		Error: APIError{Message: msg, Code: code},
	})
}

// statusFor maps query and build errors onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrEmptyQuery), errors.Is(err, storage.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_query"
	case errors.Is(err, core.ErrIndexUnavailable):
		return http.StatusServiceUnavailable, "index_unavailable"
	case errors.Is(err, search.ErrDocumentNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled"
	case errors.Is(err, core.ErrBuildInProgress):
		return http.StatusConflict, "build_in_progress"
	case errors.Is(err, core.ErrEmbedding), errors.Is(err, core.ErrEmbeddingBatch):
		return http.StatusInternalServerError, "embedding_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
