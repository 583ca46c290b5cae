package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/patentindex/core"
)

var (
	// ErrQueryServiceRequired is returned when no query service is provided.
	ErrQueryServiceRequired = errors.New("query service required")

	// ErrSnapshotSourceRequired is returned when no snapshot source is provided.
	ErrSnapshotSourceRequired = errors.New("snapshot source required")
)

// QueryService is the read side the handlers depend on.
// search.Searcher satisfies it.
type QueryService interface {
	Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error)
	Lookup(ctx context.Context, applicationNumber string) (*core.Document, error)
	Browse(ctx context.Context, text string, limit int) ([]*core.Document, error)
}

// SnapshotSource reports the snapshot being served.
type SnapshotSource interface {
	Current() (core.SnapshotInfo, bool)
}

// Rebuilder publishes a new snapshot in-process.
// patentindex.SourceBuilder satisfies it.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*core.BuildReport, error)
}

// Handler holds the route handlers.
type Handler struct {
	queries   QueryService
	snapshots SnapshotSource
	rebuilder Rebuilder
	maxLimit  int
	logger    *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithRebuilder enables POST /rebuild.
func WithRebuilder(rebuilder Rebuilder) HandlerOption {
	return func(h *Handler) {
		h.rebuilder = rebuilder
	}
}

// NewHandler creates a Handler.
func NewHandler(queries QueryService, snapshots SnapshotSource, logger *slog.Logger, opts ...HandlerOption) (*Handler, error) {
	if queries == nil {
		return nil, ErrQueryServiceRequired
	}
	if snapshots == nil {
		return nil, ErrSnapshotSourceRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		queries:   queries,
		snapshots: snapshots,
		maxLimit:  100,
		logger:    logger.With("component", "httpapi"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type searchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type searchResponse struct {
	Results []DocumentView `json:"results"`
}

type documentsResponse struct {
	Documents []DocumentDetail `json:"documents"`
}

// Search handles POST /search.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if req.K > h.maxLimit {
		req.K = h.maxLimit
	}

	results, err := h.queries.Search(c.Request.Context(), req.Query, req.K)
	if err != nil {
		h.fail(c, "search", err)
		return
	}

	resp := searchResponse{Results: make([]DocumentView, 0, len(results))}
	for _, result := range results {
		resp.Results = append(resp.Results, newDocumentView(result.Document))
	}
	c.JSON(http.StatusOK, resp)
}

// Document handles GET /documents/:application_number.
func (h *Handler) Document(c *gin.Context) {
	doc, err := h.queries.Lookup(c.Request.Context(), c.Param("application_number"))
	if err != nil {
		h.fail(c, "lookup", err)
		return
	}
	c.JSON(http.StatusOK, newDocumentDetail(doc))
}

// Documents handles GET /documents?contains=&limit=.
func (h *Handler) Documents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			respondError(c, http.StatusBadRequest, "invalid_request", errors.New("limit must be a non-negative integer"))
			return
		}
		limit = min(n, h.maxLimit)
	}

	docs, err := h.queries.Browse(c.Request.Context(), c.Query("contains"), limit)
	if err != nil {
		h.fail(c, "browse", err)
		return
	}

	resp := documentsResponse{Documents: make([]DocumentDetail, 0, len(docs))}
	for _, doc := range docs {
		resp.Documents = append(resp.Documents, newDocumentDetail(doc))
	}
	c.JSON(http.StatusOK, resp)
}

// Snapshot handles GET /snapshot.
func (h *Handler) Snapshot(c *gin.Context) {
	info, ok := h.snapshots.Current()
	if !ok {
		respondError(c, http.StatusServiceUnavailable, "index_unavailable", core.ErrIndexUnavailable)
		return
	}
	c.JSON(http.StatusOK, info)
}

// Rebuild handles POST /rebuild. Searches keep reading the current snapshot
// until the new one is published. The build outlives a disconnected client.
func (h *Handler) Rebuild(c *gin.Context) {
	report, err := h.rebuilder.Rebuild(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.fail(c, "rebuild", err)
		return
	}
	h.logger.Info("rebuild published", "generation", report.Generation, "documents", report.Documents)
	c.JSON(http.StatusOK, newBuildView(report))
}

// Health handles GET /healthz.
func (h *Handler) Health(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handler) fail(c *gin.Context, op string, err error) {
	status, code := statusFor(err)
	switch {
	case status >= http.StatusInternalServerError:
		h.logger.Error("request failed", "op", op, "status", status, "err", err)
	case status == StatusClientClosedRequest:
		h.logger.Debug("client went away", "op", op)
	}
	respondError(c, status, code, err)
}
