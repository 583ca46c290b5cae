package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/patentindex/core"
	"github.com/poiesic/patentindex/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueries struct {
	searchFunc func(ctx context.Context, query string, k int) ([]*core.SearchResult, error)
	lookupFunc func(ctx context.Context, applicationNumber string) (*core.Document, error)
	browseFunc func(ctx context.Context, text string, limit int) ([]*core.Document, error)

	lastK     int
	lastLimit int
}

func (f *fakeQueries) Search(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
	f.lastK = k
	if f.searchFunc != nil {
		return f.searchFunc(ctx, query, k)
	}
	return nil, nil
}

func (f *fakeQueries) Lookup(ctx context.Context, applicationNumber string) (*core.Document, error) {
	if f.lookupFunc != nil {
		return f.lookupFunc(ctx, applicationNumber)
	}
	return nil, search.ErrDocumentNotFound
}

func (f *fakeQueries) Browse(ctx context.Context, text string, limit int) ([]*core.Document, error) {
	f.lastLimit = limit
	if f.browseFunc != nil {
		return f.browseFunc(ctx, text, limit)
	}
	return nil, nil
}

type fakeSnapshots struct {
	info core.SnapshotInfo
	ok   bool
}

func (f fakeSnapshots) Current() (core.SnapshotInfo, bool) {
	return f.info, f.ok
}

var testDoc = &core.Document{
	Id: 42,
	Attributes: core.Attributes{
		ApplicationNumber: "17123456",
		FilingDate:        "2024-01-01",
		EntityType:        "UNDISCOUNTED",
		FirstInventorFlag: "Y",
		Inventors:         []string{"Alice Smith"},
	},
	DerivedText:  "application 17123456 filed 2024-01-01 by alice smith",
	Fingerprint:  "abc123",
	QualityScore: 3,
}

func newTestRouter(t *testing.T, queries QueryService, snapshots SnapshotSource) *gin.Engine {
	t.Helper()
	h, err := NewHandler(queries, snapshots, nil)
	require.NoError(t, err)
	return NewRouter(h, nil, nil)
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env.Error.Code
}

func TestNewHandler_RequiresDependencies(t *testing.T) {
	_, err := NewHandler(nil, fakeSnapshots{}, nil)
	assert.ErrorIs(t, err, ErrQueryServiceRequired)

	_, err = NewHandler(&fakeQueries{}, nil, nil)
	assert.ErrorIs(t, err, ErrSnapshotSourceRequired)
}

func TestSearch_ReturnsResultsInOrder(t *testing.T) {
	other := *testDoc
	other.Attributes.ApplicationNumber = "18000001"
	queries := &fakeQueries{
		searchFunc: func(ctx context.Context, query string, k int) ([]*core.SearchResult, error) {
			assert.Equal(t, "alice", query)
			return []*core.SearchResult{
				{Document: testDoc, Distance: 0.1},
				{Document: &other, Distance: 0.2},
			}, nil
		},
	}
	router := newTestRouter(t, queries, fakeSnapshots{})

	rr := do(router, http.MethodPost, "/search", `{"query":"alice"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Results []map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "17123456", resp.Results[0]["application_number"])
	assert.Equal(t, "18000001", resp.Results[1]["application_number"])
	assert.Equal(t, testDoc.DerivedText, resp.Results[0]["summary"])
	assert.Equal(t, "2024-01-01", resp.Results[0]["filing_date"])
	assert.Equal(t, "UNDISCOUNTED", resp.Results[0]["entity_type"])
	assert.Equal(t, float64(3), resp.Results[0]["quality_score"])
	assert.Equal(t, "abc123", resp.Results[0]["source_fingerprint"])
	assert.Equal(t, 0, queries.lastK)
}

func TestSearch_EmptyResultsIsEmptyArray(t *testing.T) {
	queries := &fakeQueries{
		searchFunc: func(context.Context, string, int) ([]*core.SearchResult, error) {
			return []*core.SearchResult{}, nil
		},
	}
	rr := do(newTestRouter(t, queries, fakeSnapshots{}), http.MethodPost, "/search", `{"query":"x"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"results":[]}`, rr.Body.String())
}

func TestSearch_ClampsK(t *testing.T) {
	queries := &fakeQueries{}
	rr := do(newTestRouter(t, queries, fakeSnapshots{}), http.MethodPost, "/search", `{"query":"x","k":5000}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 100, queries.lastK)
}

func TestSearch_ErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"empty query", core.ErrEmptyQuery, http.StatusBadRequest, "invalid_query"},
		{"no snapshot", core.ErrIndexUnavailable, http.StatusServiceUnavailable, "index_unavailable"},
		{"embedding failure", fmt.Errorf("%w: boom", core.ErrEmbedding), http.StatusInternalServerError, "embedding_failed"},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"client gone", fmt.Errorf("embedding: %w", context.Canceled), StatusClientClosedRequest, "canceled"},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queries := &fakeQueries{
				searchFunc: func(context.Context, string, int) ([]*core.SearchResult, error) {
					return nil, tt.err
				},
			}
			rr := do(newTestRouter(t, queries, fakeSnapshots{}), http.MethodPost, "/search", `{"query":"x"}`)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, errorCode(t, rr))
		})
	}
}

func TestSearch_ClientCancelIsNotLoggedAsError(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
	queries := &fakeQueries{
		searchFunc: func(context.Context, string, int) ([]*core.SearchResult, error) {
			return nil, context.Canceled
		},
	}
	h, err := NewHandler(queries, fakeSnapshots{}, logger)
	require.NoError(t, err)

	rr := do(NewRouter(h, nil, nil), http.MethodPost, "/search", `{"query":"x"}`)
	assert.Equal(t, StatusClientClosedRequest, rr.Code)
	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestSearch_MalformedBody(t *testing.T) {
	router := newTestRouter(t, &fakeQueries{}, fakeSnapshots{})

	rr := do(router, http.MethodPost, "/search", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", errorCode(t, rr))

	rr = do(router, http.MethodPost, "/search", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDocument_LookupAndNotFound(t *testing.T) {
	queries := &fakeQueries{
		lookupFunc: func(_ context.Context, appNo string) (*core.Document, error) {
			if appNo == "17123456" {
				return testDoc, nil
			}
			return nil, search.ErrDocumentNotFound
		},
	}
	router := newTestRouter(t, queries, fakeSnapshots{})

	rr := do(router, http.MethodGet, "/documents/17123456", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var detail DocumentDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &detail))
	assert.Equal(t, []string{"Alice Smith"}, detail.Inventors)
	assert.Equal(t, "Y", detail.FirstInventorFlag)

	rr = do(router, http.MethodGet, "/documents/99999999", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "not_found", errorCode(t, rr))
}

func TestDocuments_Browse(t *testing.T) {
	queries := &fakeQueries{
		browseFunc: func(_ context.Context, text string, limit int) ([]*core.Document, error) {
			assert.Equal(t, "alice", text)
			return []*core.Document{testDoc}, nil
		},
	}
	router := newTestRouter(t, queries, fakeSnapshots{})

	rr := do(router, http.MethodGet, "/documents?contains=alice&limit=7", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 7, queries.lastLimit)

	var resp documentsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	assert.Equal(t, "17123456", resp.Documents[0].ApplicationNumber)

	rr = do(router, http.MethodGet, "/documents?contains=alice&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSnapshot(t *testing.T) {
	rr := do(newTestRouter(t, &fakeQueries{}, fakeSnapshots{}), http.MethodGet, "/snapshot", "")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	info := core.SnapshotInfo{
		Generation: 4,
		Table:      "documents_g000004",
		Collection: "documents_g000004",
		Documents:  2,
		RunID:      "run",
		BuiltAt:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	rr = do(newTestRouter(t, &fakeQueries{}, fakeSnapshots{info: info, ok: true}), http.MethodGet, "/snapshot", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got core.SnapshotInfo
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, info, got)
}

func TestHealth(t *testing.T) {
	rr := do(newTestRouter(t, &fakeQueries{}, fakeSnapshots{}), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestCORS_AllowsConfiguredOrigin(t *testing.T) {
	h, err := NewHandler(&fakeQueries{}, fakeSnapshots{}, nil)
	require.NoError(t, err)
	router := NewRouter(h, []string{"http://localhost:3000"}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/search", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

type fakeRebuilder struct {
	report *core.BuildReport
	err    error
}

func (f fakeRebuilder) Rebuild(context.Context) (*core.BuildReport, error) {
	return f.report, f.err
}

func TestRebuild(t *testing.T) {
	newRouter := func(t *testing.T, rebuilder Rebuilder) *gin.Engine {
		t.Helper()
		h, err := NewHandler(&fakeQueries{}, fakeSnapshots{}, nil, WithRebuilder(rebuilder))
		require.NoError(t, err)
		return NewRouter(h, nil, nil)
	}

	t.Run("route absent without rebuilder", func(t *testing.T) {
		rr := do(newTestRouter(t, &fakeQueries{}, fakeSnapshots{}), http.MethodPost, "/rebuild", "")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("returns the build report", func(t *testing.T) {
		report := &core.BuildReport{RunID: "run-1", Generation: 7, Records: 4, Documents: 2, Duplicates: 1, Malformed: 1, Elapsed: 1500 * time.Millisecond}
		rr := do(newRouter(t, fakeRebuilder{report: report}), http.MethodPost, "/rebuild", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var view BuildView
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
		assert.Equal(t, "run-1", view.RunID)
		assert.Equal(t, uint64(7), view.Generation)
		assert.Equal(t, 2, view.Documents)
		assert.Equal(t, int64(1500), view.ElapsedMS)
	})

	t.Run("build in progress", func(t *testing.T) {
		rr := do(newRouter(t, fakeRebuilder{err: core.ErrBuildInProgress}), http.MethodPost, "/rebuild", "")
		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.Equal(t, "build_in_progress", errorCode(t, rr))
	})

	t.Run("embedding failure", func(t *testing.T) {
		err := fmt.Errorf("%w: batch 0: boom", core.ErrEmbeddingBatch)
		rr := do(newRouter(t, fakeRebuilder{err: err}), http.MethodPost, "/rebuild", "")
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "embedding_failed", errorCode(t, rr))
	})
}
