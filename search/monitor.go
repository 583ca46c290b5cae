package search

import (
	"github.com/poiesic/patentindex/core"
)

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterNormalization(normalized string)
	AfterEmbedding(dimension int)
	AfterVectorSearch(matches []*core.VectorMatch)
	AfterRecordRetrieval(docs []*core.Document)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                          {}
func (n *noopMonitor) AfterNormalization(_ string)             {}
func (n *noopMonitor) AfterEmbedding(_ int)                    {}
func (n *noopMonitor) AfterVectorSearch(_ []*core.VectorMatch) {}
func (n *noopMonitor) AfterRecordRetrieval(_ []*core.Document) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)           {}
