package services

import (
	"github.com/gcbaptista/go-notes-index/model"
)

// Hit represents a single document in the search results.
type Hit struct {
	DocID        string   `json:"doc_id"`
	Score        float64  `json:"score"`
	MatchedTerms []string `json:"matched_terms"` // Distinct normalized query terms found in the document
	Snippet      string   `json:"snippet"`       // Excerpt around the first match; empty when the content is unavailable
}

// SearchResult is the ranked answer to one query against one snapshot.
type SearchResult struct {
	Hits        []Hit               `json:"hits"`
	Total       int                 `json:"total"` // Number of matching documents before limit and offset
	Limit       int                 `json:"limit"`
	Offset      int                 `json:"offset"`
	Generation  uint64              `json:"generation"` // Snapshot generation the query ran against
	Took        int64               `json:"took"`       // milliseconds
	QueryId     string              `json:"query_id"`   // unique UUID for this search query
	Suggestions map[string][]string `json:"suggestions,omitempty"`
}

// SearchQuery is a parsed-later query string plus paging.
// Limit 0 selects the configured default.
type SearchQuery struct {
	QueryString string `json:"query"`
	Limit       int    `json:"limit"`
	Offset      int    `json:"offset"`
}

// Analyzer turns text into term statistics without touching any index.
type Analyzer interface {
	IndexTextStandalone(text string) []model.TermStat
}

// Indexer defines the mutations of the open index.
type Indexer interface {
	IndexIncremental(docID, text, contentHash string) (model.IncrementalResult, error)
	RemoveIndexedDoc(docID string) (model.RemoveResult, error)
	ClearIndex() error
}

// Searcher defines operations for querying the open index.
type Searcher interface {
	Search(query string, limit, offset int) (SearchResult, error)
}

// IndexManager manages the lifecycle of the index backing a notes collection.
type IndexManager interface {
	CreateIndex(storagePath string) error
	OpenIndex(storagePath string) (model.LoadStatus, error)
	Stats() (model.IndexStats, error)
	DocumentIDs() ([]string, error)
	Document(docID string) (model.DocumentInfo, bool, error)
	Flush() error
	Close() error
}

// NotesIndex is the full call boundary of the index, as used by the HTTP API,
// the CLI and the notes watcher.
type NotesIndex interface {
	Analyzer
	Indexer
	Searcher
	IndexManager
}
