// Package testing provides utilities and helpers for testing code built on the notes index.
package testing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/internal/engine"
	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/services"
)

// FixedTime is the LastIndexedAt of every document indexed by a test engine.
var FixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// CreateTestEngine creates an engine with default settings, a fixed clock and
// a silent logger. The engine is closed when the test ends.
func CreateTestEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	opts = append([]engine.Option{
		engine.WithClock(func() time.Time { return FixedTime }),
		engine.WithLogger(logging.Discard()),
	}, opts...)

	eng, err := engine.NewEngine(config.Default(), opts...)
	require.NoError(t, err, "Failed to create test engine")
	t.Cleanup(func() {
		_ = eng.Close()
	})
	return eng
}

// CreateTestIndex creates an empty index in a temporary directory and
// returns its storage path.
func CreateTestIndex(t *testing.T, eng services.IndexManager) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "notes.snix")
	require.NoError(t, eng.CreateIndex(path), "Failed to create test index")
	return path
}

// TestNotes is a small corpus with a shared term, a phrase and a typo target.
var TestNotes = map[string]string{
	"garden.md":    "Plant cherry tomatoes along the south fence in May",
	"groceries.md": "Buy tomatoes, basil and mozzarella for the salad",
	"work/todo.md": "Send the invoice to the accounting team before Friday",
}

// AddTestDocuments indexes TestNotes.
func AddTestDocuments(t *testing.T, idx services.Indexer) {
	t.Helper()
	for docID, text := range TestNotes {
		_, err := idx.IndexIncremental(docID, text, "")
		require.NoError(t, err, "Failed to index %s", docID)
	}
}

// WriteTestNotes writes notes below root, creating directories as needed.
func WriteTestNotes(t *testing.T, root string, notes map[string]string) {
	t.Helper()
	for rel, text := range notes {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
		require.NoError(t, os.WriteFile(path, []byte(text), 0600))
	}
}

// SearchTestCase represents a test case for search operations
type SearchTestCase struct {
	Name          string
	Query         services.SearchQuery
	ExpectedCount int
	ExpectedFirst string // Expected first result document ID
	ValidateFunc  func(t *testing.T, results *services.SearchResult)
}

// RunSearchTests runs a suite of search tests against an index
func RunSearchTests(t *testing.T, searcher services.Searcher, tests []SearchTestCase) {
	for _, tt := range tests {
		t.Run(tt.Name, func(t *testing.T) {
			results, err := searcher.Search(tt.Query.QueryString, tt.Query.Limit, tt.Query.Offset)
			require.NoError(t, err, "Search should not fail")

			assert.Equal(t, tt.ExpectedCount, results.Total, "Result count should match")

			if tt.ExpectedFirst != "" {
				require.NotEmpty(t, results.Hits, "Expected at least one hit")
				assert.Equal(t, tt.ExpectedFirst, results.Hits[0].DocID, "First result should match expected")
			}

			if tt.ValidateFunc != nil {
				tt.ValidateFunc(t, &results)
			}
		})
	}
}
