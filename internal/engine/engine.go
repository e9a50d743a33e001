// Package engine manages the single notes index of a process: its lifecycle,
// its mutations, and the publication of immutable snapshots to readers.
//
// All mutations run inside one exclusive section on a private clone of the
// current index and end with one atomic pointer swap. Readers load the
// current snapshot and never wait for a mutation. Persistence happens after
// the exclusive section against the captured snapshot.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/index"
	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/internal/metrics"
	"github.com/gcbaptista/go-notes-index/internal/persistence"
	"github.com/gcbaptista/go-notes-index/internal/search"
	"github.com/gcbaptista/go-notes-index/internal/source"
	"github.com/gcbaptista/go-notes-index/internal/tokenizer"
	"github.com/gcbaptista/go-notes-index/model"
	"github.com/gcbaptista/go-notes-index/services"
)

// Engine owns at most one open index.
// It implements the services.NotesIndex interface.
type Engine struct {
	mu sync.Mutex // exclusive section for every mutation and lifecycle change

	current atomic.Pointer[index.Snapshot] // nil while no index is open
	handle  atomic.Pointer[openIndex]

	settings  config.IndexSettings
	tokenizer *tokenizer.Tokenizer
	searcher  *search.Service
	source    source.ContentSource
	metrics   *metrics.Metrics
	logger    *slog.Logger
	clock     func() time.Time
}

// openIndex is the storage side of the open index.
type openIndex struct {
	path       string
	lock       *persistence.FileLock
	writer     *persistence.Writer
	loadStatus model.LoadStatus
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for LastIndexedAt.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithMetrics instruments the engine and its search service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithContentSource sets where snippet text is read from. Without it the
// engine reads files below settings.NotesRoot, or renders no snippets
// when no root is configured.
func WithContentSource(src source.ContentSource) Option {
	return func(e *Engine) { e.source = src }
}

// NewEngine creates an engine with no index open.
func NewEngine(settings config.IndexSettings, opts ...Option) (*Engine, error) {
	settings.ApplyDefaults()
	if problems := settings.Validate(); len(problems) > 0 {
		return nil, indexerrors.NewValidationError("settings", strings.Join(problems, "; "))
	}

	e := &Engine{
		settings:  settings,
		tokenizer: tokenizer.FromSettings(settings),
		logger:    logging.WithComponent("engine"),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.source == nil && settings.NotesRoot != "" {
		e.source = source.NewFileSource(settings.NotesRoot)
	}
	if e.source != nil {
		e.source = source.NewCachedSource(e.source, settings.ContentCacheSize, e.metrics)
	}

	searcher, err := search.NewService(e.tokenizer, settings, e.source, e.metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create search service: %w", err)
	}
	e.searcher = searcher.WithLogger(e.logger.With("subsystem", "search"))
	return e, nil
}

// Settings returns a copy of the engine settings.
func (e *Engine) Settings() config.IndexSettings {
	return e.settings
}

// Tokenizer returns the tokenizer shared by indexing and querying.
func (e *Engine) Tokenizer() *tokenizer.Tokenizer {
	return e.tokenizer
}

// IndexTextStandalone tokenizes text without touching any index.
// It works whether or not an index is open.
func (e *Engine) IndexTextStandalone(text string) []model.TermStat {
	return e.tokenizer.TermStats(text)
}

// Snapshot returns the currently published snapshot. The snapshot stays
// valid and unchanged for as long as the caller holds it.
func (e *Engine) Snapshot() (*index.Snapshot, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, errNotOpen("snapshot")
	}
	return snap, nil
}

// Search runs query against the current snapshot.
func (e *Engine) Search(query string, limit, offset int) (services.SearchResult, error) {
	return e.SearchContext(context.Background(), query, limit, offset)
}

// SearchContext is Search with a context bounding snippet reads.
func (e *Engine) SearchContext(ctx context.Context, query string, limit, offset int) (services.SearchResult, error) {
	snap := e.current.Load()
	if snap == nil {
		return services.SearchResult{Hits: []services.Hit{}}, errNotOpen("search")
	}
	return e.searcher.Search(ctx, snap, services.SearchQuery{QueryString: query, Limit: limit, Offset: offset})
}

// Stats describes the open index.
func (e *Engine) Stats() (model.IndexStats, error) {
	h := e.handle.Load()
	snap := e.current.Load()
	if h == nil || snap == nil {
		return model.IndexStats{}, errNotOpen("stats")
	}

	persisted, _ := h.writer.LastWritten()
	return model.IndexStats{
		StoragePath:          h.path,
		Generation:           snap.Generation,
		PersistedGeneration:  persisted,
		DocumentCount:        snap.Index.DocumentCount(),
		TermCount:            snap.Index.TermCount(),
		TotalTermOccurrences: snap.Index.TotalTermOccurrences(),
		LoadStatus:           h.loadStatus,
	}, nil
}

// DocumentIDs returns the IDs of all indexed documents in ascending order.
func (e *Engine) DocumentIDs() ([]string, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Index.DocumentIDs(), nil
}

// Document returns the metadata of docID.
func (e *Engine) Document(docID string) (model.DocumentInfo, bool, error) {
	snap, err := e.Snapshot()
	if err != nil {
		return model.DocumentInfo{}, false, err
	}
	doc, ok := snap.Index.Document(docID)
	if !ok {
		return model.DocumentInfo{}, false, nil
	}
	return model.DocumentInfo{
		DocID:         doc.DocID,
		ContentHash:   doc.ContentHash,
		Length:        doc.Length,
		TermCount:     doc.TermCount,
		LastIndexedAt: doc.LastIndexedAt,
	}, true, nil
}

func errNotOpen(op string) error {
	return indexerrors.NewStateError(op, "", "no index is open")
}
