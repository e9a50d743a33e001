package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gcbaptista/go-notes-index/config"
	"github.com/gcbaptista/go-notes-index/index"
	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/internal/metrics"
	"github.com/gcbaptista/go-notes-index/internal/source"
	"github.com/gcbaptista/go-notes-index/internal/tokenizer"
	"github.com/gcbaptista/go-notes-index/internal/typoutil"
	"github.com/gcbaptista/go-notes-index/services"
)

// Service answers queries against published index snapshots.
// It holds no index state of its own and is safe for concurrent use.
type Service struct {
	tokenizer *tokenizer.Tokenizer
	settings  config.IndexSettings
	source    source.ContentSource // nil disables snippets
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService creates a new search Service. src and m may be nil.
// tok must be the tokenizer the index was built with.
func NewService(tok *tokenizer.Tokenizer, settings config.IndexSettings, src source.ContentSource, m *metrics.Metrics) (*Service, error) {
	if tok == nil {
		return nil, fmt.Errorf("tokenizer cannot be nil")
	}
	settings.ApplyDefaults()
	return &Service{
		tokenizer: tok,
		settings:  settings,
		source:    src,
		metrics:   m,
		logger:    logging.WithComponent("search"),
	}, nil
}

// WithLogger returns a copy of the service logging to logger.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	clone := *s
	clone.logger = logger
	return &clone
}

// Search runs query against snap. Malformed queries return an empty result
// and a ValidationError. A nil snapshot yields an empty result.
func (s *Service) Search(ctx context.Context, snap *index.Snapshot, query services.SearchQuery) (services.SearchResult, error) {
	startTime := time.Now()
	result, err := s.search(ctx, snap, query)
	took := time.Since(startTime)

	result.Took = took.Milliseconds()
	s.metrics.RecordSearch(took, result.Total, err)
	if err != nil {
		s.logger.Debug("query rejected", "query", query.QueryString, "error", err)
		return result, err
	}
	s.logger.Debug("query served",
		"query", query.QueryString,
		"generation", result.Generation,
		"total", result.Total,
		"took", took)
	return result, nil
}

func (s *Service) search(ctx context.Context, snap *index.Snapshot, query services.SearchQuery) (services.SearchResult, error) {
	result := services.SearchResult{
		Hits:    []services.Hit{},
		Limit:   query.Limit,
		Offset:  query.Offset,
		QueryId: uuid.New().String(),
	}

	if query.Limit < 0 {
		return result, indexerrors.NewValidationError("limit", "cannot be negative")
	}
	if query.Offset < 0 {
		return result, indexerrors.NewValidationError("offset", "cannot be negative")
	}
	if result.Limit == 0 {
		result.Limit = s.settings.DefaultLimit
	}
	if s.settings.MaxLimit > 0 && result.Limit > s.settings.MaxLimit {
		result.Limit = s.settings.MaxLimit
	}

	q, err := ParseQuery(s.tokenizer, query.QueryString, s.settings.MaxQueryTerms)
	if err != nil {
		return result, err
	}
	if snap == nil || snap.Index == nil {
		return result, nil
	}
	result.Generation = snap.Generation
	if q.IsEmpty() {
		return result, nil
	}

	candidates := collectCandidates(snap.Index, q)
	sortCandidates(candidates)
	result.Total = len(candidates)
	result.Suggestions = s.suggest(snap.Index, q)

	if result.Offset >= len(candidates) {
		return result, nil
	}
	page := candidates[result.Offset:min(result.Offset+result.Limit, len(candidates))]

	for _, c := range page {
		result.Hits = append(result.Hits, services.Hit{
			DocID:        c.docID,
			Score:        c.score,
			MatchedTerms: c.matchedTerms,
			Snippet:      s.snippet(ctx, snap.Index, c),
		})
	}
	return result, nil
}

// snippet fetches the original content of a hit. Failures are logged and yield an empty snippet.
func (s *Service) snippet(ctx context.Context, ii *index.InvertedIndex, c *candidateHit) string {
	if s.source == nil {
		return ""
	}
	doc, _ := ii.Document(c.docID)
	data, err := s.source.ReadContent(ctx, c.docID, doc.ContentHash)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			level = slog.LevelDebug
		}
		s.logger.Log(ctx, level, "snippet content unavailable", "doc_id", c.docID, "error", err)
		return ""
	}
	return buildSnippet(string(data), c.firstPosition, s.settings.SnippetRadius)
}

// suggest proposes indexed terms for query terms that match nothing.
func (s *Service) suggest(ii *index.InvertedIndex, q Query) map[string][]string {
	var missing []string
	for _, term := range q.Terms() {
		if ii.DocumentFrequency(term) == 0 && typoutil.MaxDistanceFor(term) > 0 {
			missing = append(missing, term)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	terms := ii.Terms()
	suggestions := make(map[string][]string)
	for _, term := range missing {
		if found := typoutil.Suggest(term, terms, ii.DocumentFrequency, typoutil.DefaultMaxSuggestions); len(found) > 0 {
			suggestions[term] = found
		}
	}
	if len(suggestions) == 0 {
		return nil
	}
	return suggestions
}
