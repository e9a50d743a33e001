package engine

import (
	"github.com/gcbaptista/go-notes-index/index"
	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/source"
	"github.com/gcbaptista/go-notes-index/internal/tokenizer"
	"github.com/gcbaptista/go-notes-index/model"
)

// Mutation results recorded in metrics.
const (
	resultApplied = "applied"
	resultNoop    = "noop"
	resultError   = "error"
)

// IndexIncremental indexes text under docID, replacing the previous version
// of the document. When contentHash matches the stored hash nothing changes
// and Updated is false; if an earlier write failed, the current snapshot is
// written again and its error returned. An empty contentHash is computed
// from text.
//
// The new snapshot is published before it is persisted: a persistence
// error is returned together with the result, and the update stays
// visible to searches.
func (e *Engine) IndexIncremental(docID, text, contentHash string) (model.IncrementalResult, error) {
	if docID == "" {
		e.metrics.RecordMutation("index", resultError)
		return model.IncrementalResult{}, indexerrors.NewValidationError("doc_id", "document ID cannot be empty")
	}
	if contentHash == "" {
		contentHash = source.HashContent([]byte(text))
	}

	// Fast path without the exclusive section
	snap := e.current.Load()
	if snap == nil {
		e.metrics.RecordMutation("index", resultError)
		return model.IncrementalResult{}, errNotOpen("index document")
	}
	if doc, ok := snap.Index.Document(docID); ok && doc.ContentHash == contentHash {
		e.metrics.RecordMutation("index", resultNoop)
		return model.IncrementalResult{Updated: false, TermCount: doc.TermCount}, e.retryPersist()
	}

	// Tokenizing is pure, so it runs before taking the lock
	stats := e.tokenizer.TermStats(text)
	length := len(tokenizer.Words(text))

	e.mu.Lock()
	h := e.handle.Load()
	cur := e.current.Load()
	if h == nil || cur == nil {
		e.mu.Unlock()
		e.metrics.RecordMutation("index", resultError)
		return model.IncrementalResult{}, errNotOpen("index document")
	}
	if doc, ok := cur.Index.Document(docID); ok && doc.ContentHash == contentHash {
		e.mu.Unlock()
		e.metrics.RecordMutation("index", resultNoop)
		return model.IncrementalResult{Updated: false, TermCount: doc.TermCount}, e.retryPersist()
	}

	next := cur.Index.Clone()
	next.AddDocument(index.Document{
		DocID:         docID,
		ContentHash:   contentHash,
		Length:        length,
		LastIndexedAt: e.clock().UTC(),
	}, stats)
	doc, _ := next.Document(docID)
	published := cur.Next(next)
	e.publish(published)
	e.mu.Unlock()

	e.metrics.RecordMutation("index", resultApplied)
	e.logger.Debug("Document indexed",
		"doc_id", docID,
		"terms", doc.TermCount,
		"generation", published.Generation)

	result := model.IncrementalResult{Updated: true, TermCount: doc.TermCount}
	return result, e.persist(h, published)
}

// RemoveIndexedDoc deletes docID and every posting it contributed.
// Removing an unknown document is not an error and reports Removed false.
func (e *Engine) RemoveIndexedDoc(docID string) (model.RemoveResult, error) {
	if docID == "" {
		e.metrics.RecordMutation("remove", resultError)
		return model.RemoveResult{}, indexerrors.NewValidationError("doc_id", "document ID cannot be empty")
	}

	e.mu.Lock()
	h := e.handle.Load()
	cur := e.current.Load()
	if h == nil || cur == nil {
		e.mu.Unlock()
		e.metrics.RecordMutation("remove", resultError)
		return model.RemoveResult{}, errNotOpen("remove document")
	}
	if _, ok := cur.Index.Document(docID); !ok {
		e.mu.Unlock()
		e.metrics.RecordMutation("remove", resultNoop)
		return model.RemoveResult{Removed: false}, e.retryPersist()
	}

	next := cur.Index.Clone()
	next.RemoveDocument(docID)
	published := cur.Next(next)
	e.publish(published)
	e.mu.Unlock()

	e.metrics.RecordMutation("remove", resultApplied)
	e.logger.Debug("Document removed", "doc_id", docID, "generation", published.Generation)
	return model.RemoveResult{Removed: true}, e.persist(h, published)
}

// ClearIndex removes every document. The index stays open and the
// generation keeps increasing.
func (e *Engine) ClearIndex() error {
	e.mu.Lock()
	h := e.handle.Load()
	cur := e.current.Load()
	if h == nil || cur == nil {
		e.mu.Unlock()
		e.metrics.RecordMutation("clear", resultError)
		return errNotOpen("clear index")
	}
	published := cur.Next(index.New())
	e.publish(published)
	e.mu.Unlock()

	e.metrics.RecordMutation("clear", resultApplied)
	e.logger.Info("Index cleared", "path", h.path, "generation", published.Generation)
	return e.persist(h, published)
}
