package engine

import (
	"errors"

	"github.com/gcbaptista/go-notes-index/index"
	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/persistence"
)

// emptySnapshot creates an empty snapshot tagged with the engine's tokenizer.
func (e *Engine) emptySnapshot(generation uint64) *index.Snapshot {
	snap := index.NewSnapshot(generation)
	snap.Analyzer = e.tokenizer.Fingerprint()
	return snap
}

// publish makes snap the snapshot seen by readers. Callers hold e.mu.
func (e *Engine) publish(snap *index.Snapshot) {
	e.current.Store(snap)
	e.metrics.RecordSnapshot(snap.Generation, snap.Index.DocumentCount(), snap.Index.TermCount())
}

// persist hands snap to the writer of h. It runs after the exclusive
// section so slow disks never block other mutations. The in-memory
// snapshot stays published whether or not the write succeeds.
func (e *Engine) persist(h *openIndex, snap *index.Snapshot) error {
	err := h.writer.Submit(snap)
	if errors.Is(err, persistence.ErrWriterClosed) {
		// Close writes the latest published snapshot before stopping the writer
		if gen, ok := h.writer.LastWritten(); ok && gen >= snap.Generation {
			return nil
		}
		return indexerrors.NewStateError("persist", h.path, "index was closed before the snapshot could be written")
	}
	return err
}

// retryPersist writes the current snapshot again when the file lags it
// after a failed write. Callers must not hold e.mu.
func (e *Engine) retryPersist() error {
	h := e.handle.Load()
	snap := e.current.Load()
	if h == nil || snap == nil || !h.writer.Behind(snap.Generation) {
		return nil
	}
	e.logger.Debug("Retrying snapshot write", "path", h.path, "generation", snap.Generation)
	return e.persist(h, snap)
}

func (e *Engine) onWrite(event persistence.WriteEvent) {
	e.metrics.RecordPersist(event.Generation, event.Took, event.Skipped, event.Err)
	switch {
	case event.Err != nil:
		e.logger.Error("Failed to persist snapshot",
			"path", event.Path,
			"generation", event.Generation,
			"error", event.Err)
	case event.Skipped:
		e.logger.Debug("Skipped stale snapshot write", "path", event.Path, "generation", event.Generation)
	default:
		e.logger.Debug("Snapshot persisted",
			"path", event.Path,
			"generation", event.Generation,
			"took", event.Took)
	}
}
