package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/internal/persistence"
	"github.com/gcbaptista/go-notes-index/model"
)

// openPaths holds the storage paths claimed by engines of this process.
// File locks are per process on some platforms, so a second engine in the
// same process has to be refused here rather than by the lock file.
var (
	openPathsMu sync.Mutex
	openPaths   = make(map[string]struct{})
)

func claimPath(path string) bool {
	openPathsMu.Lock()
	defer openPathsMu.Unlock()
	if _, taken := openPaths[path]; taken {
		return false
	}
	openPaths[path] = struct{}{}
	return true
}

func releasePath(path string) {
	openPathsMu.Lock()
	defer openPathsMu.Unlock()
	delete(openPaths, path)
}

// CreateIndex starts a new empty index at path and persists it right away.
// An existing file at path is replaced. Its generation, when readable, is
// continued so the new file is never older than the one it overwrites.
func (e *Engine) CreateIndex(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.acquire("create index", path)
	if err != nil {
		return err
	}

	var generation uint64
	if hdr, err := persistence.ReadHeader(h.path); err == nil {
		generation = hdr.Generation + 1
	}
	snap := e.emptySnapshot(generation)

	if err := h.writer.Submit(snap); err != nil {
		e.release(h)
		return err
	}
	if err := h.writer.Flush(); err != nil {
		e.release(h)
		return err
	}

	h.loadStatus = model.LoadStatusCreated
	e.handle.Store(h)
	e.publish(snap)
	e.logger.Info("Index created", "path", h.path, "generation", generation)
	return nil
}

// OpenIndex loads the snapshot at path. A missing, corrupt or incompatible
// file is not an error: the index starts empty and the returned status tells
// the caller that a rebuild is due. A file is incompatible when its terms
// were produced by a tokenizer configured differently from this engine's.
// Except for a missing file, the generation continues above the one on disk
// when its header is still readable.
func (e *Engine) OpenIndex(path string) (model.LoadStatus, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, err := e.acquire("open index", path)
	if err != nil {
		return "", err
	}

	fingerprint := e.tokenizer.Fingerprint()
	snap, err := persistence.Load(h.path)
	switch {
	case err == nil && snap.Analyzer == fingerprint:
		h.loadStatus = model.LoadStatusLoaded
		h.writer.MarkWritten(snap.Generation)
	case err == nil:
		h.loadStatus = model.LoadStatusIncompatible
		e.logger.Warn("Snapshot was built with other tokenizer options, starting with an empty index",
			"path", h.path,
			"generation", snap.Generation+1,
			"snapshot_analyzer", fmt.Sprintf("%016x", snap.Analyzer),
			"analyzer", fmt.Sprintf("%016x", fingerprint))
		snap = e.emptySnapshot(snap.Generation + 1)
	case errors.Is(err, fs.ErrNotExist):
		h.loadStatus = model.LoadStatusMissing
		snap = e.emptySnapshot(0)
	case errors.Is(err, indexerrors.ErrSnapshotCorrupt):
		h.loadStatus = model.LoadStatusCorrupt
		var generation uint64
		if hdr, hdrErr := persistence.ReadHeader(h.path); hdrErr == nil {
			generation = hdr.Generation + 1
		}
		snap = e.emptySnapshot(generation)
		e.logger.Warn("Snapshot is corrupt, starting with an empty index",
			"path", h.path, "generation", generation, "error", err)
	default:
		e.release(h)
		return "", err
	}

	e.handle.Store(h)
	e.publish(snap)
	e.logger.Info("Index opened",
		"path", h.path,
		"status", h.loadStatus,
		"generation", snap.Generation,
		"documents", snap.Index.DocumentCount())
	return h.loadStatus, nil
}

// Flush waits for pending background writes. If the file is still behind
// the published snapshot afterwards, because a write failed, the snapshot
// is written again. It returns the error of that retry, or else the first
// background failure since the previous Flush.
func (e *Engine) Flush() error {
	h := e.handle.Load()
	if h == nil {
		return errNotOpen("flush")
	}
	err := h.writer.Flush()
	if snap := e.current.Load(); snap != nil && h.writer.Behind(snap.Generation) {
		if err = e.persist(h, snap); err == nil {
			err = h.writer.Flush()
		}
	}
	return err
}

// Close writes the published snapshot if the file lags it, then releases
// the index. A mutation that completes concurrently with Close is therefore
// still persisted. After Close every index operation fails with a
// StateError until another index is opened. Closing an engine with no open
// index is a no-op.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	h := e.handle.Load()
	if h == nil {
		return nil
	}
	writer := h.writer
	err := writer.Flush()
	if snap := e.current.Load(); snap != nil && writer.Behind(snap.Generation) {
		err = writer.Submit(snap)
	}
	if releaseErr := e.release(h); err == nil {
		err = releaseErr
	}
	e.handle.Store(nil)
	e.current.Store(nil)
	e.logger.Info("Index closed", "path", h.path)
	return err
}

// acquire claims path for this engine. Callers hold e.mu.
func (e *Engine) acquire(op, path string) (*openIndex, error) {
	if path == "" {
		return nil, indexerrors.NewValidationError("path", "storage path cannot be empty")
	}
	if h := e.handle.Load(); h != nil {
		return nil, indexerrors.NewStateError(op, h.path, "an index is already open")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, indexerrors.NewValidationError("path", err.Error())
	}
	if !claimPath(absPath) {
		return nil, indexerrors.NewStateError(op, absPath, "index is already open in this process")
	}

	lock := persistence.NewFileLock(absPath)
	acquired, err := lock.TryLock()
	if err != nil {
		releasePath(absPath)
		return nil, indexerrors.NewPersistenceError("lock", absPath, err)
	}
	if !acquired {
		releasePath(absPath)
		return nil, indexerrors.NewStateError(op, absPath, fmt.Sprintf("index is locked by another process (%s)", lock.Path()))
	}

	h := &openIndex{path: absPath, lock: lock}
	h.writer = persistence.NewWriter(absPath, persistence.WriterOptions{
		Async:   e.settings.AsyncPersistence,
		OnWrite: e.onWrite,
	})
	return h, nil
}

// release stops the writer and gives up the lock and the path claim.
func (e *Engine) release(h *openIndex) error {
	err := h.writer.Close()
	if unlockErr := h.lock.Unlock(); unlockErr != nil {
		e.logger.Warn("Failed to release index lock", "path", h.lock.Path(), "error", unlockErr)
	}
	releasePath(h.path)
	return err
}
