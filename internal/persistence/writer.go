package persistence

import (
	"errors"
	"sync"
	"time"

	"github.com/gcbaptista/go-notes-index/index"
)

// ErrWriterClosed is returned by Submit after Close.
var ErrWriterClosed = errors.New("snapshot writer is closed")

// WriteEvent describes the outcome of one write request.
type WriteEvent struct {
	Path       string
	Generation uint64
	Took       time.Duration
	Skipped    bool // A newer or equal generation was already on disk
	Err        error
}

// WriterOptions configures a Writer.
type WriterOptions struct {
	// Async makes Submit return immediately and write in the background.
	// Background failures are reported to OnWrite and returned by Flush.
	Async bool
	// OnWrite, when set, is called after every write request completes.
	OnWrite func(WriteEvent)
}

// Writer persists snapshots of one storage path. Writes are serialized and
// guarded by a generation watermark: a snapshot whose generation is not
// greater than the last one written is skipped, so a slow stale write can
// never overwrite a newer file.
type Writer struct {
	path    string
	async   bool
	onWrite func(WriteEvent)

	mu        sync.Mutex // serializes file writes and guards the watermark
	requested bool       // a write has been attempted
	written   bool
	lastGen   uint64

	// Background mode state, guarded by pendingMu
	pendingMu sync.Mutex
	idle      *sync.Cond
	pending   *index.Snapshot
	busy      bool
	lastErr   error
	closed    bool

	wake     chan struct{}
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewWriter creates a writer for path. In async mode it starts the
// background goroutine, which runs until Close.
func NewWriter(path string, opts WriterOptions) *Writer {
	w := &Writer{
		path:     path,
		async:    opts.Async,
		onWrite:  opts.OnWrite,
		wake:     make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
	w.idle = sync.NewCond(&w.pendingMu)

	if w.async {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

// Path returns the storage path the writer persists to.
func (w *Writer) Path() string {
	return w.path
}

// Submit requests that snap be persisted. In sync mode it writes before
// returning and reports the write error. In async mode only the newest
// pending snapshot is kept; older unwritten ones are superseded.
func (w *Writer) Submit(snap *index.Snapshot) error {
	if !w.async {
		w.pendingMu.Lock()
		closed := w.closed
		w.pendingMu.Unlock()
		if closed {
			return ErrWriterClosed
		}
		return w.write(snap)
	}

	w.pendingMu.Lock()
	if w.closed {
		w.pendingMu.Unlock()
		return ErrWriterClosed
	}
	if w.pending == nil || snap.Generation > w.pending.Generation {
		w.pending = snap
	}
	w.pendingMu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush waits until every submitted snapshot has been written and returns
// the first background error since the previous Flush, if any.
func (w *Writer) Flush() error {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	for w.pending != nil || w.busy {
		w.idle.Wait()
	}
	err := w.lastErr
	w.lastErr = nil
	return err
}

// Close flushes pending work and stops the background goroutine.
// It is safe to call more than once.
func (w *Writer) Close() error {
	err := w.Flush()

	w.pendingMu.Lock()
	if w.closed {
		w.pendingMu.Unlock()
		return err
	}
	w.closed = true
	w.pendingMu.Unlock()

	close(w.stopChan)
	w.wg.Wait()
	return err
}

// LastWritten returns the generation of the last successful write.
func (w *Writer) LastWritten() (uint64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastGen, w.written
}

// MarkWritten records that generation is already on disk, as when a
// snapshot was just loaded from the writer's path.
func (w *Writer) MarkWritten(generation uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.written || generation > w.lastGen {
		w.written = true
		w.lastGen = generation
	}
}

// Behind reports whether the file lags generation: either a write has been
// attempted and none succeeded, or the last successful write is older.
// Writes still queued in async mode count as behind until they land.
func (w *Writer) Behind(generation uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.written {
		return w.requested
	}
	return generation > w.lastGen
}

func (w *Writer) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stopChan:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	for {
		w.pendingMu.Lock()
		snap := w.pending
		w.pending = nil
		if snap == nil {
			w.busy = false
			w.idle.Broadcast()
			w.pendingMu.Unlock()
			return
		}
		w.busy = true
		w.pendingMu.Unlock()

		if err := w.write(snap); err != nil {
			w.pendingMu.Lock()
			if w.lastErr == nil {
				w.lastErr = err
			}
			w.pendingMu.Unlock()
		}
	}
}

func (w *Writer) write(snap *index.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.requested = true
	event := WriteEvent{Path: w.path, Generation: snap.Generation}
	if w.written && snap.Generation <= w.lastGen {
		event.Skipped = true
		w.notify(event)
		return nil
	}

	start := time.Now()
	err := Save(w.path, snap)
	event.Took = time.Since(start)
	event.Err = err
	if err == nil {
		w.written = true
		w.lastGen = snap.Generation
	}
	w.notify(event)
	return err
}

func (w *Writer) notify(event WriteEvent) {
	if w.onWrite != nil {
		w.onWrite(event)
	}
}
