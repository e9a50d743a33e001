// Package watcher keeps the notes index in step with a directory of note
// files: Sync reconciles the whole tree once, Run follows filesystem events.
//
// A document ID is the slash-separated path of a note relative to the notes
// root, the same ID the file content source resolves for snippets.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/gcbaptista/go-notes-index/internal/logging"
	"github.com/gcbaptista/go-notes-index/internal/metrics"
	"github.com/gcbaptista/go-notes-index/internal/source"
	"github.com/gcbaptista/go-notes-index/model"
)

// DefaultDebounce is how long Run waits for a burst of events on a path to
// settle before reconciling it.
const DefaultDebounce = 150 * time.Millisecond

// Watcher actions recorded in metrics.
const (
	actionIndexed   = "indexed"
	actionUnchanged = "unchanged"
	actionRemoved   = "removed"
	actionFailed    = "failed"
)

// Target is the part of the index the watcher maintains.
type Target interface {
	IndexIncremental(docID, text, contentHash string) (model.IncrementalResult, error)
	RemoveIndexedDoc(docID string) (model.RemoveResult, error)
	DocumentIDs() ([]string, error)
}

// Options configures a Watcher.
type Options struct {
	Root       string
	Extensions []string // e.g. ".md"; matched case-insensitively
	Workers    int      // parallel file reads during Sync
	Debounce   time.Duration
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
}

// SyncReport summarizes one Sync pass.
type SyncReport struct {
	Scanned   int `json:"scanned"`
	Indexed   int `json:"indexed"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Failed    int `json:"failed"`
}

// Watcher maintains a Target from the note files below a root directory.
type Watcher struct {
	target  Target
	files   *source.FileSource
	exts    []string
	workers int
	window  time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a watcher of opts.Root feeding target.
func New(target Target, opts Options) (*Watcher, error) {
	if target == nil {
		return nil, fmt.Errorf("watcher target cannot be nil")
	}
	if opts.Root == "" {
		return nil, fmt.Errorf("notes root cannot be empty")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve notes root: %w", err)
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.WithComponent("watcher")
	}

	return &Watcher{
		target:  target,
		files:   source.NewFileSource(root),
		exts:    lo.Map(opts.Extensions, func(ext string, _ int) string { return strings.ToLower(ext) }),
		workers: opts.Workers,
		window:  opts.Debounce,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}, nil
}

// Root returns the absolute notes root.
func (w *Watcher) Root() string {
	return w.files.Root
}

// Sync indexes every note below the root and removes indexed documents
// whose file is gone. The notes root is authoritative: a document without a
// backing file is removed even if it was indexed by another caller.
// Unchanged notes cost a read and a hash comparison.
// Failures on single files are logged and counted; Sync only returns an
// error when the tree cannot be walked or ctx is done.
func (w *Watcher) Sync(ctx context.Context) (SyncReport, error) {
	start := time.Now()
	paths, err := w.scan()
	if err != nil {
		return SyncReport{}, err
	}

	var (
		mu     sync.Mutex
		report = SyncReport{Scanned: len(paths)}
		seen   = make([]string, 0, len(paths))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docID, action := w.indexFile(path)
			mu.Lock()
			defer mu.Unlock()
			if docID != "" {
				seen = append(seen, docID)
			}
			switch action {
			case actionIndexed:
				report.Indexed++
			case actionUnchanged:
				report.Unchanged++
			case actionFailed:
				report.Failed++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	indexed, err := w.target.DocumentIDs()
	if err != nil {
		return report, err
	}
	onDisk := lo.SliceToMap(seen, func(docID string) (string, struct{}) { return docID, struct{}{} })
	stale := lo.Filter(indexed, func(docID string, _ int) bool {
		_, ok := onDisk[docID]
		return !ok
	})
	for _, docID := range stale {
		if w.removeDoc(docID) {
			report.Removed++
		}
	}

	w.logger.Info("Notes synced",
		"root", w.Root(),
		"scanned", report.Scanned,
		"indexed", report.Indexed,
		"unchanged", report.Unchanged,
		"removed", report.Removed,
		"failed", report.Failed,
		"took", time.Since(start))
	return report, nil
}

// Run watches the root until ctx is done, reconciling every note that is
// created, written, removed or renamed. New directories are watched as
// they appear. Run does not perform an initial Sync.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create filesystem watcher: %w", err)
	}
	defer func() {
		_ = fsw.Close()
	}()

	if err := w.addRecursive(fsw, w.Root()); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.Root(), err)
	}
	w.logger.Info("Watching notes", "root", w.Root())

	deb := newDebouncer(w.window, w.reconcile)
	defer deb.stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fsw, event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", "path", event.Name, "error", err)
					}
					// Files written before the watch was added would be missed
					w.reconcileTree(event.Name, deb)
					continue
				}
			}
			deb.add(event.Name)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Filesystem watcher error", "error", err)
		}
	}
}

// reconcile brings the document of path in line with the file system.
func (w *Watcher) reconcile(path string) {
	info, err := os.Stat(path)
	switch {
	case err == nil && info.Mode().IsRegular() && w.isNote(path):
		w.indexFile(path)
	case err == nil && info.IsDir():
		// handled when the directory is created
	case errors.Is(err, fs.ErrNotExist):
		w.removePath(path)
	case err != nil:
		w.logger.Warn("Failed to stat note", "path", path, "error", err)
	}
}

// removePath drops the document of path, or of every note below it when
// path was a directory.
func (w *Watcher) removePath(path string) {
	docID, err := w.files.DocID(path)
	if err != nil || docID == "." {
		return
	}
	if w.isNote(path) && w.removeDoc(docID) {
		return
	}

	indexed, err := w.target.DocumentIDs()
	if err != nil {
		w.logger.Warn("Failed to list documents", "error", err)
		return
	}
	prefix := docID + "/"
	for _, id := range lo.Filter(indexed, func(id string, _ int) bool { return strings.HasPrefix(id, prefix) }) {
		w.removeDoc(id)
	}
}

func (w *Watcher) reconcileTree(dir string, deb *debouncer) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && w.isNote(path) {
			deb.add(path)
		}
		return nil
	})
}

// indexFile reads and indexes one note. It returns the document ID (empty
// when the path cannot be mapped) and the action taken.
func (w *Watcher) indexFile(path string) (string, string) {
	docID, err := w.files.DocID(path)
	if err != nil {
		w.logger.Warn("Skipping note outside the root", "path", path, "error", err)
		w.metrics.RecordWatcherEvent(actionFailed)
		return "", actionFailed
	}

	data, err := os.ReadFile(path) // #nosec G304 -- path comes from walking the notes root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Deleted between the event and the read
			w.removeDoc(docID)
			return "", actionRemoved
		}
		w.logger.Warn("Failed to read note", "doc_id", docID, "error", err)
		w.metrics.RecordWatcherEvent(actionFailed)
		return docID, actionFailed
	}

	result, err := w.target.IndexIncremental(docID, string(data), source.HashContent(data))
	if err != nil {
		w.logger.Error("Failed to index note", "doc_id", docID, "error", err)
		w.metrics.RecordWatcherEvent(actionFailed)
		// A persistence failure still leaves the document indexed in memory
		if result.Updated {
			return docID, actionIndexed
		}
		return docID, actionFailed
	}

	action := actionUnchanged
	if result.Updated {
		action = actionIndexed
		w.logger.Debug("Note indexed", "doc_id", docID, "terms", result.TermCount)
	}
	w.metrics.RecordWatcherEvent(action)
	return docID, action
}

func (w *Watcher) removeDoc(docID string) bool {
	result, err := w.target.RemoveIndexedDoc(docID)
	if err != nil {
		w.logger.Error("Failed to remove note", "doc_id", docID, "error", err)
		w.metrics.RecordWatcherEvent(actionFailed)
		return result.Removed
	}
	if result.Removed {
		w.logger.Debug("Note removed", "doc_id", docID)
		w.metrics.RecordWatcherEvent(actionRemoved)
	}
	return result.Removed
}

// scan lists the note files below the root in lexical order.
func (w *Watcher) scan() ([]string, error) {
	var paths []string
	err := filepath.WalkDir(w.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == w.Root() {
				return err
			}
			w.logger.Warn("Skipping unreadable path", "path", path, "error", err)
			return nil
		}
		if d.IsDir() {
			if path != w.Root() && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && w.isNote(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan notes root %s: %w", w.Root(), err)
	}
	return paths, nil
}

func (w *Watcher) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Skip directories we can't access
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.Root() && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) isNote(path string) bool {
	if isHidden(filepath.Base(path)) {
		return false
	}
	if len(w.exts) == 0 {
		return true
	}
	return slices.Contains(w.exts, strings.ToLower(filepath.Ext(path)))
}

// isHidden reports dot files and directories such as .git, and editor swap files.
func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasSuffix(name, "~")
}
