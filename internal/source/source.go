// Package source reads the original text of indexed notes.
//
// The index stores terms and positions only. Snippets need the original
// bytes, which are fetched through a ContentSource when a hit is rendered.
package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/gcbaptista/go-notes-index/internal/metrics"
)

// DefaultCacheSize is the number of note bodies kept by a CachedSource.
const DefaultCacheSize = 256

// ContentSource returns the original text of a document.
// contentHash identifies the indexed version; implementations may use it
// for caching and are free to ignore it.
type ContentSource interface {
	ReadContent(ctx context.Context, docID, contentHash string) ([]byte, error)
}

// HashContent returns the fingerprint stored as a document's content hash.
func HashContent(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// FileSource serves notes stored as files below Root. A DocID is the
// slash-separated path of the note relative to Root.
type FileSource struct {
	Root string
}

// NewFileSource creates a FileSource rooted at root.
func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root}
}

// ReadContent reads the file of docID.
func (s *FileSource) ReadContent(ctx context.Context, docID, _ string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(docID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) // #nosec G304 -- path is confined to Root by Path
	if err != nil {
		return nil, fmt.Errorf("failed to read note %s: %w", docID, err)
	}
	return data, nil
}

// Path maps docID to a file below Root. IDs that escape Root are rejected.
func (s *FileSource) Path(docID string) (string, error) {
	local := filepath.FromSlash(docID)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("document id %q is not a path below the notes root", docID)
	}
	return filepath.Join(s.Root, local), nil
}

// DocID maps a file below Root to its document ID.
func (s *FileSource) DocID(path string) (string, error) {
	rel, err := filepath.Rel(s.Root, path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s against %s: %w", path, s.Root, err)
	}
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%s is outside the notes root %s", path, s.Root)
	}
	return filepath.ToSlash(rel), nil
}

// CachedSource wraps a ContentSource with an LRU cache keyed by document
// ID and content hash, so a re-indexed note never serves stale text.
type CachedSource struct {
	inner   ContentSource
	cache   *lru.Cache[string, []byte]
	metrics *metrics.Metrics
}

// NewCachedSource wraps inner with a cache of cacheSize entries.
// m may be nil.
func NewCachedSource(inner ContentSource, cacheSize int, m *metrics.Metrics) *CachedSource {
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	cache, _ := lru.New[string, []byte](cacheSize)
	return &CachedSource{inner: inner, cache: cache, metrics: m}
}

func cacheKey(docID, contentHash string) string {
	return docID + "\x00" + contentHash
}

// ReadContent returns cached content if available, otherwise reads and caches it.
// Documents without a content hash are never cached.
func (c *CachedSource) ReadContent(ctx context.Context, docID, contentHash string) ([]byte, error) {
	if strings.TrimSpace(contentHash) == "" {
		return c.inner.ReadContent(ctx, docID, contentHash)
	}

	key := cacheKey(docID, contentHash)
	if data, ok := c.cache.Get(key); ok {
		c.metrics.RecordContentCache(true)
		return data, nil
	}
	c.metrics.RecordContentCache(false)

	data, err := c.inner.ReadContent(ctx, docID, contentHash)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, data)
	return data, nil
}

// Len returns the number of cached entries.
func (c *CachedSource) Len() int {
	return c.cache.Len()
}

// MapSource is an in-memory ContentSource, handy for embedding the index
// without a notes directory.
type MapSource map[string]string

// ReadContent returns the stored text of docID.
func (m MapSource) ReadContent(_ context.Context, docID, _ string) ([]byte, error) {
	text, ok := m[docID]
	if !ok {
		return nil, fmt.Errorf("document %q: %w", docID, os.ErrNotExist)
	}
	return []byte(text), nil
}
