package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	inner ContentSource
	calls int
}

func (c *countingSource) ReadContent(ctx context.Context, docID, contentHash string) ([]byte, error) {
	c.calls++
	return c.inner.ReadContent(ctx, docID, contentHash)
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("hello"))
	assert.Len(t, a, 16)
	assert.Equal(t, a, HashContent([]byte("hello")))
	assert.NotEqual(t, a, HashContent([]byte("hello!")))
}

func TestFileSource(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "journal"), 0750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "journal", "day1.md"), []byte("dear diary"), 0600))

	src := NewFileSource(root)
	data, err := src.ReadContent(context.Background(), "journal/day1.md", "")
	require.NoError(t, err)
	assert.Equal(t, "dear diary", string(data))

	_, err = src.ReadContent(context.Background(), "journal/missing.md", "")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFileSourceRejectsEscapes(t *testing.T) {
	src := NewFileSource(t.TempDir())

	for _, id := range []string{"../secret.md", "/etc/passwd", "a/../../b", ""} {
		_, err := src.Path(id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestFileSourceDocID(t *testing.T) {
	root := t.TempDir()
	src := NewFileSource(root)

	id, err := src.DocID(filepath.Join(root, "a", "b.md"))
	require.NoError(t, err)
	assert.Equal(t, "a/b.md", id)

	_, err = src.DocID(filepath.Join(filepath.Dir(root), "elsewhere.md"))
	assert.Error(t, err)
}

func TestFileSourceHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileSource(t.TempDir()).ReadContent(ctx, "x.md", "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCachedSource(t *testing.T) {
	inner := &countingSource{inner: MapSource{"n1": "first version"}}
	cached := NewCachedSource(inner, 2, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		data, err := cached.ReadContent(ctx, "n1", "h1")
		require.NoError(t, err)
		assert.Equal(t, "first version", string(data))
	}
	assert.Equal(t, 1, inner.calls, "repeated reads are served from the cache")

	// A new content hash bypasses the cached entry
	_, err := cached.ReadContent(ctx, "n1", "h2")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 2, cached.Len())

	// Without a hash nothing is cached
	_, _ = cached.ReadContent(ctx, "n1", "")
	_, _ = cached.ReadContent(ctx, "n1", "")
	assert.Equal(t, 4, inner.calls)
}

func TestCachedSourceDoesNotCacheErrors(t *testing.T) {
	inner := &countingSource{inner: MapSource{}}
	cached := NewCachedSource(inner, 0, nil)

	_, err := cached.ReadContent(context.Background(), "missing", "h")
	assert.Error(t, err)
	_, err = cached.ReadContent(context.Background(), "missing", "h")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
	assert.Equal(t, 0, cached.Len())
}
