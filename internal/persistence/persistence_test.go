package persistence

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/index"
	"github.com/gcbaptista/go-notes-index/model"
)

func sampleSnapshot(t *testing.T, generation uint64) *index.Snapshot {
	t.Helper()
	at := time.Date(2026, 3, 14, 15, 9, 26, 535000000, time.UTC)

	ii := index.New()
	ii.AddDocument(index.Document{DocID: "notes/a.md", ContentHash: "aaaa", Length: 5, LastIndexedAt: at}, []model.TermStat{
		{Term: "quick", Frequency: 2, Positions: []int{0, 4}},
		{Term: "brown", Frequency: 1, Positions: []int{1}},
		{Term: "fox", Frequency: 1, Positions: []int{2}},
	})
	ii.AddDocument(index.Document{DocID: "notes/b.md", ContentHash: "bbbb", Length: 300, LastIndexedAt: at.Add(time.Hour)}, []model.TermStat{
		{Term: "quick", Frequency: 1, Positions: []int{299}},
		{Term: "über", Frequency: 3, Positions: []int{3, 130, 200}},
	})
	ii.AddDocument(index.Document{DocID: "notes/empty.md", ContentHash: "e"}, nil)
	require.NoError(t, ii.Check())

	return &index.Snapshot{Index: ii, Generation: generation, Analyzer: 0xfeedface}
}

func assertSameIndex(t *testing.T, want, got *index.InvertedIndex) {
	t.Helper()
	require.NoError(t, got.Check())
	assert.Equal(t, want.DocumentIDs(), got.DocumentIDs())
	assert.Equal(t, want.Terms(), got.Terms())
	assert.Equal(t, want.TotalTermOccurrences(), got.TotalTermOccurrences())

	for _, id := range want.DocumentIDs() {
		wd, _ := want.Document(id)
		gd, ok := got.Document(id)
		require.True(t, ok, "document %s missing", id)
		assert.Equal(t, wd.ContentHash, gd.ContentHash)
		assert.Equal(t, wd.Length, gd.Length)
		assert.Equal(t, wd.TermCount, gd.TermCount)
		assert.True(t, wd.LastIndexedAt.Equal(gd.LastIndexedAt), "document %s timestamp %v != %v", id, wd.LastIndexedAt, gd.LastIndexedAt)
		assert.Equal(t, want.TermsOf(id), got.TermsOf(id))
	}
	for _, term := range want.Terms() {
		assert.Equal(t, want.Lookup(term), got.Lookup(term), "postings of %q", term)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	snap := sampleSnapshot(t, 42)

	decoded, err := Decode(Encode(snap))
	require.NoError(t, err)
	assert.Equal(t, uint64(42), decoded.Generation)
	assert.Equal(t, uint64(0xfeedface), decoded.Analyzer)
	assertSameIndex(t, snap.Index, decoded.Index)

	doc, _ := decoded.Index.Document("notes/empty.md")
	assert.True(t, doc.LastIndexedAt.IsZero())
}

func TestEncodeDecodeEmpty(t *testing.T) {
	decoded, err := Decode(Encode(index.NewSnapshot(0)))
	require.NoError(t, err)
	assert.Equal(t, 0, decoded.Index.DocumentCount())
	assert.Equal(t, 0, decoded.Index.TermCount())
}

func TestEncodeIsDeterministic(t *testing.T) {
	snap := sampleSnapshot(t, 7)
	assert.Equal(t, Encode(snap), Encode(snap))
}

func TestDecodeHeader(t *testing.T) {
	data := Encode(sampleSnapshot(t, 9))
	hdr, err := DecodeHeader(data)
	require.NoError(t, err)
	assert.Equal(t, Magic, hdr.Magic)
	assert.Equal(t, FormatVersion, hdr.Version)
	assert.Equal(t, uint64(9), hdr.Generation)
	assert.Equal(t, uint64(0xfeedface), hdr.Analyzer)
	assert.Equal(t, uint64(3), hdr.DocumentCount)
	assert.Equal(t, uint64(4), hdr.TermCount)
	assert.Equal(t, []byte("SNIX"), data[:4])
}

func TestDecodeRejectsCorruption(t *testing.T) {
	good := Encode(sampleSnapshot(t, 3))

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty file", func([]byte) []byte { return nil }},
		{"truncated header", func(b []byte) []byte { return b[:10] }},
		{"truncated body", func(b []byte) []byte { return b[:len(b)-20] }},
		{"missing trailer", func(b []byte) []byte { return b[:headerSize] }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
		{"unknown version", func(b []byte) []byte { binary.LittleEndian.PutUint32(b[4:], 99); return b }},
		{"flipped body byte", func(b []byte) []byte { b[headerSize+3] ^= 0xff; return b }},
		{"flipped checksum byte", func(b []byte) []byte { b[len(b)-1] ^= 0x01; return b }},
		{"trailing garbage", func(b []byte) []byte { return append(b, 0, 0, 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte(nil), good...))
			_, err := Decode(data)
			assert.Error(t, err)
		})
	}
}

func TestDecodeRejectsOversizedDocumentFrequency(t *testing.T) {
	// A checksum-valid file whose single term claims far more postings than
	// its two-byte block can hold
	buf := binary.LittleEndian.AppendUint32(nil, Magic)
	buf = binary.LittleEndian.AppendUint32(buf, FormatVersion)
	buf = binary.LittleEndian.AppendUint64(buf, 1) // generation
	buf = binary.LittleEndian.AppendUint64(buf, 0) // analyzer
	buf = binary.LittleEndian.AppendUint64(buf, 0) // documents
	buf = binary.LittleEndian.AppendUint64(buf, 1) // terms
	buf = binary.LittleEndian.AppendUint64(buf, 1) // occurrences
	buf = appendString(buf, "x")
	buf = binary.AppendUvarint(buf, 1<<36) // document frequency
	buf = binary.AppendUvarint(buf, 0)     // postings offset
	buf = binary.AppendUvarint(buf, 2)     // postings length
	buf = append(buf, 1, 1)
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(buf))

	_, err := Decode(buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document frequency")
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "index.snix")
	snap := sampleSnapshot(t, 5)

	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), loaded.Generation)
	assertSameIndex(t, snap.Index, loaded.Index)

	hdr, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), hdr.Generation)
}

func TestSaveReplacesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	require.NoError(t, Save(path, sampleSnapshot(t, 1)))
	require.NoError(t, Save(path, index.NewSnapshot(2)))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Generation)
	assert.Equal(t, 0, loaded.Index.DocumentCount())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files are left behind")
}

func TestSaveFailureIsPersistenceError(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	err := Save(filepath.Join(blocker, "index.snix"), index.NewSnapshot(0))
	require.Error(t, err)
	assert.True(t, errors.Is(err, indexerrors.ErrPersistence))

	var perr *indexerrors.PersistenceError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "write", perr.Op)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.snix"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, errors.Is(err, indexerrors.ErrSnapshotCorrupt))
}

func TestLoadCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	data := Encode(sampleSnapshot(t, 12))
	data[len(data)/2] ^= 0xff
	require.NoError(t, os.WriteFile(path, data, 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, indexerrors.ErrSnapshotCorrupt))
	assert.True(t, errors.Is(err, indexerrors.ErrPersistence))

	// The header is still readable, so the generation can be recovered
	hdr, err := ReadHeader(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(12), hdr.Generation)
}

func TestReadHeaderGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	require.NoError(t, os.WriteFile(path, []byte("not a snapshot file at all, just some text"), 0600))

	_, err := ReadHeader(path)
	assert.True(t, errors.Is(err, indexerrors.ErrSnapshotCorrupt))
}

func TestWriterSkipsStaleGenerations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	var events []WriteEvent
	w := NewWriter(path, WriterOptions{OnWrite: func(e WriteEvent) { events = append(events, e) }})

	require.NoError(t, w.Submit(index.NewSnapshot(0)))
	require.NoError(t, w.Submit(sampleSnapshot(t, 2)))
	require.NoError(t, w.Submit(index.NewSnapshot(1))) // stale
	require.NoError(t, w.Submit(index.NewSnapshot(2))) // same generation

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.Generation)
	assert.Equal(t, 3, loaded.Index.DocumentCount(), "stale snapshot did not overwrite the newer file")

	require.Len(t, events, 4)
	assert.False(t, events[0].Skipped)
	assert.False(t, events[1].Skipped)
	assert.True(t, events[2].Skipped)
	assert.True(t, events[3].Skipped)

	gen, ok := w.LastWritten()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), gen)
	require.NoError(t, w.Close())
}

func TestWriterSyncReportsFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	w := NewWriter(filepath.Join(blocker, "index.snix"), WriterOptions{})
	err := w.Submit(index.NewSnapshot(0))
	assert.True(t, errors.Is(err, indexerrors.ErrPersistence))

	_, ok := w.LastWritten()
	assert.False(t, ok, "failed write does not advance the watermark")
	assert.True(t, w.Behind(0))
}

func TestWriterBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.snix")
	w := NewWriter(path, WriterOptions{})
	assert.False(t, w.Behind(0), "nothing requested yet")

	require.NoError(t, w.Submit(index.NewSnapshot(1)))
	assert.False(t, w.Behind(1))
	assert.True(t, w.Behind(2))

	// A failed write leaves the file behind until a later write lands
	require.NoError(t, os.Remove(path))
	require.NoError(t, os.MkdirAll(filepath.Join(path, "blocker"), 0750))
	assert.Error(t, w.Submit(index.NewSnapshot(2)))
	assert.True(t, w.Behind(2))

	require.NoError(t, os.RemoveAll(path))
	require.NoError(t, w.Submit(index.NewSnapshot(2)))
	assert.False(t, w.Behind(2))

	loaded := NewWriter(path, WriterOptions{})
	loaded.MarkWritten(2)
	gen, ok := loaded.LastWritten()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), gen)
	assert.False(t, loaded.Behind(2))
}

func TestWriterAsync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	var mu sync.Mutex
	var written []uint64
	w := NewWriter(path, WriterOptions{Async: true, OnWrite: func(e WriteEvent) {
		mu.Lock()
		defer mu.Unlock()
		if !e.Skipped && e.Err == nil {
			written = append(written, e.Generation)
		}
	}})

	for gen := uint64(0); gen < 20; gen++ {
		require.NoError(t, w.Submit(index.NewSnapshot(gen)))
	}
	require.NoError(t, w.Flush())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(19), loaded.Generation, "latest generation wins")

	mu.Lock()
	for i := 1; i < len(written); i++ {
		assert.Greater(t, written[i], written[i-1], "writes happen in increasing generation order")
	}
	mu.Unlock()

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Submit(index.NewSnapshot(20)), ErrWriterClosed)
	require.NoError(t, w.Close(), "second close is a no-op")
}

func TestWriterAsyncFailureSurfacesOnFlush(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	w := NewWriter(filepath.Join(blocker, "index.snix"), WriterOptions{Async: true})
	require.NoError(t, w.Submit(index.NewSnapshot(0)), "async submit does not wait for the write")

	err := w.Flush()
	assert.True(t, errors.Is(err, indexerrors.ErrPersistence))
	assert.NoError(t, w.Flush(), "the error is reported once")
	assert.NoError(t, w.Close())
}

func TestFileLock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.snix")
	first := NewFileLock(path)
	second := NewFileLock(path)

	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, path+".lock", first.Path())

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "lock is exclusive")

	require.NoError(t, first.Unlock())
	require.NoError(t, first.Unlock(), "unlock is idempotent")

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}
