package persistence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	indexerrors "github.com/gcbaptista/go-notes-index/internal/errors"
	"github.com/gcbaptista/go-notes-index/index"
)

// Save encodes snap and atomically replaces the file at filePath with it.
// The image is written to a temporary file in the same directory, synced,
// and renamed over the target, so readers see either the old or the new
// snapshot and never a partial one. It creates the directory if needed.
func Save(filePath string, snap *index.Snapshot) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return indexerrors.NewPersistenceError("write", filePath, fmt.Errorf("failed to create directory %s: %w", dir, err))
	}

	pending, err := renameio.TempFile(dir, filePath)
	if err != nil {
		return indexerrors.NewPersistenceError("write", filePath, fmt.Errorf("failed to create temp file: %w", err))
	}
	defer func() {
		// No-op once the file has been renamed into place
		_ = pending.Cleanup()
	}()

	if _, err := pending.Write(Encode(snap)); err != nil {
		return indexerrors.NewPersistenceError("write", filePath, fmt.Errorf("failed to write snapshot: %w", err))
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return indexerrors.NewPersistenceError("write", filePath, fmt.Errorf("failed to replace snapshot: %w", err))
	}
	return nil
}

// Load reads and validates the snapshot at filePath.
// A missing file yields an error matching os.ErrNotExist; an invalid file
// yields an error matching ErrSnapshotCorrupt.
func Load(filePath string) (*index.Snapshot, error) {
	data, err := os.ReadFile(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		return nil, indexerrors.NewPersistenceError("read", filePath, err)
	}

	snap, err := Decode(data)
	if err != nil {
		return nil, indexerrors.NewCorruptSnapshotError(filePath, err.Error())
	}
	return snap, nil
}

// ReadHeader reads only the header of the snapshot at filePath.
// It lets a caller learn the on-disk generation of a file whose body may be damaged.
func ReadHeader(filePath string) (Header, error) {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is controlled by application, not user input
	if err != nil {
		return Header{}, indexerrors.NewPersistenceError("read", filePath, err)
	}
	defer func() {
		_ = file.Close()
	}()

	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(file, buf); err != nil {
		return Header{}, indexerrors.NewCorruptSnapshotError(filePath, "file too short for header")
	}
	hdr, err := DecodeHeader(buf)
	if err != nil {
		return Header{}, indexerrors.NewCorruptSnapshotError(filePath, err.Error())
	}
	return hdr, nil
}
