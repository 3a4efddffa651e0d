// Package blobstore keeps blob ciphertext on the local filesystem, one file
// per blob id. The store is content-agnostic: it never inspects the bytes it
// holds. Sinks are opened in append mode; callers enforce the offset contract
// by comparing Size against the offset a client claims to resume at.
package blobstore

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/disk"
)

// ErrNotFound signals that no bytes exist for the requested blob id.
var ErrNotFound = errors.New("blob bytes not found")

// Store is an append-capable byte store rooted at a single directory.
type Store struct {
	dir string
}

// New creates the backing directory if needed and returns a Store.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory path.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(id string) string {
	// Blob ids are UUIDs minted by us, but never trust them as path segments.
	return filepath.Join(s.dir, filepath.Base(id))
}

// Create opens a fresh sink at offset 0, truncating any prior content.
func (s *Store) Create(id string) (io.WriteCloser, error) {
	f, err := os.OpenFile(s.path(id), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return nil, fmt.Errorf("create blob sink: %w", err)
	}
	return f, nil
}

// OpenAppend opens the sink for an existing blob positioned at its end.
func (s *Store) OpenAppend(id string) (io.WriteCloser, error) {
	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open blob sink: %w", err)
	}
	return f, nil
}

// Size reports the number of bytes currently persisted for the blob.
func (s *Store) Size(id string) (int64, error) {
	info, err := os.Stat(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("stat blob: %w", err)
	}
	return info.Size(), nil
}

// Reader opens the blob for sequential reading and reports its size. The
// caller owns the ReadCloser and streams it out without buffering the blob.
func (s *Store) Reader(id string) (io.ReadCloser, int64, error) {
	f, err := os.Open(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, fmt.Errorf("open blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat blob: %w", err)
	}
	return f, info.Size(), nil
}

// Remove deletes the bytes for a blob. A missing file is not an error: the
// record may outlive the bytes after a crashed write.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}

// Usage reports total and used bytes on the filesystem holding the store.
func (s *Store) Usage() (total uint64, used uint64, err error) {
	abs, err := filepath.Abs(s.dir)
	if err != nil {
		return 0, 0, err
	}
	stat, err := disk.Usage(abs)
	if err != nil {
		return 0, 0, fmt.Errorf("query disk usage: %w", err)
	}
	return stat.Total, stat.Used, nil
}
