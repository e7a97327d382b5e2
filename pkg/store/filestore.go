package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/icodex/icodex/pkg/dex"
)

// FileStore keeps the whole order book in one JSON file, the system of
// record. Saves go through a temp file in the same directory, fsync, then
// rename, so a crash can never leave the canonical file half-written.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the canonical book file location.
func (s *FileStore) Path() string { return s.path }

// Load reads the book file. A missing file is an empty book, not an error.
// A file that exists but cannot be decoded is ErrCorruptState; the store
// never silently drops data by starting fresh over a corrupt file.
func (s *FileStore) Load() (*dex.Book, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return dex.NewBook(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", dex.ErrPersistence, s.path, err)
	}
	book := dex.NewBook()
	if err := json.Unmarshal(data, book); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", dex.ErrCorruptState, s.path, err)
	}
	return book, nil
}

// Save atomically replaces the book file with the full current state.
func (s *FileStore) Save(book *dex.Book) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", dex.ErrPersistence, dir, err)
	}

	data, err := json.MarshalIndent(book, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode book: %v", dex.ErrPersistence, err)
	}

	// Temp file must live in the same directory so the rename stays on
	// one filesystem.
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp: %v", dex.ErrPersistence, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: write temp: %v", dex.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: sync temp: %v", dex.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: close temp: %v", dex.ErrPersistence, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: rename into place: %v", dex.ErrPersistence, err)
	}
	return nil
}

var _ dex.Store = (*FileStore)(nil)
