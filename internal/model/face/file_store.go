package face

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// FileStore is a MemoryStore that rewrites a msgpack snapshot after every mutation.
type FileStore struct {
	*MemoryStore
	path string
}

// OpenFileStore loads the snapshot at path, if any, and returns a store bound to it.
func OpenFileStore(path string) (*FileStore, error) {
	store := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read face gallery %s: %w", path, err)
	}

	var items []Enrolled
	if err := msgpack.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode face gallery %s: %w", path, err)
	}
	store.replace(items)
	log.Printf("[faces] loaded %d enrolled faces from %s", len(items), path)
	return store, nil
}

func (s *FileStore) Put(face Enrolled) error {
	if err := s.MemoryStore.Put(face); err != nil {
		return err
	}
	return s.flush()
}

func (s *FileStore) Delete(label string) error {
	if err := s.MemoryStore.Delete(label); err != nil {
		return err
	}
	return s.flush()
}

// flush replaces the snapshot atomically via temp file + rename.
func (s *FileStore) flush() error {
	raw, err := msgpack.Marshal(s.List())
	if err != nil {
		return fmt.Errorf("encode face gallery: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".faces-*")
	if err != nil {
		return fmt.Errorf("create face gallery temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write face gallery: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close face gallery: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}
