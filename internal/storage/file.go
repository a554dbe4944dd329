package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/c2FmZQ/storage"
)

// fileEntry is the on-disk envelope for one key.
type fileEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// File is a Backend storing one data file per key under a directory.
// It survives process restarts and is scoped to the local machine.
type File struct {
	dir     string
	storage *storage.Storage
	mu      sync.Map // key -> *sync.Mutex
}

// NewFile creates a file backend rooted at dir.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage dir: %w", err)
	}
	return &File{
		dir:     dir,
		storage: storage.New(dir, nil),
	}, nil
}

func (f *File) lock(key string) func() {
	m, _ := f.mu.LoadOrStore(key, &sync.Mutex{})
	mutex := m.(*sync.Mutex)
	mutex.Lock()
	return mutex.Unlock
}

func fileName(key string) string {
	return filepath.Join("kv", url.PathEscape(key)+".json")
}

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	defer f.lock(key)()

	var e fileEntry
	if err := f.storage.ReadDataFile(fileName(key), &e); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("storage.ReadDataFile: %w", err)
	}
	return e.Value, true, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	defer f.lock(key)()

	if err := f.storage.SaveDataFile(fileName(key), fileEntry{Key: key, Value: value}); err != nil {
		return fmt.Errorf("storage.SaveDataFile: %w", err)
	}
	return nil
}

func (f *File) Delete(_ context.Context, key string) error {
	defer f.lock(key)()

	err := os.Remove(filepath.Join(f.dir, fileName(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
