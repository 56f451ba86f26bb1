package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// SyncFile is a YAML document in a synced directory (Dropbox, iCloud
// Drive, a network share) holding one flat mapping per store. Every save
// replaces the store's mapping wholesale.
type SyncFile struct {
	mu   sync.Mutex
	path string
}

// NewSyncFile returns a SyncFile at path. The file is created on first save.
func NewSyncFile(path string) *SyncFile {
	return &SyncFile{path: path}
}

// Path returns the file location.
func (f *SyncFile) Path() string {
	return f.path
}

// Store returns the bean.SyncBackend view for one store.
func (f *SyncFile) Store(name string) *SyncedStore {
	return &SyncedStore{file: f, name: name}
}

func (f *SyncFile) read() (map[string]map[string]any, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync file: %w", err)
	}

	doc := map[string]map[string]any{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse sync file: %w", err)
	}
	return doc, nil
}

// write replaces the file atomically via a temp file and rename.
func (f *SyncFile) write(doc map[string]map[string]any) error {
	if len(doc) == 0 {
		if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove sync file: %w", err)
		}
		return nil
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode sync file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create sync directory: %w", err)
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write sync file: %w", err)
	}
	return os.Rename(tmpPath, f.path)
}

// SyncedStore is one store's slice of a SyncFile. It satisfies
// bean.SyncBackend.
type SyncedStore struct {
	file *SyncFile
	name string
}

func (s *SyncedStore) Load(ctx context.Context) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	doc, err := s.file.read()
	if err != nil {
		return nil, err
	}
	values := doc[s.name]
	if values == nil {
		values = map[string]any{}
	}
	return values, nil
}

func (s *SyncedStore) Save(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	doc, err := s.file.read()
	if err != nil {
		return err
	}
	doc[s.name] = values
	return s.file.write(doc)
}

func (s *SyncedStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.file.mu.Lock()
	defer s.file.mu.Unlock()

	doc, err := s.file.read()
	if err != nil {
		return err
	}
	delete(doc, s.name)
	return s.file.write(doc)
}
