package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Storage is a flat key-value byte store. Writes replace the whole value for
// a key; there is no partial update and no cross-key transaction. Concurrent
// writers (e.g. two client processes sharing a data root) are last-write-wins.
type Storage interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("storage: key not found")

// FileStorage keeps one file per key under Root.
type FileStorage struct {
	Root string
}

func DefaultStorageRoot() string {
	if base := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); base != "" {
		return filepath.Join(base, "agentos", "storage")
	}
	if base, err := os.UserHomeDir(); err == nil && base != "" {
		return filepath.Join(base, ".local", "share", "agentos", "storage")
	}
	return filepath.Join(os.TempDir(), "agentos", "storage")
}

func NewFileStorage(root string) *FileStorage {
	if strings.TrimSpace(root) == "" {
		root = DefaultStorageRoot()
	}
	return &FileStorage{Root: root}
}

func (s *FileStorage) path(key string) string {
	// Keys are flat identifiers; anything path-like is flattened so a key can
	// never escape the root.
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(s.Root, safe)
}

func (s *FileStorage) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *FileStorage) Set(key string, value []byte) error {
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path(key), value, 0o644)
}

func (s *FileStorage) Delete(key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemoryStorage is an in-process Storage used by tests.
type MemoryStorage struct {
	mu sync.Mutex
	m  map[string][]byte
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{m: make(map[string][]byte)}
}

func (s *MemoryStorage) Get(key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *MemoryStorage) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.m[key] = v
	return nil
}

func (s *MemoryStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
