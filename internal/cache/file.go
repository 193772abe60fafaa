package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type fileEntry struct {
	ExpiresAt time.Time `json:"expires_at"`
	Value     []byte    `json:"value"`
}

// FileStore is the zero-dependency fallback when no Redis address is
// configured. One JSON file per key under <dataDir>/cache.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dataDir string) (*FileStore, error) {
	dir := filepath.Join(dataDir, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	safe := strings.NewReplacer("/", "_", ":", "_", "..", "_").Replace(key)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := fileEntry{ExpiresAt: time.Now().Add(ttl), Value: value}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path(key))
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}
	if time.Now().After(entry.ExpiresAt) {
		os.Remove(s.path(key))
		return nil, ErrMiss
	}
	return entry.Value, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}
