package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
)

// Bar is one daily closing price for one asset, stored in parquet.
type Bar struct {
	Asset string  `parquet:"asset"`
	Date  int64   `parquet:"date"` // unix seconds, UTC midnight
	Close float64 `parquet:"close"`
}

// Store manages persistent price bars in parquet files.
// Uses append-by-new-file strategy: each write creates a new chunk file.
// Periodic compaction merges chunks into a single file.
type Store struct {
	dir string
	mu  sync.RWMutex
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("history: create dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Append writes new bars as a new parquet chunk file.
func (s *Store) Append(bars []Bar) error {
	if len(bars) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("bars_%d.parquet", time.Now().UnixNano()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("history: create chunk: %w", err)
	}

	w := parquet.NewGenericWriter[Bar](f)
	if _, err := w.Write(bars); err != nil {
		f.Close()
		return fmt.Errorf("history: write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("history: close writer: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("history: sync file: %w", err)
	}
	return f.Close()
}

// ReadAll loads all bars from all chunk files. Within each asset, bars are
// sorted by date ascending and duplicate dates keep the latest write.
func (s *Store) ReadAll() (map[string][]Bar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, err := s.listChunks()
	if err != nil {
		return nil, err
	}

	byKey := map[string]Bar{}
	for _, path := range chunks {
		bars, err := s.readChunk(path)
		if err != nil {
			return nil, fmt.Errorf("history: read %s: %w", path, err)
		}
		for _, b := range bars {
			byKey[fmt.Sprintf("%s@%d", b.Asset, b.Date)] = b
		}
	}

	out := map[string][]Bar{}
	for _, b := range byKey {
		out[b.Asset] = append(out[b.Asset], b)
	}
	for asset := range out {
		sort.Slice(out[asset], func(i, j int) bool {
			return out[asset][i].Date < out[asset][j].Date
		})
	}
	return out, nil
}

// Compact merges all chunk files into a single parquet file. Duplicate
// (asset, date) rows resolve the same way ReadAll resolves them: the
// latest chunk's write survives.
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	chunks, err := s.listChunks()
	if err != nil {
		return err
	}
	if len(chunks) <= 1 {
		return nil
	}

	byKey := map[string]Bar{}
	for _, path := range chunks {
		bars, err := s.readChunk(path)
		if err != nil {
			return fmt.Errorf("history: compact read %s: %w", path, err)
		}
		for _, b := range bars {
			byKey[fmt.Sprintf("%s@%d", b.Asset, b.Date)] = b
		}
	}

	all := make([]Bar, 0, len(byKey))
	for _, b := range byKey {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Asset != all[j].Asset {
			return all[i].Asset < all[j].Asset
		}
		return all[i].Date < all[j].Date
	})

	tmp := filepath.Join(s.dir, "compacted.parquet.tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("history: create compacted: %w", err)
	}

	w := parquet.NewGenericWriter[Bar](f)
	if _, err := w.Write(all); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("history: write compacted: %w", err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("history: close compacted: %w", err)
	}
	f.Close()

	for _, path := range chunks {
		os.Remove(path)
	}

	final := filepath.Join(s.dir, fmt.Sprintf("bars_%d.parquet", time.Now().UnixNano()))
	if err := os.Rename(tmp, final); err != nil {
		return fmt.Errorf("history: rename compacted: %w", err)
	}
	return nil
}

func (s *Store) listChunks() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("history: list dir: %w", err)
	}
	var chunks []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".parquet" {
			chunks = append(chunks, filepath.Join(s.dir, e.Name()))
		}
	}
	sort.Strings(chunks)
	return chunks, nil
}

func (s *Store) readChunk(path string) ([]Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, err
	}

	r := parquet.NewGenericReader[Bar](pf)
	defer r.Close()

	bars := make([]Bar, r.NumRows())
	n, err := r.Read(bars)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return bars[:n], nil
}

// Day truncates t to UTC midnight, the granularity bars are stored at.
func Day(t time.Time) int64 {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix()
}
