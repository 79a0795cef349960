package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"arbiter/internal/domain"
)

const (
	tableFile    = "table.json"
	tableVersion = 1
)

// TableFileStore persists the fingerprint registry and trust edges as one file.
type TableFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewTableFileStore returns a TableFileStore rooted at dir.
func NewTableFileStore(dir string) *TableFileStore {
	return &TableFileStore{dir: dir}
}

// SaveTable replaces the stored table.
func (s *TableFileStore) SaveTable(t domain.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	t.V = tableVersion
	if err := writeJSON(filepath.Join(s.dir, tableFile), t, 0o600); err != nil {
		return fmt.Errorf("%w: save table: %v", domain.ErrIO, err)
	}
	return nil
}

// LoadTable returns the stored table and whether it was present.
func (s *TableFileStore) LoadTable() (domain.Table, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var t domain.Table
	ok, err := readJSON(filepath.Join(s.dir, tableFile), &t)
	if err != nil {
		return domain.Table{}, false, fmt.Errorf("%w: load table: %v", domain.ErrIO, err)
	}
	if ok && t.V > tableVersion {
		return domain.Table{}, false, fmt.Errorf("%w: unsupported table version %d", domain.ErrIO, t.V)
	}
	return t, ok, nil
}

// Compile-time assertion that TableFileStore implements domain.TableStore.
var _ domain.TableStore = (*TableFileStore)(nil)
