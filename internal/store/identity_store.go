package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"arbiter/internal/domain"
)

const (
	identitiesDir         = "identities"
	identityRecordVersion = 1
)

// IdentityFileStore persists one encrypted record per identity.
type IdentityFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewIdentityFileStore returns an IdentityFileStore rooted at dir.
func NewIdentityFileStore(dir string) *IdentityFileStore {
	return &IdentityFileStore{dir: filepath.Join(dir, identitiesDir)}
}

// SaveIdentity writes the record for rec.ID, replacing any previous one.
func (s *IdentityFileStore) SaveIdentity(rec domain.IdentityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.ID == uuid.Nil {
		return fmt.Errorf("%w: identity record without id", domain.ErrIO)
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	rec.V = identityRecordVersion
	if err := writeJSON(s.path(rec.ID), rec, 0o600); err != nil {
		return fmt.Errorf("%w: save identity %s: %v", domain.ErrIO, rec.ID, err)
	}
	return nil
}

// LoadIdentities reads every identity record, ordered by creation time.
func (s *IdentityFileStore) LoadIdentities() ([]domain.IdentityRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ents, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	var out []domain.IdentityRecord
	for _, e := range ents {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		var rec domain.IdentityRecord
		if _, err := readJSON(filepath.Join(s.dir, name), &rec); err != nil {
			return nil, fmt.Errorf("%w: load identity %s: %v", domain.ErrIO, name, err)
		}
		if rec.V > identityRecordVersion {
			return nil, fmt.Errorf("%w: identity %s: unsupported record version %d", domain.ErrIO, name, rec.V)
		}
		if want := rec.ID.String() + ".json"; name != want {
			return nil, fmt.Errorf("%w: identity file %s holds record %s", domain.ErrIO, name, rec.ID)
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// DeleteIdentity removes the record for id. A missing record is not an error.
func (s *IdentityFileStore) DeleteIdentity(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete identity %s: %v", domain.ErrIO, id, err)
	}
	return nil
}

func (s *IdentityFileStore) path(id uuid.UUID) string {
	return filepath.Join(s.dir, id.String()+".json")
}

// Compile-time assertion that IdentityFileStore implements domain.IdentityStore.
var _ domain.IdentityStore = (*IdentityFileStore)(nil)
