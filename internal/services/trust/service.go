package trust

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"arbiter/internal/domain"
)

type targets struct {
	order []domain.Fingerprint
	set   map[domain.Fingerprint]struct{}
}

// Service is an in-memory trust graph guarded by a RWMutex.
type Service struct {
	mu     sync.RWMutex
	keys   domain.KeyLookup
	owners map[uuid.UUID]*targets
	log    *logrus.Entry
}

// New returns an empty trust graph whose targets are checked against keys.
func New(keys domain.KeyLookup, log *logrus.Entry) *Service {
	return &Service{
		keys:   keys,
		owners: make(map[uuid.UUID]*targets),
		log:    log,
	}
}

// AddTarget makes owner trust fp. Adding an existing edge is a no-op.
func (s *Service) AddTarget(owner uuid.UUID, fp domain.Fingerprint) error {
	if _, ok := s.keys.Lookup(fp); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownFingerprint, fp.Short())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.owners[owner]
	if t == nil {
		t = &targets{set: make(map[domain.Fingerprint]struct{})}
		s.owners[owner] = t
	}
	if _, ok := t.set[fp]; ok {
		return nil
	}
	t.set[fp] = struct{}{}
	t.order = append(t.order, fp)
	s.log.WithFields(logrus.Fields{
		"owner":       owner,
		"fingerprint": fp.Short(),
		"index":       len(t.order) - 1,
	}).Debug("Added trust target")
	return nil
}

// IsTarget reports whether owner trusts fp.
func (s *Service) IsTarget(owner uuid.UUID, fp domain.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.owners[owner]
	if t == nil {
		return false
	}
	_, ok := t.set[fp]
	return ok
}

// Target returns owner's index-th target.
func (s *Service) Target(owner uuid.UUID, index int) (domain.Fingerprint, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.owners[owner]
	if t == nil || index < 0 || index >= len(t.order) {
		return domain.Fingerprint{}, false
	}
	return t.order[index], true
}

// Targets returns owner's targets in insertion order.
func (s *Service) Targets(owner uuid.UUID) []domain.Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.owners[owner]
	if t == nil {
		return nil
	}
	return append([]domain.Fingerprint(nil), t.order...)
}

// Referenced reports whether any owner trusts fp.
func (s *Service) Referenced(fp domain.Fingerprint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.owners {
		if _, ok := t.set[fp]; ok {
			return true
		}
	}
	return false
}

// RemoveOwner drops every edge of owner.
func (s *Service) RemoveOwner(owner uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.owners[owner]; ok {
		delete(s.owners, owner)
		s.log.WithField("owner", owner).Debug("Removed trust targets")
	}
}

// Edges returns every owner's targets, ordered by owner id.
func (s *Service) Edges() []domain.TrustEdges {
	s.mu.RLock()
	out := make([]domain.TrustEdges, 0, len(s.owners))
	for owner, t := range s.owners {
		if len(t.order) == 0 {
			continue
		}
		out = append(out, domain.TrustEdges{
			Owner:   owner,
			Targets: append([]domain.Fingerprint(nil), t.order...),
		})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Owner[:], out[j].Owner[:]) < 0 })
	return out
}

// Restore replaces the graph with persisted edges. Every target must be
// known to the registry; on error the graph is left unchanged.
func (s *Service) Restore(edges []domain.TrustEdges) error {
	next := make(map[uuid.UUID]*targets, len(edges))
	for _, e := range edges {
		t := next[e.Owner]
		if t == nil {
			t = &targets{set: make(map[domain.Fingerprint]struct{})}
			next[e.Owner] = t
		}
		for _, fp := range e.Targets {
			if _, ok := s.keys.Lookup(fp); !ok {
				return fmt.Errorf("%w: restored edge %s -> %s", domain.ErrUnknownFingerprint, e.Owner, fp.Short())
			}
			if _, dup := t.set[fp]; dup {
				continue
			}
			t.set[fp] = struct{}{}
			t.order = append(t.order, fp)
		}
	}

	s.mu.Lock()
	s.owners = next
	s.mu.Unlock()
	return nil
}

// Compile-time assertion that Service implements domain.TrustService.
var _ domain.TrustService = (*Service)(nil)
