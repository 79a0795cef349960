package registry

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"arbiter/internal/crypto"
	"arbiter/internal/domain"
)

// MaxLabelLength is the maximum label size in bytes.
const MaxLabelLength = 128

// Service is an in-memory fingerprint registry guarded by a RWMutex.
type Service struct {
	mu      sync.RWMutex
	entries map[domain.Fingerprint]domain.Entry
	now     func() time.Time
	log     *logrus.Entry
}

// New returns an empty registry.
func New(log *logrus.Entry) *Service {
	return &Service{
		entries: make(map[domain.Fingerprint]domain.Entry),
		now:     time.Now,
		log:     log,
	}
}

// Add registers publicKey under fp with a label and returns its entry id.
// The entry is pinned: it outlives the local identity that owns the key,
// if any. Re-adding an identical key pins an existing entry.
func (s *Service) Add(publicKey []byte, fp domain.Fingerprint, label string) (domain.EntryID, error) {
	return s.add(publicKey, fp, label, true)
}

// AddLocal registers the key of a local identity without pinning it.
func (s *Service) AddLocal(publicKey []byte, fp domain.Fingerprint, label string) (domain.EntryID, error) {
	return s.add(publicKey, fp, label, false)
}

func (s *Service) add(publicKey []byte, fp domain.Fingerprint, label string, pin bool) (domain.EntryID, error) {
	if err := ValidateLabel(label); err != nil {
		return "", err
	}
	pub, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return "", err
	}
	if got := pub.Fingerprint(); got != fp {
		return "", fmt.Errorf("%w: key fingerprint is %s, not %s", domain.ErrConflict, got.Short(), fp.Short())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[fp]; ok {
		if !bytes.Equal(e.PublicKey, pub.PEM()) {
			return "", fmt.Errorf("%w: %s is bound to another key", domain.ErrConflict, fp.Short())
		}
		if pin && !e.Pinned {
			e.Pinned = true
			s.entries[fp] = e
			s.log.WithField("fingerprint", fp.Short()).Debug("Pinned public key")
		}
		return e.ID, nil
	}
	e := domain.Entry{
		ID:          crypto.EntryIDOf(fp),
		Fingerprint: fp,
		PublicKey:   pub.PEM(),
		Label:       label,
		AddedAt:     s.now().UTC(),
		Pinned:      pin,
	}
	s.entries[fp] = e
	s.log.WithFields(logrus.Fields{
		"fingerprint": fp.Short(),
		"label":       label,
		"algorithm":   pub.Algorithm(),
		"pinned":      pin,
	}).Debug("Registered public key")
	return e.ID, nil
}

// Lookup returns the entry registered under fp.
func (s *Service) Lookup(fp domain.Fingerprint) (domain.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[fp]
	if !ok {
		return domain.Entry{}, false
	}
	return cloneEntry(e), true
}

// Remove deletes the entry for fp unless referenced reports it still in use.
func (s *Service) Remove(fp domain.Fingerprint, referenced func(domain.Fingerprint) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[fp]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownFingerprint, fp.Short())
	}
	if referenced != nil && referenced(fp) {
		return fmt.Errorf("%w: %s", domain.ErrFingerprintInUse, fp.Short())
	}
	delete(s.entries, fp)
	s.log.WithField("fingerprint", fp.Short()).Debug("Removed public key")
	return nil
}

// RemoveLocal drops the entry for fp unless it is pinned or referenced.
// It reports whether the entry was removed; a missing entry is not an error.
func (s *Service) RemoveLocal(fp domain.Fingerprint, referenced func(domain.Fingerprint) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fp]
	if !ok || e.Pinned || (referenced != nil && referenced(fp)) {
		return false
	}
	delete(s.entries, fp)
	s.log.WithField("fingerprint", fp.Short()).Debug("Removed local public key")
	return true
}

// Entries returns all entries sorted by label, then fingerprint.
func (s *Service) Entries() []domain.Entry {
	s.mu.RLock()
	out := make([]domain.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, cloneEntry(e))
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Label != out[j].Label {
			return out[i].Label < out[j].Label
		}
		return bytes.Compare(out[i].Fingerprint[:], out[j].Fingerprint[:]) < 0
	})
	return out
}

// Len returns the number of entries.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Restore replaces the registry contents with persisted entries. Every entry
// is re-validated; on error the registry is left unchanged.
func (s *Service) Restore(entries []domain.Entry) error {
	next := make(map[domain.Fingerprint]domain.Entry, len(entries))
	for _, e := range entries {
		pub, err := crypto.ParsePublicKey(e.PublicKey)
		if err != nil {
			return fmt.Errorf("restore %s: %w", e.Fingerprint.Short(), err)
		}
		if pub.Fingerprint() != e.Fingerprint {
			return fmt.Errorf("%w: restored entry %s does not match its key", domain.ErrConflict, e.Fingerprint.Short())
		}
		if _, dup := next[e.Fingerprint]; dup {
			return fmt.Errorf("%w: duplicate entry %s", domain.ErrConflict, e.Fingerprint.Short())
		}
		e.ID = crypto.EntryIDOf(e.Fingerprint)
		e.PublicKey = pub.PEM()
		next[e.Fingerprint] = e
	}

	s.mu.Lock()
	s.entries = next
	s.mu.Unlock()
	return nil
}

// ValidateLabel checks that label is 1..MaxLabelLength bytes of printable UTF-8.
func ValidateLabel(label string) error {
	if label == "" || len(label) > MaxLabelLength {
		return fmt.Errorf("%w: must be 1-%d bytes", domain.ErrInvalidLabel, MaxLabelLength)
	}
	if !utf8.ValidString(label) {
		return fmt.Errorf("%w: not valid UTF-8", domain.ErrInvalidLabel)
	}
	for _, r := range label {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", domain.ErrInvalidLabel)
		}
	}
	return nil
}

func cloneEntry(e domain.Entry) domain.Entry {
	e.PublicKey = append([]byte(nil), e.PublicKey...)
	return e
}

// Compile-time assertion that Service implements domain.RegistryService.
var _ domain.RegistryService = (*Service)(nil)
