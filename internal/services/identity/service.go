package identity

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"arbiter/internal/crypto"
	"arbiter/internal/domain"
	"arbiter/internal/util/logging"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12

	// MaxNameLength is the maximum display name size in bytes.
	MaxNameLength = 64

	// reserved marks a display name claimed by a Create still in progress.
	reserved = -1
)

// identity is one arena resident.
type identity struct {
	id        uuid.UUID
	name      string
	alg       domain.Algorithm
	fp        domain.Fingerprint
	publicKey []byte
	createdAt time.Time
	sealed    domain.SealedKey
	keys      *crypto.KeyPair // nil while locked
}

type slot struct {
	gen uint32
	id  *identity
}

// Service manages identity creation and access.
type Service struct {
	mu    sync.RWMutex
	slots []slot
	free  []int
	names map[string]int
	ids   map[uuid.UUID]int

	kdf    domain.KDFParams
	strict bool
	random io.Reader
	now    func() time.Time
	log    *logrus.Entry
}

// New returns an empty identity service.
func New(opts ...Option) *Service {
	s := &Service{
		names: make(map[string]int),
		ids:   make(map[uuid.UUID]int),
		kdf:   crypto.DefaultKDFParams(),
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = logging.Discard()
	}
	return s
}

// Create generates a key pair for a new identity, seals its private half
// under passphrase and returns the identity unlocked.
func (s *Service) Create(displayName, passphrase string, alg domain.Algorithm) (domain.Identity, error) {
	if err := ValidateName(displayName); err != nil {
		return domain.Identity{}, err
	}
	if err := s.checkPassphrase(passphrase); err != nil {
		return domain.Identity{}, err
	}
	if err := s.reserve(displayName); err != nil {
		return domain.Identity{}, err
	}

	// Key generation and sealing are slow; the name is held reserved meanwhile.
	kp, sealed, err := s.generate(alg, passphrase)
	if err != nil {
		s.release(displayName)
		return domain.Identity{}, err
	}

	ident := &identity{
		id:        uuid.New(),
		name:      displayName,
		alg:       kp.Algorithm(),
		fp:        kp.Fingerprint(),
		publicKey: kp.PublicKey(),
		createdAt: s.now().UTC(),
		sealed:    sealed,
		keys:      kp,
	}

	s.mu.Lock()
	h := s.insert(ident)
	view := s.view(h, ident)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"handle":      h,
		"name":        displayName,
		"algorithm":   ident.alg,
		"fingerprint": ident.fp.Short(),
	}).Info("Created identity")
	return view, nil
}

func (s *Service) generate(alg domain.Algorithm, passphrase string) (*crypto.KeyPair, domain.SealedKey, error) {
	kp, err := crypto.Generate(alg, s.random)
	if err != nil {
		return nil, domain.SealedKey{}, err
	}
	sealed, err := crypto.Seal(kp, passphrase, s.kdf, s.random)
	if err != nil {
		kp.Destroy()
		return nil, domain.SealedKey{}, fmt.Errorf("%w: seal: %v", domain.ErrKeyGen, err)
	}
	return kp, sealed, nil
}

func (s *Service) reserve(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[name]; taken {
		return fmt.Errorf("%w: %q", domain.ErrDuplicateName, name)
	}
	s.names[name] = reserved
	return nil
}

func (s *Service) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.names[name] == reserved {
		delete(s.names, name)
	}
}

// insert places ident in a free slot. Callers hold s.mu.
func (s *Service) insert(ident *identity) domain.Handle {
	var i int
	if n := len(s.free); n > 0 {
		i = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		i = len(s.slots)
		s.slots = append(s.slots, slot{})
	}
	s.slots[i].id = ident
	s.names[ident.name] = i
	s.ids[ident.id] = i
	return domain.NewHandle(i, s.slots[i].gen)
}

// resolve returns the identity behind h. Callers hold s.mu.
func (s *Service) resolve(h domain.Handle) (*identity, error) {
	i := h.Slot()
	if i < 0 || i >= len(s.slots) || s.slots[i].gen != h.Generation() || s.slots[i].id == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownIdentity, h)
	}
	return s.slots[i].id, nil
}

func (s *Service) view(h domain.Handle, ident *identity) domain.Identity {
	return domain.Identity{
		Handle:      h,
		ID:          ident.id,
		DisplayName: ident.name,
		Algorithm:   ident.alg,
		Fingerprint: ident.fp,
		PublicKey:   append([]byte(nil), ident.publicKey...),
		CreatedAt:   ident.createdAt,
		Unlocked:    ident.keys != nil,
	}
}

// Get returns a read-only view of the identity behind h.
func (s *Service) Get(h domain.Handle) (domain.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, err := s.resolve(h)
	if err != nil {
		return domain.Identity{}, err
	}
	return s.view(h, ident), nil
}

// Info returns one attribute of the identity behind h.
func (s *Service) Info(h domain.Handle, field domain.Field) ([]byte, error) {
	v, err := s.Get(h)
	if err != nil {
		return nil, err
	}
	switch field {
	case domain.FieldFingerprint:
		return []byte(v.Fingerprint.String()), nil
	case domain.FieldPublicKey:
		return v.PublicKey, nil
	case domain.FieldDisplayName:
		return []byte(v.DisplayName), nil
	case domain.FieldAlgorithm:
		return []byte(v.Algorithm), nil
	case domain.FieldID:
		return []byte(v.ID.String()), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownField, field)
}

// ByName returns the handle of the identity called displayName.
func (s *Service) ByName(displayName string) (domain.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.names[displayName]
	if !ok || i == reserved {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownIdentity, displayName)
	}
	return domain.NewHandle(i, s.slots[i].gen), nil
}

// Handles returns the handles of all identities, oldest first.
func (s *Service) Handles() []domain.Handle {
	s.mu.RLock()
	type entry struct {
		h  domain.Handle
		at time.Time
	}
	all := make([]entry, 0, len(s.ids))
	for i, sl := range s.slots {
		if sl.id != nil {
			all = append(all, entry{domain.NewHandle(i, sl.gen), sl.id.createdAt})
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool { return all[i].at.Before(all[j].at) })
	out := make([]domain.Handle, len(all))
	for i, e := range all {
		out[i] = e.h
	}
	return out
}

// Sign signs msg as the identity behind h. The service lock is only held
// while the key pair is looked up.
func (s *Service) Sign(h domain.Handle, msg []byte) ([]byte, error) {
	s.mu.RLock()
	ident, err := s.resolve(h)
	var kp *crypto.KeyPair
	if err == nil {
		kp = ident.keys
	}
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	if kp == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrLockedKey, h)
	}
	return kp.Sign(msg)
}

// Unlock opens the sealed private key of the identity behind h.
func (s *Service) Unlock(h domain.Handle, passphrase string) error {
	s.mu.RLock()
	ident, err := s.resolve(h)
	var (
		sealed domain.SealedKey
		alg    domain.Algorithm
		fp     domain.Fingerprint
		open   bool
	)
	if err == nil {
		sealed, alg, fp, open = ident.sealed, ident.alg, ident.fp, ident.keys != nil
	}
	s.mu.RUnlock()
	if err != nil {
		return err
	}
	if open {
		return nil
	}

	kp, err := crypto.Open(sealed, passphrase, alg, fp)
	if err != nil {
		s.log.WithField("handle", h).Warn("Unlock failed")
		return err
	}

	s.mu.Lock()
	ident, err = s.resolve(h)
	if err != nil {
		s.mu.Unlock()
		kp.Destroy()
		return err
	}
	if ident.keys != nil {
		s.mu.Unlock()
		kp.Destroy()
		return nil
	}
	ident.keys = kp
	s.mu.Unlock()

	s.log.WithField("handle", h).Debug("Unlocked identity")
	return nil
}

// Lock wipes the live key pair of the identity behind h.
func (s *Service) Lock(h domain.Handle) error {
	s.mu.Lock()
	ident, err := s.resolve(h)
	var kp *crypto.KeyPair
	if err == nil {
		kp, ident.keys = ident.keys, nil
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	if kp != nil {
		kp.Destroy()
	}
	return nil
}

// Delete removes the identity behind h and wipes its key pair. The slot's
// generation is bumped so h never resolves again.
func (s *Service) Delete(h domain.Handle) (domain.Identity, error) {
	s.mu.Lock()
	ident, err := s.resolve(h)
	if err != nil {
		s.mu.Unlock()
		return domain.Identity{}, err
	}
	view := s.view(h, ident)
	i := h.Slot()
	s.slots[i].id = nil
	s.slots[i].gen++
	s.free = append(s.free, i)
	delete(s.names, ident.name)
	delete(s.ids, ident.id)
	kp := ident.keys
	ident.keys = nil
	s.mu.Unlock()

	if kp != nil {
		kp.Destroy()
	}
	s.log.WithFields(logrus.Fields{"handle": h, "name": ident.name}).Info("Deleted identity")
	return view, nil
}

// Record returns the persistable form of the identity behind h.
func (s *Service) Record(h domain.Handle) (domain.IdentityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, err := s.resolve(h)
	if err != nil {
		return domain.IdentityRecord{}, err
	}
	return domain.IdentityRecord{
		ID:          ident.id,
		DisplayName: ident.name,
		Algorithm:   ident.alg,
		PublicKey:   string(ident.publicKey),
		Fingerprint: crypto.EncodeFingerprint(ident.fp),
		CreatedAt:   ident.createdAt,
		Sealed:      ident.sealed,
	}, nil
}

// Restore installs persisted identities, locked. Records are validated
// first; on error nothing is installed.
func (s *Service) Restore(recs []domain.IdentityRecord) error {
	restored := make([]*identity, 0, len(recs))
	for _, rec := range recs {
		ident, err := fromRecord(rec)
		if err != nil {
			return err
		}
		restored = append(restored, ident)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seenNames := make(map[string]bool, len(restored))
	seenIDs := make(map[uuid.UUID]bool, len(restored))
	for _, ident := range restored {
		_, nameTaken := s.names[ident.name]
		if nameTaken || seenNames[ident.name] {
			return fmt.Errorf("%w: restored identity %q", domain.ErrDuplicateName, ident.name)
		}
		_, idTaken := s.ids[ident.id]
		if idTaken || seenIDs[ident.id] {
			return fmt.Errorf("restore: identity %s present twice", ident.id)
		}
		seenNames[ident.name], seenIDs[ident.id] = true, true
	}
	for _, ident := range restored {
		s.insert(ident)
	}
	s.log.WithField("count", len(restored)).Debug("Restored identities")
	return nil
}

func fromRecord(rec domain.IdentityRecord) (*identity, error) {
	if err := ValidateName(rec.DisplayName); err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ID, err)
	}
	if rec.ID == uuid.Nil {
		return nil, fmt.Errorf("restore %q: missing id", rec.DisplayName)
	}
	fp, err := crypto.DecodeFingerprint(rec.Fingerprint)
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ID, err)
	}
	pub, err := crypto.ParsePublicKey([]byte(rec.PublicKey))
	if err != nil {
		return nil, fmt.Errorf("restore %s: %w", rec.ID, err)
	}
	if pub.Fingerprint() != fp {
		return nil, fmt.Errorf("%w: restored identity %s does not match its key", domain.ErrConflict, rec.ID)
	}
	if pub.Algorithm() != rec.Algorithm {
		return nil, fmt.Errorf("%w: restored identity %s is %s, record says %s",
			domain.ErrConflict, rec.ID, pub.Algorithm(), rec.Algorithm)
	}
	return &identity{
		id:        rec.ID,
		name:      rec.DisplayName,
		alg:       rec.Algorithm,
		fp:        fp,
		publicKey: pub.PEM(),
		createdAt: rec.CreatedAt,
		sealed:    rec.Sealed,
	}, nil
}

// Close wipes every live key pair and empties the arena.
func (s *Service) Close() {
	s.mu.Lock()
	var live []*crypto.KeyPair
	for i := range s.slots {
		if ident := s.slots[i].id; ident != nil && ident.keys != nil {
			live = append(live, ident.keys)
			ident.keys = nil
		}
	}
	s.slots, s.free = nil, nil
	s.names = make(map[string]int)
	s.ids = make(map[uuid.UUID]int)
	s.mu.Unlock()

	for _, kp := range live {
		kp.Destroy()
	}
	s.log.WithField("wiped", len(live)).Debug("Closed identity store")
}

// ValidateName checks that name is 1..MaxNameLength bytes of printable UTF-8.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return fmt.Errorf("%w: must be 1-%d bytes", domain.ErrInvalidName, MaxNameLength)
	}
	if !utf8.ValidString(name) {
		return fmt.Errorf("%w: not valid UTF-8", domain.ErrInvalidName)
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character", domain.ErrInvalidName)
		}
	}
	return nil
}

func (s *Service) checkPassphrase(passphrase string) error {
	if s.strict {
		if !isSecurePassphrase(passphrase) {
			return fmt.Errorf(
				"%w: must be at least %d characters and include upper, lower, number, and symbol",
				domain.ErrWeakPassphrase, minPassphraseLength,
			)
		}
		return nil
	}
	if passphrase == "" {
		return fmt.Errorf("%w: empty passphrase", domain.ErrWeakPassphrase)
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}

// Compile-time assertion that Service implements domain.IdentityService.
var _ domain.IdentityService = (*Service)(nil)
