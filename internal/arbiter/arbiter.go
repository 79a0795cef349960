package arbiter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"arbiter/internal/crypto"
	"arbiter/internal/domain"
	"arbiter/internal/services/identity"
	"arbiter/internal/services/registry"
	"arbiter/internal/services/trust"
	"arbiter/internal/store"
	"arbiter/internal/util/logging"
)

// Arbiter is the facade over identities, the fingerprint registry and the
// trust graph.
type Arbiter struct {
	// state guards the lifecycle: operations hold it shared, Init and
	// Close exclusively.
	state sync.RWMutex
	dir   string

	ids   domain.IdentityService
	reg   domain.RegistryService
	trust domain.TrustService

	identities domain.IdentityStore
	tables     domain.TableStore

	// link serialises writes that span the registry and the trust graph.
	link sync.Mutex
	// persist serialises table snapshots and writes.
	persist sync.Mutex

	identityOpts []identity.Option
	log          *logrus.Entry
}

// New returns an uninitialized Arbiter.
func New(opts ...Option) *Arbiter {
	a := &Arbiter{}
	for _, o := range opts {
		o(a)
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	return a
}

// Init opens configDir, restores the identities and the registry and trust
// table stored there, then registers knownKeys. Calling Init again with the
// same directory re-registers knownKeys and is otherwise a no-op; another
// directory fails with domain.ErrReinitConflict.
func (a *Arbiter) Init(configDir string, knownKeys []domain.KnownKey) error {
	dir, err := filepath.Abs(configDir)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}

	a.state.Lock()
	defer a.state.Unlock()

	if a.dir != "" {
		if a.dir != dir {
			return fmt.Errorf("%w: open on %s, asked for %s", domain.ErrReinitConflict, a.dir, dir)
		}
		if err := a.addKnownKeys(knownKeys); err != nil {
			return err
		}
		return a.saveTable()
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIO, err)
	}
	a.identities = store.NewIdentityFileStore(dir)
	a.tables = store.NewTableFileStore(dir)

	ids := identity.New(append([]identity.Option{identity.WithLogger(a.log)}, a.identityOpts...)...)
	reg := registry.New(a.log)
	a.ids, a.reg, a.trust = ids, reg, trust.New(reg, a.log)

	if err := a.restore(); err != nil {
		ids.Close()
		a.ids, a.reg, a.trust = nil, nil, nil
		return err
	}
	if err := a.addKnownKeys(knownKeys); err != nil {
		ids.Close()
		a.ids, a.reg, a.trust = nil, nil, nil
		return err
	}
	if err := a.saveTable(); err != nil {
		ids.Close()
		a.ids, a.reg, a.trust = nil, nil, nil
		return err
	}

	a.dir = dir
	a.log.WithFields(logrus.Fields{
		"dir":        dir,
		"identities": len(a.ids.Handles()),
		"keys":       a.reg.Len(),
	}).Info("Arbiter initialized")
	return nil
}

// restore loads persisted state into freshly built services.
func (a *Arbiter) restore() error {
	recs, err := a.identities.LoadIdentities()
	if err != nil {
		return err
	}
	if err := a.ids.Restore(recs); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	table, _, err := a.tables.LoadTable()
	if err != nil {
		return err
	}
	entries := make([]domain.Entry, 0, len(table.Entries))
	for _, r := range table.Entries {
		fp, err := crypto.DecodeFingerprint(r.Fingerprint)
		if err != nil {
			return fmt.Errorf("%w: table entry: %v", domain.ErrIO, err)
		}
		entries = append(entries, domain.Entry{
			Fingerprint: fp,
			PublicKey:   []byte(r.PublicKey),
			Label:       r.Label,
			AddedAt:     r.AddedAt,
			Pinned:      r.Pinned,
		})
	}
	if err := a.reg.Restore(entries); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}

	// Every local identity can verify itself, so its own key must be registered.
	owners := make(map[uuid.UUID]struct{})
	for _, h := range a.ids.Handles() {
		v, err := a.ids.Get(h)
		if err != nil {
			return err
		}
		owners[v.ID] = struct{}{}
		if _, err := a.reg.AddLocal(v.PublicKey, v.Fingerprint, v.DisplayName); err != nil {
			return fmt.Errorf("%w: self entry for %q: %w", domain.ErrIO, v.DisplayName, err)
		}
	}

	edges := make([]domain.TrustEdges, 0, len(table.Edges))
	for _, r := range table.Edges {
		if _, ok := owners[r.Owner]; !ok {
			a.log.WithFields(logrus.Fields{
				"owner":   r.Owner,
				"targets": len(r.Targets),
			}).Warn("Dropping trust edges of unknown identity")
			continue
		}
		e := domain.TrustEdges{Owner: r.Owner}
		for _, s := range r.Targets {
			fp, err := crypto.DecodeFingerprint(s)
			if err != nil {
				return fmt.Errorf("%w: trust edge: %v", domain.ErrIO, err)
			}
			e.Targets = append(e.Targets, fp)
		}
		edges = append(edges, e)
	}
	if err := a.trust.Restore(edges); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIO, err)
	}
	return nil
}

func (a *Arbiter) addKnownKeys(keys []domain.KnownKey) error {
	for _, k := range keys {
		if _, err := a.reg.Add(k.PublicKey, k.Fingerprint, k.Label); err != nil {
			return fmt.Errorf("known key %q: %w", k.Label, err)
		}
	}
	return nil
}

// saveTable snapshots the registry and trust graph and writes them out.
func (a *Arbiter) saveTable() error {
	a.persist.Lock()
	defer a.persist.Unlock()

	var t domain.Table
	for _, e := range a.reg.Entries() {
		t.Entries = append(t.Entries, domain.EntryRecord{
			Fingerprint: crypto.EncodeFingerprint(e.Fingerprint),
			PublicKey:   string(e.PublicKey),
			Label:       e.Label,
			AddedAt:     e.AddedAt,
			Pinned:      e.Pinned,
		})
	}
	for _, e := range a.trust.Edges() {
		r := domain.EdgeRecord{Owner: e.Owner}
		for _, fp := range e.Targets {
			r.Targets = append(r.Targets, crypto.EncodeFingerprint(fp))
		}
		t.Edges = append(t.Edges, r)
	}
	return a.tables.SaveTable(t)
}

// ready takes the lifecycle lock shared. Callers defer the returned release.
func (a *Arbiter) ready() (release func(), err error) {
	a.state.RLock()
	if a.dir == "" {
		a.state.RUnlock()
		return nil, domain.ErrNotInitialized
	}
	return a.state.RUnlock, nil
}

// Dir returns the configuration directory, or "" when uninitialized.
func (a *Arbiter) Dir() string {
	a.state.RLock()
	defer a.state.RUnlock()
	return a.dir
}

// CreateUser creates an identity, registers its own fingerprint and
// persists it.
func (a *Arbiter) CreateUser(displayName, passphrase string, alg domain.Algorithm) (domain.Handle, error) {
	release, err := a.ready()
	if err != nil {
		return 0, err
	}
	defer release()

	v, err := a.ids.Create(displayName, passphrase, alg)
	if err != nil {
		return 0, err
	}
	if _, err := a.reg.AddLocal(v.PublicKey, v.Fingerprint, displayName); err != nil {
		a.rollbackCreate(v, false)
		return 0, err
	}
	rec, err := a.ids.Record(v.Handle)
	if err == nil {
		err = a.identities.SaveIdentity(rec)
	}
	if err == nil {
		err = a.saveTable()
	}
	if err != nil {
		a.rollbackCreate(v, true)
		return 0, err
	}
	return v.Handle, nil
}

func (a *Arbiter) rollbackCreate(v domain.Identity, registered bool) {
	a.link.Lock()
	defer a.link.Unlock()
	_, _ = a.ids.Delete(v.Handle)
	_ = a.identities.DeleteIdentity(v.ID)
	if registered {
		a.reg.RemoveLocal(v.Fingerprint, a.trust.Referenced)
	}
	a.log.WithField("name", v.DisplayName).Warn("Rolled back identity creation")
}

// UserInfo returns one attribute of the identity behind h.
func (a *Arbiter) UserInfo(h domain.Handle, field domain.Field) ([]byte, error) {
	release, err := a.ready()
	if err != nil {
		return nil, err
	}
	defer release()
	return a.ids.Info(h, field)
}

// UserByName returns the handle of the identity called displayName.
func (a *Arbiter) UserByName(displayName string) (domain.Handle, error) {
	release, err := a.ready()
	if err != nil {
		return 0, err
	}
	defer release()
	return a.ids.ByName(displayName)
}

// Users lists the local identities, oldest first.
func (a *Arbiter) Users() ([]domain.Identity, error) {
	release, err := a.ready()
	if err != nil {
		return nil, err
	}
	defer release()

	var out []domain.Identity
	for _, h := range a.ids.Handles() {
		v, err := a.ids.Get(h)
		if err != nil {
			// Deleted since Handles returned.
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// Unlock opens the private key of an identity restored from disk.
func (a *Arbiter) Unlock(h domain.Handle, passphrase string) error {
	release, err := a.ready()
	if err != nil {
		return err
	}
	defer release()
	return a.ids.Unlock(h, passphrase)
}

// Lock wipes the in-memory private key of the identity behind h.
func (a *Arbiter) Lock(h domain.Handle) error {
	release, err := a.ready()
	if err != nil {
		return err
	}
	defer release()
	return a.ids.Lock(h)
}

// DeleteUser removes an identity, its record and its trust edges. Its own
// registry entry is dropped unless it was pinned by AddKey or another
// identity trusts it.
func (a *Arbiter) DeleteUser(h domain.Handle) error {
	release, err := a.ready()
	if err != nil {
		return err
	}
	defer release()

	a.link.Lock()
	defer a.link.Unlock()

	v, err := a.ids.Get(h)
	if err != nil {
		return err
	}
	if err := a.identities.DeleteIdentity(v.ID); err != nil {
		return err
	}
	if _, err := a.ids.Delete(h); err != nil {
		return err
	}
	a.trust.RemoveOwner(v.ID)
	a.reg.RemoveLocal(v.Fingerprint, a.trust.Referenced)
	return a.saveTable()
}

// AddKey registers another user's public key under its fingerprint.
func (a *Arbiter) AddKey(publicKey []byte, fp domain.Fingerprint, label string) (domain.EntryID, error) {
	release, err := a.ready()
	if err != nil {
		return "", err
	}
	defer release()

	id, err := a.reg.Add(publicKey, fp, label)
	if err != nil {
		return "", err
	}
	if err := a.saveTable(); err != nil {
		return "", err
	}
	return id, nil
}

// RemoveKey drops a registry entry. It fails with domain.ErrFingerprintInUse
// while a trust edge references it or it belongs to a local identity.
func (a *Arbiter) RemoveKey(fp domain.Fingerprint) error {
	release, err := a.ready()
	if err != nil {
		return err
	}
	defer release()

	a.link.Lock()
	defer a.link.Unlock()

	if err := a.reg.Remove(fp, a.inUse); err != nil {
		return err
	}
	return a.saveTable()
}

func (a *Arbiter) inUse(fp domain.Fingerprint) bool {
	if a.trust.Referenced(fp) {
		return true
	}
	for _, h := range a.ids.Handles() {
		if v, err := a.ids.Get(h); err == nil && v.Fingerprint == fp {
			return true
		}
	}
	return false
}

// Keys lists the registry entries.
func (a *Arbiter) Keys() ([]domain.Entry, error) {
	release, err := a.ready()
	if err != nil {
		return nil, err
	}
	defer release()
	return a.reg.Entries(), nil
}

// AddTarget makes the identity behind h trust fp for verification.
func (a *Arbiter) AddTarget(h domain.Handle, fp domain.Fingerprint) error {
	release, err := a.ready()
	if err != nil {
		return err
	}
	defer release()

	a.link.Lock()
	defer a.link.Unlock()

	v, err := a.ids.Get(h)
	if err != nil {
		return err
	}
	if a.trust.IsTarget(v.ID, fp) {
		return nil
	}
	if err := a.trust.AddTarget(v.ID, fp); err != nil {
		return err
	}
	return a.saveTable()
}

// Targets returns the fingerprints the identity behind h trusts, in the
// order they were added.
func (a *Arbiter) Targets(h domain.Handle) ([]domain.Fingerprint, error) {
	release, err := a.ready()
	if err != nil {
		return nil, err
	}
	defer release()

	v, err := a.ids.Get(h)
	if err != nil {
		return nil, err
	}
	return a.trust.Targets(v.ID), nil
}

// Sign signs msg as the identity behind h and returns a PEM-armoured signature.
func (a *Arbiter) Sign(h domain.Handle, msg []byte) ([]byte, error) {
	release, err := a.ready()
	if err != nil {
		return nil, err
	}
	defer release()

	v, err := a.ids.Get(h)
	if err != nil {
		return nil, err
	}
	raw, err := a.ids.Sign(h, msg)
	if err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"signer":      v.DisplayName,
		"fingerprint": v.Fingerprint.Short(),
		"bytes":       len(msg),
	}).Debug("Signed message")
	return crypto.EncodeSignature(v.Algorithm, raw), nil
}

// Verify checks sig over msg as the identity behind verifier, against the
// key of the signer named by ref. The signer must be the verifier itself or
// one of its trust targets; otherwise domain.ErrUntrustedSigner is returned
// and no verification is attempted.
func (a *Arbiter) Verify(verifier domain.Handle, ref SignerRef, msg, sig []byte) (domain.VerifyOutcome, error) {
	release, err := a.ready()
	if err != nil {
		return domain.Bogus, err
	}
	defer release()

	v, err := a.ids.Get(verifier)
	if err != nil {
		return domain.Bogus, err
	}
	fp, err := a.resolveSigner(v, ref)
	if err != nil {
		a.log.WithFields(logrus.Fields{"verifier": v.DisplayName, "signer": ref}).Warn("Refused untrusted signer")
		return domain.Bogus, err
	}

	publicKey := v.PublicKey
	if fp != v.Fingerprint {
		e, ok := a.reg.Lookup(fp)
		if !ok {
			return domain.Bogus, fmt.Errorf("%w: %s", domain.ErrUnknownFingerprint, fp.Short())
		}
		publicKey = e.PublicKey
	}
	pub, err := crypto.ParsePublicKey(publicKey)
	if err != nil {
		return domain.Bogus, err
	}

	scheme, raw, err := crypto.DecodeSignature(sig)
	if err != nil {
		return domain.Bogus, err
	}
	outcome := domain.Bogus
	if scheme == crypto.Scheme(pub.Algorithm()) {
		ok, err := pub.Verify(msg, raw)
		if err != nil {
			return domain.Bogus, err
		}
		if ok {
			outcome = domain.Good
		}
	}
	a.log.WithFields(logrus.Fields{
		"verifier": v.DisplayName,
		"signer":   fp.Short(),
		"outcome":  outcome,
	}).Debug("Verified signature")
	return outcome, nil
}

// Close writes the table, wipes every private key and returns the Arbiter
// to the uninitialized state. Closing an uninitialized Arbiter is a no-op.
func (a *Arbiter) Close() error {
	a.state.Lock()
	defer a.state.Unlock()

	if a.dir == "" {
		return nil
	}
	err := a.saveTable()
	a.ids.Close()
	a.log.WithField("dir", a.dir).Info("Arbiter closed")

	a.dir = ""
	a.ids, a.reg, a.trust = nil, nil, nil
	a.identities, a.tables = nil, nil
	return err
}
