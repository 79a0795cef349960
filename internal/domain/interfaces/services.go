package interfaces

import (
	"github.com/google/uuid"

	domaintypes "arbiter/internal/domain/types"
)

// KeyLookup resolves a fingerprint to its registered entry.
type KeyLookup interface {
	Lookup(fp domaintypes.Fingerprint) (domaintypes.Entry, bool)
}

// IdentityService owns the locally created identities and their key pairs.
type IdentityService interface {
	Create(displayName, passphrase string, alg domaintypes.Algorithm) (domaintypes.Identity, error)
	Get(h domaintypes.Handle) (domaintypes.Identity, error)
	Info(h domaintypes.Handle, field domaintypes.Field) ([]byte, error)
	ByName(displayName string) (domaintypes.Handle, error)
	Handles() []domaintypes.Handle
	Sign(h domaintypes.Handle, msg []byte) ([]byte, error)
	Unlock(h domaintypes.Handle, passphrase string) error
	Lock(h domaintypes.Handle) error
	Delete(h domaintypes.Handle) (domaintypes.Identity, error)
	Record(h domaintypes.Handle) (domaintypes.IdentityRecord, error)
	Restore(recs []domaintypes.IdentityRecord) error
	Close()
}

// RegistryService maps fingerprints to other users' public keys.
type RegistryService interface {
	KeyLookup
	Add(publicKey []byte, fp domaintypes.Fingerprint, label string) (domaintypes.EntryID, error)
	AddLocal(publicKey []byte, fp domaintypes.Fingerprint, label string) (domaintypes.EntryID, error)
	Remove(fp domaintypes.Fingerprint, referenced func(domaintypes.Fingerprint) bool) error
	RemoveLocal(fp domaintypes.Fingerprint, referenced func(domaintypes.Fingerprint) bool) bool
	Entries() []domaintypes.Entry
	Len() int
	Restore(entries []domaintypes.Entry) error
}

// TrustService records which fingerprints each identity trusts.
type TrustService interface {
	AddTarget(owner uuid.UUID, fp domaintypes.Fingerprint) error
	IsTarget(owner uuid.UUID, fp domaintypes.Fingerprint) bool
	Target(owner uuid.UUID, index int) (domaintypes.Fingerprint, bool)
	Targets(owner uuid.UUID) []domaintypes.Fingerprint
	Referenced(fp domaintypes.Fingerprint) bool
	RemoveOwner(owner uuid.UUID)
	Edges() []domaintypes.TrustEdges
	Restore(edges []domaintypes.TrustEdges) error
}
