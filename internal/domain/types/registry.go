package types

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a public key registered under its fingerprint.
type Entry struct {
	ID          EntryID
	Fingerprint Fingerprint
	PublicKey   []byte // PEM
	Label       string
	AddedAt     time.Time

	// Pinned is set when the key was added explicitly rather than only
	// self-registered by a local identity. Pinned entries outlive that identity.
	Pinned bool
}

// KnownKey is a public key handed to the arbiter at init time.
type KnownKey struct {
	Fingerprint Fingerprint
	PublicKey   []byte // PEM
	Label       string
}

// TrustEdges lists, in insertion order, the fingerprints one identity trusts
// as verification targets.
type TrustEdges struct {
	Owner   uuid.UUID
	Targets []Fingerprint
}

// EntryRecord is the on-disk form of a registry entry.
type EntryRecord struct {
	Fingerprint string    `json:"fingerprint"` // base58 multihash
	PublicKey   string    `json:"public_key"`  // PEM
	Label       string    `json:"label"`
	AddedAt     time.Time `json:"added_at"`
	Pinned      bool      `json:"pinned,omitempty"`
}

// EdgeRecord is the on-disk form of one owner's trust targets.
type EdgeRecord struct {
	Owner   uuid.UUID `json:"owner"`
	Targets []string  `json:"targets"` // base58 multihashes
}

// Table is the single persisted table holding registry entries and trust
// edges.
type Table struct {
	V       int           `json:"v"`
	Entries []EntryRecord `json:"entries"`
	Edges   []EdgeRecord  `json:"edges"`
}
