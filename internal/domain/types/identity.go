package types

import (
	"time"

	"github.com/google/uuid"
)

// Identity is a read-only view of a locally managed identity. It never
// carries private key material.
type Identity struct {
	Handle      Handle
	ID          uuid.UUID
	DisplayName string
	Algorithm   Algorithm
	Fingerprint Fingerprint
	PublicKey   []byte // PEM
	CreatedAt   time.Time
	Unlocked    bool
}

// IdentityRecord is the on-disk form of one identity.
type IdentityRecord struct {
	V           int       `json:"v"`
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Algorithm   Algorithm `json:"algorithm"`
	PublicKey   string    `json:"public_key"`  // PEM
	Fingerprint string    `json:"fingerprint"` // base58 multihash
	CreatedAt   time.Time `json:"created_at"`
	Sealed      SealedKey `json:"sealed"`
}
