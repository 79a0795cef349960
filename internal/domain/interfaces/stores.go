package interfaces

import (
	"github.com/google/uuid"

	domaintypes "arbiter/internal/domain/types"
)

// IdentityStore persists one record per local identity.
type IdentityStore interface {
	SaveIdentity(rec domaintypes.IdentityRecord) error
	LoadIdentities() ([]domaintypes.IdentityRecord, error)
	DeleteIdentity(id uuid.UUID) error
}

// TableStore persists the fingerprint registry and the trust edges as one table.
type TableStore interface {
	SaveTable(t domaintypes.Table) error
	LoadTable() (domaintypes.Table, bool, error)
}
