package domain

import (
	interfaces "arbiter/internal/domain/interfaces"
	types "arbiter/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Fingerprint    = types.Fingerprint
	Handle         = types.Handle
	EntryID        = types.EntryID
	Field          = types.Field
	VerifyOutcome  = types.VerifyOutcome
	Algorithm      = types.Algorithm
	KDF            = types.KDF
	KDFParams      = types.KDFParams
	SealedKey      = types.SealedKey
	Identity       = types.Identity
	IdentityRecord = types.IdentityRecord
	Entry          = types.Entry
	KnownKey       = types.KnownKey
	TrustEdges     = types.TrustEdges
	EntryRecord    = types.EntryRecord
	EdgeRecord     = types.EdgeRecord
	Table          = types.Table
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	IdentityStore   = interfaces.IdentityStore
	TableStore      = interfaces.TableStore
	KeyLookup       = interfaces.KeyLookup
	IdentityService = interfaces.IdentityService
	RegistryService = interfaces.RegistryService
	TrustService    = interfaces.TrustService
)

const (
	FingerprintSize = types.FingerprintSize

	FieldFingerprint = types.FieldFingerprint
	FieldPublicKey   = types.FieldPublicKey
	FieldDisplayName = types.FieldDisplayName
	FieldAlgorithm   = types.FieldAlgorithm
	FieldID          = types.FieldID

	Good  = types.Good
	Bogus = types.Bogus

	AlgorithmRSA2048    = types.AlgorithmRSA2048
	AlgorithmRSA4096    = types.AlgorithmRSA4096
	AlgorithmEd25519    = types.AlgorithmEd25519
	AlgorithmDilithium3 = types.AlgorithmDilithium3

	KDFArgon2id = types.KDFArgon2id
	KDFScrypt   = types.KDFScrypt
)

var (
	ParseFingerprint = types.ParseFingerprint
	ParseAlgorithm   = types.ParseAlgorithm
	NewHandle        = types.NewHandle
)
