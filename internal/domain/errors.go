package domain

import "errors"

// Errors returned by the arbiter and its services. Callers match them with
// errors.Is; returned errors usually wrap one of these with context.
var (
	// ErrNotInitialized is returned by every operation before Init.
	ErrNotInitialized = errors.New("arbiter not initialized")
	// ErrReinitConflict is returned by Init when already initialized on another directory.
	ErrReinitConflict = errors.New("arbiter already initialized with a different directory")
	// ErrIO wraps storage failures. They are surfaced, never retried.
	ErrIO = errors.New("storage i/o failure")

	ErrDuplicateName      = errors.New("display name already in use")
	ErrInvalidName        = errors.New("invalid display name")
	ErrUnknownIdentity    = errors.New("unknown identity")
	ErrUnknownField       = errors.New("unknown identity field")
	ErrUnknownFingerprint = errors.New("unknown fingerprint")
	ErrInvalidLabel       = errors.New("invalid label")

	// ErrConflict is returned when a fingerprint is already bound to a
	// different key, or does not match the key it is supplied with.
	ErrConflict = errors.New("fingerprint conflict")
	// ErrFingerprintInUse is returned when removing a registry entry that a
	// trust edge still references.
	ErrFingerprintInUse = errors.New("fingerprint referenced by a trust edge")

	ErrKeyGen         = errors.New("key generation failed")
	ErrLockedKey      = errors.New("private key is locked")
	ErrBadPassphrase  = errors.New("wrong passphrase or corrupted key")
	ErrWeakPassphrase = errors.New("passphrase does not meet policy")
	ErrMalformedKey   = errors.New("malformed public key")

	ErrMalformedSignature = errors.New("malformed signature")
	// ErrUntrustedSigner is returned when the claimed signer is neither the
	// verifier itself nor one of its targets. No verification is attempted.
	ErrUntrustedSigner = errors.New("signer is not a trusted target")
)
