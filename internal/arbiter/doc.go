// Package arbiter composes identities, the fingerprint registry and the
// trust graph into one context object.
//
// An Arbiter starts uninitialized. Init opens a configuration directory and
// restores what was persisted there; every other operation fails with
// domain.ErrNotInitialized until it has run. Close flushes state, wipes
// private keys and returns the Arbiter to the uninitialized state.
//
// Verification fails closed: a signer is only checked when it is the
// verifier itself or one of the verifier's trust targets. Any other claimed
// signer yields domain.ErrUntrustedSigner without touching the signature.
//
// All methods are safe for concurrent use. Cryptographic work runs outside
// the service locks.
package arbiter
