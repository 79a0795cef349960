// Package store provides file-based persistence for the arbiter.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON under the configured directory. All methods are
// concurrency-safe via internal locking and every write is atomic
// (temp file, fsync, rename).
//
// Layout:
//   - identities/<uuid>.json  one record per identity, private key sealed (IdentityFileStore)
//   - table.json              fingerprint registry entries and trust edges (TableFileStore)
//
// Failures are wrapped with domain.ErrIO.
package store
