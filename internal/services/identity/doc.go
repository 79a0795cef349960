// Package identity owns the locally created identities and their key pairs.
//
// Identities live in a generation-checked arena: a Handle names a slot and
// the generation it was issued for, so a handle to a deleted identity never
// resolves to whatever reuses its slot. Every identity carries its private
// key sealed under its passphrase; an unlocked identity additionally holds
// the live key pair, which is wiped on Lock, Delete and Close.
//
// Passphrase policy is configurable: by default any non-empty passphrase is
// accepted, the strict policy requires a long mixed-class passphrase.
package identity
