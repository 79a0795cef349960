// Package registry maps fingerprints to other users' public keys.
//
// An entry is only accepted when the supplied fingerprint is the one derived
// from the key. Re-adding an identical key is a no-op; binding a fingerprint
// to a different key fails with domain.ErrConflict.
package registry
