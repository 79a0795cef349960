// Package trust records, per local identity, the fingerprints it accepts
// signatures from.
//
// Targets are kept in insertion order so callers can refer to them by index.
// A target must already be in the fingerprint registry. Trust is not
// transitive.
package trust
