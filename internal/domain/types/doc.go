// Package types holds the plain data types of the arbiter: handles,
// fingerprints, identities, registry entries, trust edges and the records
// written to disk.
package types
