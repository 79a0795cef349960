package crypto

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"arbiter/internal/domain"
)

// EncodeFingerprint returns the base58 sha2-256 multihash of fp, the form
// fingerprints take on disk.
func EncodeFingerprint(fp domain.Fingerprint) string {
	return fingerprintMultihash(fp).B58String()
}

// DecodeFingerprint parses the on-disk form written by EncodeFingerprint.
// Any multihash other than a 32-byte sha2-256 digest is rejected.
func DecodeFingerprint(s string) (domain.Fingerprint, error) {
	var fp domain.Fingerprint
	mh, err := multihash.FromB58String(s)
	if err != nil {
		return fp, fmt.Errorf("fingerprint multihash: %w", err)
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		return fp, fmt.Errorf("fingerprint multihash: %w", err)
	}
	if dec.Code != multihash.SHA2_256 || dec.Length != domain.FingerprintSize {
		return fp, fmt.Errorf("fingerprint multihash: want sha2-256/%d, got %s/%d", domain.FingerprintSize, dec.Name, dec.Length)
	}
	copy(fp[:], dec.Digest)
	return fp, nil
}

// EntryIDOf returns the registry entry id for fp: the CIDv1 (raw codec) of
// its multihash.
func EntryIDOf(fp domain.Fingerprint) domain.EntryID {
	return domain.EntryID(cid.NewCidV1(cid.Raw, fingerprintMultihash(fp)).String())
}

func fingerprintMultihash(fp domain.Fingerprint) multihash.Multihash {
	// Encode only fails for unknown codes.
	mh, _ := multihash.Encode(fp[:], multihash.SHA2_256)
	return mh
}
