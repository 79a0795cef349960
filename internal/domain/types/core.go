package types

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// FingerprintSize is the length of a fingerprint in bytes (SHA-256 output).
const FingerprintSize = 32

// Fingerprint is the SHA-256 digest of a public key's canonical encoding.
type Fingerprint [FingerprintSize]byte

// String returns the lowercase hex form of the fingerprint.
func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

// Short returns the first 10 bytes of the fingerprint in hex, for display and logs.
func (f Fingerprint) Short() string { return hex.EncodeToString(f[:10]) }

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool { return f == Fingerprint{} }

// Slice returns the fingerprint as a []byte.
func (f Fingerprint) Slice() []byte { return f[:] }

// MarshalText encodes the fingerprint as hex.
func (f Fingerprint) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

// UnmarshalText decodes a hex fingerprint.
func (f *Fingerprint) UnmarshalText(b []byte) error {
	fp, err := ParseFingerprint(string(b))
	if err != nil {
		return err
	}
	*f = fp
	return nil
}

// ParseFingerprint decodes a 64-character hex fingerprint. Colons and
// whitespace are ignored so fingerprints can be pasted in grouped form.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	clean := strings.Map(func(r rune) rune {
		if r == ':' || r == ' ' || r == '\t' || r == '\n' {
			return -1
		}
		return r
	}, s)
	if len(clean) != hex.EncodedLen(FingerprintSize) {
		return fp, fmt.Errorf("fingerprint: want %d hex chars, got %d", hex.EncodedLen(FingerprintSize), len(clean))
	}
	if _, err := hex.Decode(fp[:], []byte(strings.ToLower(clean))); err != nil {
		return fp, fmt.Errorf("fingerprint: %w", err)
	}
	return fp, nil
}

// Handle is an opaque reference to a locally managed identity. The low 32
// bits hold the arena slot (offset by one, so the zero Handle never refers to
// anything) and the high 32 bits the slot generation.
type Handle uint64

// NewHandle packs a slot index and generation into a Handle.
func NewHandle(slot int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(uint32(slot+1)))
}

// Slot returns the arena index, or -1 for the zero Handle.
func (h Handle) Slot() int { return int(uint32(h)) - 1 }

// Generation returns the slot generation the handle was issued for.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

// String returns a compact printable form.
func (h Handle) String() string {
	return "u" + strconv.Itoa(h.Slot()) + "." + strconv.FormatUint(uint64(h.Generation()), 10)
}

// EntryID identifies a fingerprint registry entry. It is the CIDv1 string of
// the entry's fingerprint multihash.
type EntryID string

// String returns the string form of the entry id.
func (id EntryID) String() string { return string(id) }

// Field names a readable attribute of an identity.
type Field string

const (
	FieldFingerprint Field = "fingerprint"
	FieldPublicKey   Field = "public_key"
	FieldDisplayName Field = "display_name"
	FieldAlgorithm   Field = "algorithm"
	FieldID          Field = "id"
)

// String returns the string form of the field.
func (f Field) String() string { return string(f) }

// VerifyOutcome is the result of a verification that ran to completion.
type VerifyOutcome int

const (
	// Bogus means the signature is well formed but does not match.
	Bogus VerifyOutcome = iota
	// Good means the signature matches the message and the trusted key.
	Good
)

// String returns "good" or "bogus".
func (o VerifyOutcome) String() string {
	if o == Good {
		return "good"
	}
	return "bogus"
}
