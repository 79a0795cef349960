package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"arbiter/internal/domain"
	"arbiter/internal/util/memzero"
)

const (
	// sealFormatVersion is the current version of the sealed key format.
	sealFormatVersion = 1

	KeyBytes  = chacha20poly1305.KeySize
	SaltBytes = 16

	maxArgonMemoryKiB = 4 << 20
	maxScryptLogN     = 22
)

// DefaultKDFParams returns the Argon2id parameters used for new keys.
func DefaultKDFParams() domain.KDFParams {
	return domain.KDFParams{KDF: domain.KDFArgon2id, Time: 1, MemoryKiB: 64 * 1024, Threads: 4}
}

// DefaultScryptParams returns the scrypt parameters used when scrypt is selected.
func DefaultScryptParams() domain.KDFParams {
	return domain.KDFParams{KDF: domain.KDFScrypt, LogN: 15, R: 8, P: 1}
}

// deriveKEK derives a key-encryption key from a passphrase and salt.
func deriveKEK(passphrase string, salt []byte, p domain.KDFParams) ([]byte, error) {
	if err := validateKDF(p); err != nil {
		return nil, err
	}
	pass := []byte(passphrase)
	defer memzero.Zero(pass)
	switch p.KDF {
	case domain.KDFArgon2id:
		return argon2.IDKey(pass, salt, p.Time, p.MemoryKiB, p.Threads, KeyBytes), nil
	case domain.KDFScrypt:
		return scrypt.Key(pass, salt, 1<<p.LogN, p.R, p.P, KeyBytes)
	}
	return nil, fmt.Errorf("unsupported kdf %q", p.KDF)
}

func validateKDF(p domain.KDFParams) error {
	switch p.KDF {
	case domain.KDFArgon2id:
		if p.Time == 0 || p.Threads == 0 || p.MemoryKiB < 8*uint32(p.Threads) || p.MemoryKiB > maxArgonMemoryKiB {
			return fmt.Errorf("invalid argon2id parameters t=%d m=%d p=%d", p.Time, p.MemoryKiB, p.Threads)
		}
	case domain.KDFScrypt:
		if p.LogN < 1 || p.LogN > maxScryptLogN || p.R <= 0 || p.P <= 0 {
			return fmt.Errorf("invalid scrypt parameters logN=%d r=%d p=%d", p.LogN, p.R, p.P)
		}
	default:
		return fmt.Errorf("unsupported kdf %q", p.KDF)
	}
	return nil
}

// Seal encrypts the private half of kp under a key derived from passphrase.
// The algorithm and fingerprint are bound as associated data.
func Seal(kp *KeyPair, passphrase string, params domain.KDFParams, random io.Reader) (domain.SealedKey, error) {
	if random == nil {
		random = rand.Reader
	}
	raw, err := kp.marshalPrivate()
	if err != nil {
		return domain.SealedKey{}, err
	}
	defer memzero.Zero(raw)

	salt := make([]byte, SaltBytes)
	if _, err := io.ReadFull(random, salt); err != nil {
		return domain.SealedKey{}, err
	}
	kek, err := deriveKEK(passphrase, salt, params)
	if err != nil {
		return domain.SealedKey{}, err
	}
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return domain.SealedKey{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(random, nonce); err != nil {
		return domain.SealedKey{}, err
	}
	return domain.SealedKey{
		V:      sealFormatVersion,
		Params: params,
		Salt:   salt,
		Nonce:  nonce,
		Cipher: aead.Seal(nil, nonce, raw, associatedData(kp.alg, kp.Fingerprint())),
	}, nil
}

// Open decrypts a sealed key. A wrong passphrase, tampering, or a key whose
// fingerprint is not fp fails with domain.ErrBadPassphrase.
func Open(sealed domain.SealedKey, passphrase string, alg domain.Algorithm, fp domain.Fingerprint) (*KeyPair, error) {
	if sealed.V > sealFormatVersion {
		return nil, fmt.Errorf("unsupported sealed key version %d", sealed.V)
	}
	if len(sealed.Salt) != SaltBytes {
		return nil, errors.New("invalid salt size")
	}
	kek, err := deriveKEK(passphrase, sealed.Salt, sealed.Params)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(kek)

	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	if len(sealed.Nonce) != aead.NonceSize() {
		return nil, errors.New("invalid nonce size")
	}
	raw, err := aead.Open(nil, sealed.Nonce, sealed.Cipher, associatedData(alg, fp))
	if err != nil {
		return nil, domain.ErrBadPassphrase
	}
	defer memzero.Zero(raw)

	kp, err := unmarshalPrivate(alg, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBadPassphrase, err)
	}
	if kp.Fingerprint() != fp {
		kp.Destroy()
		return nil, fmt.Errorf("%w: key does not match fingerprint", domain.ErrBadPassphrase)
	}
	return kp, nil
}

func associatedData(alg domain.Algorithm, fp domain.Fingerprint) []byte {
	return append([]byte(alg+":"), fp[:]...)
}
