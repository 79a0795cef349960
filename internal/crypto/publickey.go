package crypto

import (
	"bytes"
	"crypto"
	"crypto/ed25519"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"arbiter/internal/domain"
)

// PublicKey is a parsed public key together with its canonical PEM encoding.
type PublicKey struct {
	alg       domain.Algorithm
	key       any
	canonical []byte
	fp        domain.Fingerprint
}

// ParsePublicKey decodes a PEM public key. Surrounding whitespace and PEM
// headers are ignored; anything that is not exactly one supported public key
// block fails with domain.ErrMalformedKey.
func ParsePublicKey(data []byte) (*PublicKey, error) {
	block, rest := pem.Decode(bytes.TrimSpace(data))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", domain.ErrMalformedKey)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return nil, fmt.Errorf("%w: trailing data after PEM block", domain.ErrMalformedKey)
	}
	var key any
	switch block.Type {
	case pemTypePublic:
		k, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedKey, err)
		}
		key = k
	case pemTypeDilithium3Public:
		var k mode3.PublicKey
		if err := k.UnmarshalBinary(block.Bytes); err != nil {
			return nil, fmt.Errorf("%w: dilithium3: %v", domain.ErrMalformedKey, err)
		}
		key = &k
	default:
		return nil, fmt.Errorf("%w: unsupported PEM type %q", domain.ErrMalformedKey, block.Type)
	}
	p, err := newPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedKey, err)
	}
	return p, nil
}

func newPublicKey(key any) (*PublicKey, error) {
	var alg domain.Algorithm
	switch k := key.(type) {
	case *rsa.PublicKey:
		switch k.N.BitLen() {
		case 2048:
			alg = domain.AlgorithmRSA2048
		case 4096:
			alg = domain.AlgorithmRSA4096
		default:
			return nil, fmt.Errorf("unsupported rsa modulus size %d", k.N.BitLen())
		}
	case ed25519.PublicKey:
		alg = domain.AlgorithmEd25519
	case *mode3.PublicKey:
		alg = domain.AlgorithmDilithium3
	default:
		return nil, fmt.Errorf("unsupported public key type %T", key)
	}
	block, err := encodePublic(key)
	if err != nil {
		return nil, err
	}
	canonical := pem.EncodeToMemory(block)
	return &PublicKey{
		alg:       alg,
		key:       key,
		canonical: canonical,
		fp:        sha256.Sum256(canonical),
	}, nil
}

// Algorithm returns the key's scheme.
func (p *PublicKey) Algorithm() domain.Algorithm { return p.alg }

// PEM returns a copy of the canonical PEM encoding.
func (p *PublicKey) PEM() []byte { return append([]byte(nil), p.canonical...) }

// Fingerprint returns the SHA-256 of the canonical PEM encoding.
func (p *PublicKey) Fingerprint() domain.Fingerprint { return p.fp }

// FingerprintOf returns the fingerprint of a PEM public key. Two encodings of
// the same key (different line endings, headers, surrounding whitespace)
// yield the same fingerprint.
func FingerprintOf(publicKey []byte) (domain.Fingerprint, error) {
	p, err := ParsePublicKey(publicKey)
	if err != nil {
		return domain.Fingerprint{}, err
	}
	return p.fp, nil
}

// Verify checks a raw signature over msg against a PEM public key. It returns
// false with a nil error for a well-formed signature that does not match.
func Verify(msg, sig, publicKey []byte) (bool, error) {
	p, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	return p.Verify(msg, sig)
}

// Verify checks a raw signature over msg.
func (p *PublicKey) Verify(msg, sig []byte) (bool, error) {
	if err := p.checkSignature(sig); err != nil {
		return false, err
	}
	switch k := p.key.(type) {
	case *rsa.PublicKey:
		digest := sha256.Sum256(msg)
		err := rsa.VerifyPSS(k, crypto.SHA256, digest[:], sig, pssOptions)
		if errors.Is(err, rsa.ErrVerification) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrMalformedSignature, err)
		}
		return true, nil
	case ed25519.PublicKey:
		return ed25519.Verify(k, msg, sig), nil
	case *mode3.PublicKey:
		return mode3.Verify(k, msg, sig), nil
	}
	return false, fmt.Errorf("%w: unsupported key", domain.ErrMalformedKey)
}

func (p *PublicKey) checkSignature(sig []byte) error {
	want := 0
	switch k := p.key.(type) {
	case *rsa.PublicKey:
		want = k.Size()
	case ed25519.PublicKey:
		want = ed25519.SignatureSize
	case *mode3.PublicKey:
		want = mode3.SignatureSize
	}
	if len(sig) != want {
		return fmt.Errorf("%w: %s signature must be %d bytes, got %d", domain.ErrMalformedSignature, p.alg, want, len(sig))
	}
	return nil
}
