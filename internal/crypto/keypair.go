package crypto

import (
	"crypto"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/cloudflare/circl/sign/dilithium/mode3"

	"arbiter/internal/domain"
)

const (
	pemTypePublic           = "PUBLIC KEY"
	pemTypeDilithium3Public = "DILITHIUM3 PUBLIC KEY"
)

var pssOptions = &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash, Hash: crypto.SHA256}

// KeyPair owns the key material of one identity. The private half is wiped
// by Destroy; after that Sign fails with domain.ErrLockedKey.
type KeyPair struct {
	mu        sync.RWMutex
	alg       domain.Algorithm
	public    *PublicKey
	rsa       *rsa.PrivateKey
	ed        ed25519.PrivateKey
	dil       *mode3.PrivateKey
	destroyed bool
}

// Generate creates a fresh key pair for alg, reading entropy from random
// (crypto/rand when nil).
func Generate(alg domain.Algorithm, random io.Reader) (*KeyPair, error) {
	if random == nil {
		random = rand.Reader
	}
	kp := &KeyPair{alg: alg}
	var pub any
	switch alg {
	case domain.AlgorithmRSA2048, domain.AlgorithmRSA4096:
		bits := 2048
		if alg == domain.AlgorithmRSA4096 {
			bits = 4096
		}
		k, err := rsa.GenerateKey(random, bits)
		if err != nil {
			return nil, fmt.Errorf("%w: rsa: %v", domain.ErrKeyGen, err)
		}
		kp.rsa, pub = k, &k.PublicKey
	case domain.AlgorithmEd25519:
		pk, sk, err := ed25519.GenerateKey(random)
		if err != nil {
			return nil, fmt.Errorf("%w: ed25519: %v", domain.ErrKeyGen, err)
		}
		kp.ed, pub = sk, pk
	case domain.AlgorithmDilithium3:
		pk, sk, err := mode3.GenerateKey(random)
		if err != nil {
			return nil, fmt.Errorf("%w: dilithium3: %v", domain.ErrKeyGen, err)
		}
		kp.dil, pub = sk, pk
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", domain.ErrKeyGen, alg)
	}
	p, err := newPublicKey(pub)
	if err != nil {
		kp.Destroy()
		return nil, fmt.Errorf("%w: %v", domain.ErrKeyGen, err)
	}
	kp.public = p
	runtime.SetFinalizer(kp, (*KeyPair).Destroy)
	return kp, nil
}

// Algorithm returns the key pair's scheme.
func (kp *KeyPair) Algorithm() domain.Algorithm { return kp.alg }

// PublicKey returns the canonical PEM encoding of the public half.
func (kp *KeyPair) PublicKey() []byte { return kp.public.PEM() }

// Fingerprint returns the fingerprint of the public half.
func (kp *KeyPair) Fingerprint() domain.Fingerprint { return kp.public.Fingerprint() }

// Sign signs msg with the private key and returns the raw signature.
func (kp *KeyPair) Sign(msg []byte) ([]byte, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.destroyed {
		return nil, domain.ErrLockedKey
	}
	switch {
	case kp.rsa != nil:
		digest := sha256.Sum256(msg)
		return rsa.SignPSS(rand.Reader, kp.rsa, crypto.SHA256, digest[:], pssOptions)
	case kp.ed != nil:
		return ed25519.Sign(kp.ed, msg), nil
	case kp.dil != nil:
		sig := make([]byte, mode3.SignatureSize)
		mode3.SignTo(kp.dil, msg, sig)
		return sig, nil
	}
	return nil, domain.ErrLockedKey
}

// Destroy wipes the private key. It is safe to call more than once and waits
// for in-flight signatures to finish.
func (kp *KeyPair) Destroy() {
	kp.mu.Lock()
	defer kp.mu.Unlock()
	if kp.destroyed {
		return
	}
	kp.destroyed = true
	if kp.rsa != nil {
		wipeRSA(kp.rsa)
		kp.rsa = nil
	}
	if kp.ed != nil {
		Wipe(kp.ed)
		kp.ed = nil
	}
	if kp.dil != nil {
		*kp.dil = mode3.PrivateKey{}
		kp.dil = nil
	}
	runtime.SetFinalizer(kp, nil)
}

// Destroyed reports whether the private key has been wiped.
func (kp *KeyPair) Destroyed() bool {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.destroyed
}

// marshalPrivate encodes the private key for sealing. The caller wipes the result.
func (kp *KeyPair) marshalPrivate() ([]byte, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	if kp.destroyed {
		return nil, domain.ErrLockedKey
	}
	switch {
	case kp.rsa != nil:
		return x509.MarshalPKCS8PrivateKey(kp.rsa)
	case kp.ed != nil:
		return x509.MarshalPKCS8PrivateKey(kp.ed)
	case kp.dil != nil:
		return kp.dil.MarshalBinary()
	}
	return nil, domain.ErrLockedKey
}

// unmarshalPrivate rebuilds a key pair from a sealed private encoding.
func unmarshalPrivate(alg domain.Algorithm, raw []byte) (*KeyPair, error) {
	kp := &KeyPair{alg: alg}
	var pub any
	switch alg {
	case domain.AlgorithmRSA2048, domain.AlgorithmRSA4096, domain.AlgorithmEd25519:
		k, err := x509.ParsePKCS8PrivateKey(raw)
		if err != nil {
			return nil, err
		}
		switch k := k.(type) {
		case *rsa.PrivateKey:
			if alg == domain.AlgorithmEd25519 {
				return nil, fmt.Errorf("sealed key is rsa, record says %s", alg)
			}
			kp.rsa, pub = k, &k.PublicKey
		case ed25519.PrivateKey:
			if alg != domain.AlgorithmEd25519 {
				return nil, fmt.Errorf("sealed key is ed25519, record says %s", alg)
			}
			kp.ed, pub = k, k.Public()
		default:
			return nil, fmt.Errorf("unsupported sealed key type %T", k)
		}
	case domain.AlgorithmDilithium3:
		var sk mode3.PrivateKey
		if err := sk.UnmarshalBinary(raw); err != nil {
			return nil, err
		}
		kp.dil, pub = &sk, sk.Public()
	default:
		return nil, fmt.Errorf("unsupported algorithm %q", alg)
	}
	p, err := newPublicKey(pub)
	if err != nil {
		kp.Destroy()
		return nil, err
	}
	kp.public = p
	runtime.SetFinalizer(kp, (*KeyPair).Destroy)
	return kp, nil
}

// encodePublic returns the PEM block for a public key value.
func encodePublic(pub any) (*pem.Block, error) {
	switch pub := pub.(type) {
	case *mode3.PublicKey:
		b, err := pub.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return &pem.Block{Type: pemTypeDilithium3Public, Bytes: b}, nil
	default:
		der, err := x509.MarshalPKIXPublicKey(pub)
		if err != nil {
			return nil, err
		}
		return &pem.Block{Type: pemTypePublic, Bytes: der}, nil
	}
}
