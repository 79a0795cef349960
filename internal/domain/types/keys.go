package types

import (
	"fmt"
	"strings"
)

// Algorithm names an asymmetric signature scheme.
type Algorithm string

const (
	AlgorithmRSA2048    Algorithm = "rsa2048"
	AlgorithmRSA4096    Algorithm = "rsa4096"
	AlgorithmEd25519    Algorithm = "ed25519"
	AlgorithmDilithium3 Algorithm = "dilithium3"
)

// Algorithms lists the supported schemes.
var Algorithms = []Algorithm{AlgorithmRSA2048, AlgorithmRSA4096, AlgorithmEd25519, AlgorithmDilithium3}

// String returns the string form of the algorithm.
func (a Algorithm) String() string { return string(a) }

// ParseAlgorithm accepts a scheme name case-insensitively. "rsa" is an alias
// for rsa2048.
func ParseAlgorithm(s string) (Algorithm, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "rsa" {
		return AlgorithmRSA2048, nil
	}
	for _, a := range Algorithms {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown algorithm %q", s)
}

// KDF names a passphrase key-derivation function.
type KDF string

const (
	KDFArgon2id KDF = "argon2id"
	KDFScrypt   KDF = "scrypt"
)

// KDFParams tunes the passphrase key derivation. For argon2id Time, MemoryKiB
// and Threads apply; for scrypt LogN, R and P apply.
type KDFParams struct {
	KDF       KDF    `json:"kdf" mapstructure:"kdf"`
	Time      uint32 `json:"time,omitempty" mapstructure:"time"`
	MemoryKiB uint32 `json:"memory_kib,omitempty" mapstructure:"memory_kib"`
	Threads   uint8  `json:"threads,omitempty" mapstructure:"threads"`
	LogN      uint8  `json:"log_n,omitempty" mapstructure:"log_n"`
	R         int    `json:"r,omitempty" mapstructure:"r"`
	P         int    `json:"p,omitempty" mapstructure:"p"`
}

// SealedKey is a private key encrypted under a passphrase-derived key.
type SealedKey struct {
	V      int       `json:"v"`
	Params KDFParams `json:"params"`
	Salt   []byte    `json:"salt"`
	Nonce  []byte    `json:"nonce"`
	Cipher []byte    `json:"cipher"`
}
