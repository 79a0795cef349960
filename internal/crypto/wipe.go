package crypto

import (
	"crypto/rsa"
	"math/big"

	"arbiter/internal/util/memzero"
)

// Wipe zeroes b.
func Wipe(b []byte) { memzero.Zero(b) }

func wipeRSA(k *rsa.PrivateKey) {
	wipeInt(k.D)
	for _, p := range k.Primes {
		wipeInt(p)
	}
	wipeInt(k.Precomputed.Dp)
	wipeInt(k.Precomputed.Dq)
	wipeInt(k.Precomputed.Qinv)
}

func wipeInt(n *big.Int) {
	if n == nil {
		return
	}
	words := n.Bits()
	for i := range words {
		words[i] = 0
	}
	n.SetInt64(0)
}
