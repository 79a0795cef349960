package crypto

import (
	"bytes"
	"encoding/pem"
	"fmt"

	"arbiter/internal/domain"
)

const (
	// SignaturePEMBlockType is the PEM block type of an armoured signature.
	SignaturePEMBlockType = "SIGNATURE"
	// SignaturePEMBlockAlgorithmHeader records the scheme of the signature.
	SignaturePEMBlockAlgorithmHeader = "Signature Algorithm"
)

// Scheme returns the signature scheme name written into armour for alg.
// Both RSA sizes share one scheme.
func Scheme(alg domain.Algorithm) string {
	switch alg {
	case domain.AlgorithmRSA2048, domain.AlgorithmRSA4096:
		return "RSASSA-PSS-SHA256"
	case domain.AlgorithmEd25519:
		return "Ed25519"
	case domain.AlgorithmDilithium3:
		return "Dilithium3"
	}
	return ""
}

// EncodeSignature wraps a raw signature into a SIGNATURE PEM block.
func EncodeSignature(alg domain.Algorithm, raw []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:    SignaturePEMBlockType,
		Headers: map[string]string{SignaturePEMBlockAlgorithmHeader: Scheme(alg)},
		Bytes:   raw,
	})
}

// knownSchemes lists every scheme name Scheme can return.
var knownSchemes = map[string]struct{}{
	Scheme(domain.AlgorithmRSA2048):    {},
	Scheme(domain.AlgorithmEd25519):    {},
	Scheme(domain.AlgorithmDilithium3): {},
}

// DecodeSignature unwraps an armoured signature, returning its scheme name
// and raw bytes. Input that is not exactly one SIGNATURE block carrying a
// known scheme header fails with domain.ErrMalformedSignature.
func DecodeSignature(armored []byte) (string, []byte, error) {
	block, rest := pem.Decode(bytes.TrimSpace(armored))
	if block == nil {
		return "", nil, fmt.Errorf("%w: no PEM block", domain.ErrMalformedSignature)
	}
	if block.Type != SignaturePEMBlockType {
		return "", nil, fmt.Errorf("%w: unexpected PEM type %q", domain.ErrMalformedSignature, block.Type)
	}
	if len(bytes.TrimSpace(rest)) != 0 {
		return "", nil, fmt.Errorf("%w: trailing data after signature", domain.ErrMalformedSignature)
	}
	if len(block.Bytes) == 0 {
		return "", nil, fmt.Errorf("%w: empty signature", domain.ErrMalformedSignature)
	}
	scheme, ok := block.Headers[SignaturePEMBlockAlgorithmHeader]
	if !ok {
		return "", nil, fmt.Errorf("%w: missing %s header", domain.ErrMalformedSignature, SignaturePEMBlockAlgorithmHeader)
	}
	if _, known := knownSchemes[scheme]; !known {
		return "", nil, fmt.Errorf("%w: unknown scheme %q", domain.ErrMalformedSignature, scheme)
	}
	return scheme, block.Bytes, nil
}
