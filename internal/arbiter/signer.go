package arbiter

import (
	"fmt"
	"strconv"
	"strings"

	"arbiter/internal/domain"
)

type signerKind int

const (
	signerInvalid signerKind = iota
	signerSelf
	signerFingerprint
	signerTarget
)

// SignerRef names the identity a signature claims to come from, from the
// verifier's point of view. The zero SignerRef refers to nobody.
type SignerRef struct {
	kind  signerKind
	fp    domain.Fingerprint
	index int
}

// SelfSigner refers to the verifier itself.
func SelfSigner() SignerRef { return SignerRef{kind: signerSelf} }

// SignerFingerprint refers to the key with fingerprint fp.
func SignerFingerprint(fp domain.Fingerprint) SignerRef {
	return SignerRef{kind: signerFingerprint, fp: fp}
}

// SignerTarget refers to the verifier's index-th trust target, counting
// from zero in the order targets were added.
func SignerTarget(index int) SignerRef { return SignerRef{kind: signerTarget, index: index} }

// ParseSignerRef parses "self", "#<index>" or a hex fingerprint.
func ParseSignerRef(s string) (SignerRef, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.EqualFold(s, "self"):
		return SelfSigner(), nil
	case strings.HasPrefix(s, "#"):
		i, err := strconv.Atoi(s[1:])
		if err != nil || i < 0 {
			return SignerRef{}, fmt.Errorf("invalid target index %q", s)
		}
		return SignerTarget(i), nil
	}
	fp, err := domain.ParseFingerprint(s)
	if err != nil {
		return SignerRef{}, err
	}
	return SignerFingerprint(fp), nil
}

// String returns the form accepted by ParseSignerRef.
func (r SignerRef) String() string {
	switch r.kind {
	case signerSelf:
		return "self"
	case signerFingerprint:
		return r.fp.String()
	case signerTarget:
		return "#" + strconv.Itoa(r.index)
	}
	return "invalid"
}

// resolveSigner maps ref to a fingerprint the verifier trusts.
func (a *Arbiter) resolveSigner(verifier domain.Identity, ref SignerRef) (domain.Fingerprint, error) {
	switch ref.kind {
	case signerSelf:
		return verifier.Fingerprint, nil
	case signerFingerprint:
		if ref.fp == verifier.Fingerprint || a.trust.IsTarget(verifier.ID, ref.fp) {
			return ref.fp, nil
		}
	case signerTarget:
		if fp, ok := a.trust.Target(verifier.ID, ref.index); ok {
			return fp, nil
		}
	}
	return domain.Fingerprint{}, fmt.Errorf("%w: %s", domain.ErrUntrustedSigner, ref)
}
