package arbiter

import (
	"io"

	"github.com/sirupsen/logrus"

	"arbiter/internal/domain"
	"arbiter/internal/services/identity"
)

// Option configures an Arbiter.
type Option func(*Arbiter)

// WithLogger sets the logger used by the arbiter and its services.
func WithLogger(l *logrus.Entry) Option {
	return func(a *Arbiter) { a.log = l }
}

// WithKDFParams sets the key-derivation parameters used to seal new keys.
func WithKDFParams(p domain.KDFParams) Option {
	return func(a *Arbiter) { a.identityOpts = append(a.identityOpts, identity.WithKDFParams(p)) }
}

// WithStrictPassphrase enables the strong passphrase policy for new identities.
func WithStrictPassphrase(strict bool) Option {
	return func(a *Arbiter) { a.identityOpts = append(a.identityOpts, identity.WithStrictPassphrase(strict)) }
}

// WithRandom sets the entropy source for key generation and sealing.
func WithRandom(r io.Reader) Option {
	return func(a *Arbiter) { a.identityOpts = append(a.identityOpts, identity.WithRandom(r)) }
}
