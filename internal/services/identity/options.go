package identity

import (
	"io"

	"github.com/sirupsen/logrus"

	"arbiter/internal/domain"
)

// Option configures a Service.
type Option func(*Service)

// WithKDFParams sets the passphrase key-derivation parameters for new keys.
func WithKDFParams(p domain.KDFParams) Option {
	return func(s *Service) { s.kdf = p }
}

// WithStrictPassphrase enables the strong passphrase policy.
func WithStrictPassphrase(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithRandom sets the entropy source for key generation and sealing.
func WithRandom(r io.Reader) Option {
	return func(s *Service) { s.random = r }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Service) { s.log = l }
}
