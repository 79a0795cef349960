package app

import (
	"fmt"
	"os"
	"path/filepath"

	"arbiter/internal/crypto"
	"arbiter/internal/domain"
	"arbiter/internal/util/logging"
)

// Config holds runtime wiring options for building the app. Field tags match
// the CLI flag names so viper can fill it from flags, environment and an
// optional arbiter.{toml,yaml,json} in Home.
type Config struct {
	Home             string `mapstructure:"home"`      // config directory, e.g. $HOME/.arbiter
	LogLevel         string `mapstructure:"log"`       // debug, info, warn, error
	Algorithm        string `mapstructure:"algorithm"` // default scheme for new identities
	KDF              string `mapstructure:"kdf"`       // argon2id or scrypt
	StrictPassphrase bool   `mapstructure:"strict"`
	KnownKeys        string `mapstructure:"known-keys"` // optional JSON file of keys to register at init
}

// DefaultHome returns $HOME/.arbiter, or .arbiter when the home directory is unknown.
func DefaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".arbiter"
	}
	return filepath.Join(dir, ".arbiter")
}

// NewDefaultConfig returns a Config with every default set.
func NewDefaultConfig() *Config {
	return &Config{
		Home:      DefaultHome(),
		LogLevel:  logging.DefaultLevel,
		Algorithm: string(domain.AlgorithmEd25519),
		KDF:       string(domain.KDFArgon2id),
	}
}

// DefaultAlgorithm parses the configured algorithm.
func (c *Config) DefaultAlgorithm() (domain.Algorithm, error) {
	return domain.ParseAlgorithm(c.Algorithm)
}

// KDFParams returns the sealing parameters for the configured KDF.
func (c *Config) KDFParams() (domain.KDFParams, error) {
	switch domain.KDF(c.KDF) {
	case "", domain.KDFArgon2id:
		return crypto.DefaultKDFParams(), nil
	case domain.KDFScrypt:
		return crypto.DefaultScryptParams(), nil
	}
	return domain.KDFParams{}, fmt.Errorf("unknown kdf %q (want argon2id or scrypt)", c.KDF)
}
