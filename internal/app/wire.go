package app

import (
	"io"

	"github.com/sirupsen/logrus"

	"arbiter/internal/arbiter"
	"arbiter/internal/domain"
	"arbiter/internal/util/logging"
)

// Wire bundles the logger and the initialized arbiter for the CLI.
type Wire struct {
	Config    *Config
	Log       *logrus.Entry
	Arbiter   *arbiter.Arbiter
	Algorithm domain.Algorithm
}

// NewWire builds the logger and arbiter from cfg and initializes the arbiter
// on cfg.Home. Logs go to logOut.
func NewWire(cfg *Config, logOut io.Writer) (*Wire, error) {
	log := logging.New(cfg.LogLevel, logOut)

	alg, err := cfg.DefaultAlgorithm()
	if err != nil {
		return nil, err
	}
	kdf, err := cfg.KDFParams()
	if err != nil {
		return nil, err
	}
	known, err := LoadKnownKeys(cfg.KnownKeys)
	if err != nil {
		return nil, err
	}

	a := arbiter.New(
		arbiter.WithLogger(log),
		arbiter.WithKDFParams(kdf),
		arbiter.WithStrictPassphrase(cfg.StrictPassphrase),
	)
	if err := a.Init(cfg.Home, known); err != nil {
		return nil, err
	}
	return &Wire{Config: cfg, Log: log, Arbiter: a, Algorithm: alg}, nil
}

// User resolves a display name to a handle and, when passphrase is set,
// unlocks the identity so it can sign.
func (w *Wire) User(name, passphrase string) (domain.Handle, error) {
	h, err := w.Arbiter.UserByName(name)
	if err != nil {
		return 0, err
	}
	if passphrase != "" {
		if err := w.Arbiter.Unlock(h, passphrase); err != nil {
			return 0, err
		}
	}
	return h, nil
}

// Close flushes and tears down the arbiter.
func (w *Wire) Close() error {
	return w.Arbiter.Close()
}
