package app

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"arbiter/internal/domain"
)

// knownKeyFile is one entry of the known-keys file. The key is given either
// inline as PEM or as a path relative to the file.
type knownKeyFile struct {
	Label         string             `json:"label"`
	Fingerprint   domain.Fingerprint `json:"fingerprint"`
	PublicKey     string             `json:"public_key,omitempty"`
	PublicKeyFile string             `json:"public_key_file,omitempty"`
}

// LoadKnownKeys reads a JSON array of known keys. An empty path yields none.
func LoadKnownKeys(path string) ([]domain.KnownKey, error) {
	if path == "" {
		return nil, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: known keys: %v", domain.ErrIO, err)
	}
	var raw []knownKeyFile
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("known keys %s: %w", path, err)
	}

	out := make([]domain.KnownKey, 0, len(raw))
	for i, k := range raw {
		pem := []byte(k.PublicKey)
		switch {
		case k.PublicKey != "" && k.PublicKeyFile != "":
			return nil, fmt.Errorf("known key %d (%q): set public_key or public_key_file, not both", i, k.Label)
		case k.PublicKeyFile != "":
			p := k.PublicKeyFile
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(path), p)
			}
			if pem, err = os.ReadFile(p); err != nil {
				return nil, fmt.Errorf("%w: known key %q: %v", domain.ErrIO, k.Label, err)
			}
		case k.PublicKey == "":
			return nil, fmt.Errorf("known key %d (%q): no public key", i, k.Label)
		}
		out = append(out, domain.KnownKey{Fingerprint: k.Fingerprint, PublicKey: pem, Label: k.Label})
	}
	return out, nil
}
