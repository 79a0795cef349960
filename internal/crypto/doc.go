// Package crypto is the key pair engine of the arbiter.
//
// Contents
//
//   - Key generation for RSA-2048/4096 (RSASSA-PSS), Ed25519 and Dilithium3
//     (Generate), signing with an owned KeyPair and wiping it (Destroy)
//   - Pure signature verification against a PEM public key (Verify)
//   - Deterministic fingerprints over the canonical public key encoding
//     (FingerprintOf) and their multihash/CID forms
//   - Passphrase sealing of private keys with Argon2id or scrypt and
//     XChaCha20-Poly1305 (Seal, Open)
//   - PEM armour for signatures (EncodeSignature, DecodeSignature)
//
// # Notes
//
// Private key material never leaves a KeyPair except sealed. Verify never
// mutates state and returns false, not an error, for a well-formed signature
// that does not match.
package crypto
