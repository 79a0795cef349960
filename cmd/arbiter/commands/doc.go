// Package commands defines the arbiter CLI.
//
// Commands
//
//   - init         Open (or create) the configuration directory
//   - create-user  Create an identity protected by --passphrase
//   - users        List local identities
//   - info         Print one attribute of an identity
//   - add-key      Register another user's public key under its fingerprint
//   - add-target   Trust a registered fingerprint for verification
//   - sign         Sign a file or stdin as an identity
//   - verify       Verify a signature as an identity
//
// # Implementation
//
// Flags are bound to viper, which also reads ARBITER_* environment variables
// and an optional arbiter.{toml,yaml,json} in the home directory. The root
// command initializes the arbiter before any subcommand runs and closes it
// afterwards, so every command sees persisted state. Identities are addressed
// by display name; handles do not outlive the process.
package commands
