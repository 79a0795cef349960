// Package app wires application dependencies for the CLI.
//
// It turns a Config into a logger and an initialized Arbiter, loads the
// known-keys file handed to Init, and exposes the result via the Wire struct
// for commands to use.
package app
