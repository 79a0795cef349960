// Package memzero wipes buffers that held secrets.
package memzero

import (
	"crypto/subtle"
	"runtime"
)

// Zero overwrites b with zeros. XOR-ing the buffer with itself through
// crypto/subtle keeps the compiler from eliding the write.
func Zero(b []byte) {
	if len(b) == 0 {
		return
	}
	subtle.XORBytes(b, b, b)
	runtime.KeepAlive(b)
}
