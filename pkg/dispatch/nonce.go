package dispatch

import (
	"crypto/rand"
	"encoding/binary"
)

// randomNonce returns a random 64-bit value for ping/pong correlation.
// Collisions are harmless: the nonce is an opaque liveness token, not a
// security boundary.
func randomNonce() uint64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0
	}
	return binary.BigEndian.Uint64(buf[:])
}
