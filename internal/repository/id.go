package repository

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character lowercase hex identifier. Records are keyed by
// these strings; the API rejects any path id that does not match this shape.
func NewID() string {
	var b [12]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic(err)
	}
	return hex.EncodeToString(b[:])
}
