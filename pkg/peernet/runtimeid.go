package peernet

import (
	"crypto/rand"
	"encoding/hex"
)

// RuntimeID is a random per-process identifier used only for Noise role
// selection (§4.6) and log correlation — never persisted as repository
// content (§9 "Peer identity", §13 supplemented feature grounded on
// original_source's lib/src/device_id.rs).
type RuntimeID [16]byte

// NewRuntimeID generates a fresh runtime id for this process.
func NewRuntimeID() RuntimeID {
	var id RuntimeID
	_, _ = rand.Read(id[:]) // crypto/rand on a fixed-size buffer never errors in practice
	return id
}

func (id RuntimeID) String() string {
	return hex.EncodeToString(id[:])
}
