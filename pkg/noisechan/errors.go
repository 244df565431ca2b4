package noisechan

import "errors"

// Errors surfaced by the Noise channel (§7 error taxonomy: fatal-to-channel kinds).
var (
	ErrChannelClosed  = errors.New("noisechan: channel closed")
	ErrHandshakeFailed = errors.New("noisechan: handshake failed")
	ErrExhausted      = errors.New("noisechan: message counter exhausted")
)
