package crypto

import "errors"

// ErrDecryptionFailed indicates AEAD authentication failure: either the
// key is wrong or the ciphertext/nonce has been tampered with or
// corrupted (§7 error taxonomy, Crypto/Access).
var ErrDecryptionFailed = errors.New("decryption failed")

// ErrInvalidProof indicates a root node proof's signature does not verify
// against the repository's public key (§7 error taxonomy, Crypto/Access).
var ErrInvalidProof = errors.New("invalid proof")

// ErrMalformedShareToken indicates a share token failed to parse.
var ErrMalformedShareToken = errors.New("malformed share token")
