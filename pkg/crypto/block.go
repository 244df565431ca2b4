package crypto

import (
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/cuemby/warren-sync/pkg/types"
)

// ReadKeySize is the size, in bytes, of a repository's read key.
const ReadKeySize = chacha20poly1305.KeySize

// BlockCipher encrypts and decrypts block content under a repository's
// read key. It is safe for concurrent use: it holds no mutable state.
type BlockCipher struct {
	aead aeadCipher
}

type aeadCipher interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	NonceSize() int
	Overhead() int
}

// NewBlockCipher builds a BlockCipher from a 32-byte read key.
func NewBlockCipher(readKey []byte) (*BlockCipher, error) {
	if len(readKey) != ReadKeySize {
		return nil, fmt.Errorf("read key must be %d bytes, got %d", ReadKeySize, len(readKey))
	}

	aead, err := chacha20poly1305.NewX(readKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create aead: %w", err)
	}

	return &BlockCipher{aead: aead}, nil
}

// NonceSize returns the size of the per-block nonce.
func (c *BlockCipher) NonceSize() int {
	return c.aead.NonceSize()
}

// GenerateNonce produces a fresh random BlockNonce.
func (c *BlockCipher) GenerateNonce() (types.BlockNonce, error) {
	var nonce types.BlockNonce
	if c.NonceSize() != len(nonce) {
		return nonce, fmt.Errorf("unexpected nonce size %d", c.NonceSize())
	}
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate block nonce: %w", err)
	}
	return nonce, nil
}

// Seal encrypts plaintext (exactly types.BlockSize bytes, or the header+
// tail of the final block) under nonce, authenticating blockID as
// associated data so ciphertext cannot be replayed under a different id.
func (c *BlockCipher) Seal(nonce types.BlockNonce, id types.BlockID, plaintext []byte) []byte {
	return c.aead.Seal(nil, nonce[:], plaintext, id[:])
}

// Open decrypts ciphertext produced by Seal. Returns ErrDecryptionFailed
// (wrapped) on authentication failure.
func (c *BlockCipher) Open(nonce types.BlockNonce, id types.BlockID, ciphertext []byte) ([]byte, error) {
	plaintext, err := c.aead.Open(nil, nonce[:], ciphertext, id[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
