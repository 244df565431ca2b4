package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cuemby/warren-sync/pkg/types"
)

func TestBlockCipherRoundTrip(t *testing.T) {
	key := make([]byte, ReadKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	c, err := NewBlockCipher(key)
	if err != nil {
		t.Fatalf("NewBlockCipher: %v", err)
	}

	plaintext := make([]byte, types.BlockSize)
	if _, err := rand.Read(plaintext); err != nil {
		t.Fatal(err)
	}
	var id types.BlockID
	copy(id[:], bytes.Repeat([]byte{0x42}, 32))

	nonce, err := c.GenerateNonce()
	if err != nil {
		t.Fatalf("GenerateNonce: %v", err)
	}

	ciphertext := c.Seal(nonce, id, plaintext)
	got, err := c.Open(nonce, id, ciphertext)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Fatal("round trip mismatch")
	}
}

func TestBlockCipherRejectsTamperedBlockID(t *testing.T) {
	key := make([]byte, ReadKeySize)
	rand.Read(key)
	c, _ := NewBlockCipher(key)

	plaintext := []byte("hello block")
	var id, otherID types.BlockID
	id[0] = 1
	otherID[0] = 2

	nonce, _ := c.GenerateNonce()
	ciphertext := c.Seal(nonce, id, plaintext)

	if _, err := c.Open(nonce, otherID, ciphertext); err == nil {
		t.Fatal("expected decryption to fail under the wrong block id")
	}
}

func TestNewBlockCipherRejectsBadKeySize(t *testing.T) {
	if _, err := NewBlockCipher(make([]byte, 16)); err == nil {
		t.Fatal("expected error for short key")
	}
}
