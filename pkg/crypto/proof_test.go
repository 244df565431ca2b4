package crypto

import (
	"crypto/rand"
	"testing"
)

func TestSignerVerifierRoundTrip(t *testing.T) {
	seed := make([]byte, WriteKeySize)
	rand.Read(seed)

	signer, err := NewSigner(seed)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	verifier, err := NewVerifier(signer.PublicKey())
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	digest := []byte("writer_id||version_vector||hash")
	sig := signer.Sign(digest)

	if !verifier.Verify(digest, sig) {
		t.Fatal("valid signature failed to verify")
	}
	if verifier.Verify([]byte("tampered digest"), sig) {
		t.Fatal("signature verified against the wrong digest")
	}
}

func TestRepositoryIDFromPublicKeyIsDeterministic(t *testing.T) {
	seed := make([]byte, WriteKeySize)
	rand.Read(seed)
	signer, _ := NewSigner(seed)

	a := RepositoryIDFromPublicKey(signer.PublicKey())
	b := RepositoryIDFromPublicKey(signer.PublicKey())
	if a != b {
		t.Fatal("repository id derivation is not deterministic")
	}
}
