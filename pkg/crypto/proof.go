package crypto

import (
	"crypto/ed25519"
	"fmt"

	"github.com/cuemby/warren-sync/pkg/types"
)

// WriteKeySize is the size, in bytes, of a repository's write (signing)
// key seed.
const WriteKeySize = ed25519.SeedSize

// Signer produces signatures over root-node proof hashes using the
// repository's write key. Only branches the local device can write to
// have a Signer; remote branches are verified with Verifier alone.
type Signer struct {
	priv ed25519.PrivateKey
}

// NewSigner derives a Signer from a 32-byte write key seed.
func NewSigner(writeKeySeed []byte) (*Signer, error) {
	if len(writeKeySeed) != WriteKeySize {
		return nil, fmt.Errorf("write key must be %d bytes, got %d", WriteKeySize, len(writeKeySeed))
	}
	return &Signer{priv: ed25519.NewKeyFromSeed(writeKeySeed)}, nil
}

// PublicKey returns the repository public key corresponding to this
// Signer's write key, used to derive RepositoryID and to verify proofs.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.priv.Public().(ed25519.PublicKey)
}

// Sign signs a proof hash (the hash of writer_id ++ version_vector ++
// hash, per §3 Entities: Root node and original_source/protocol/proof.rs).
func (s *Signer) Sign(digest []byte) []byte {
	return ed25519.Sign(s.priv, digest)
}

// Verifier checks proof signatures against a repository's public key. Any
// holder of the read key can verify snapshot authenticity without
// possessing the write key (§3 Entities: Root node).
type Verifier struct {
	pub ed25519.PublicKey
}

// NewVerifier builds a Verifier from a repository public key.
func NewVerifier(pub ed25519.PublicKey) (*Verifier, error) {
	if len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}
	return &Verifier{pub: pub}, nil
}

// Verify reports whether sig is a valid signature of digest under this
// Verifier's public key.
func (v *Verifier) Verify(digest, sig []byte) bool {
	return ed25519.Verify(v.pub, digest, sig)
}

// RepositoryIDFromPublicKey derives the repository's public identifier
// from its write key's public half.
func RepositoryIDFromPublicKey(pub ed25519.PublicKey) types.RepositoryID {
	var id types.RepositoryID
	copy(id[:], pub)
	return id
}
