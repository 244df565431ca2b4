package main

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/types"
)

// identity is the per-replica secret material §6.3/§9 "Peer identity"
// describes as the caller's responsibility to generate and persist
// across restarts: the repository's access secrets and this replica's
// own writer id. It is stored alongside the repository's data directory
// rather than inside the store itself (storage.Store only ever holds
// derived ciphertext, proofs, and hashes — never raw key material).
type identity struct {
	ReadKey       []byte         `yaml:"read_key"`
	WriteKeySeed  []byte         `yaml:"write_key_seed,omitempty"`
	LocalWriterID types.WriterID `yaml:"local_writer_id"`
}

const identityFileName = "identity.yaml"

// loadOrCreateIdentity reads dataDir/identity.yaml, or generates and
// persists a fresh write-capable identity (a new repository) if absent.
// Joining an existing repository instead is done by writing an
// identity.yaml derived from a received share token before first start
// (out of scope for this composition root — see pkg/crypto.ShareToken).
func loadOrCreateIdentity(dataDir string) (identity, error) {
	path := filepath.Join(dataDir, identityFileName)

	data, err := os.ReadFile(path)
	if err == nil {
		var id identity
		if err := yaml.Unmarshal(data, &id); err != nil {
			return identity{}, fmt.Errorf("identity: failed to parse %s: %w", path, err)
		}
		return id, nil
	}
	if !os.IsNotExist(err) {
		return identity{}, fmt.Errorf("identity: failed to read %s: %w", path, err)
	}

	readKey := make([]byte, crypto.ReadKeySize)
	if _, err := rand.Read(readKey); err != nil {
		return identity{}, fmt.Errorf("identity: failed to generate read key: %w", err)
	}
	writeKeySeed := make([]byte, crypto.WriteKeySize)
	if _, err := rand.Read(writeKeySeed); err != nil {
		return identity{}, fmt.Errorf("identity: failed to generate write key: %w", err)
	}
	var writerID types.WriterID
	if _, err := rand.Read(writerID[:]); err != nil {
		return identity{}, fmt.Errorf("identity: failed to generate writer id: %w", err)
	}

	id := identity{
		ReadKey:       readKey,
		WriteKeySeed:  writeKeySeed,
		LocalWriterID: writerID,
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return identity{}, fmt.Errorf("identity: failed to create data dir: %w", err)
	}
	out, err := yaml.Marshal(id)
	if err != nil {
		return identity{}, fmt.Errorf("identity: failed to marshal: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return identity{}, fmt.Errorf("identity: failed to write %s: %w", path, err)
	}
	return id, nil
}

func (id identity) repositoryID() (types.RepositoryID, error) {
	signer, err := crypto.NewSigner(id.WriteKeySeed)
	if err != nil {
		return types.RepositoryID{}, err
	}
	return crypto.RepositoryIDFromPublicKey(signer.PublicKey()), nil
}

func (id identity) String() string {
	return base64.RawURLEncoding.EncodeToString(id.LocalWriterID[:])
}
