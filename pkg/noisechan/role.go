package noisechan

import (
	"crypto/hmac"
	"crypto/sha256"

	"github.com/cuemby/warren-sync/pkg/peernet"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Role is this side's position in the Noise NN handshake.
type Role int

const (
	Initiator Role = iota
	Responder
)

// ChooseRole derives which side initiates the handshake from
// hash(secretRepoID, runtimeID), so both peers agree on a role without
// any prior coordination (§4.6 "Role is determined by hash(secret_repo_id,
// runtime_id) comparison").
func ChooseRole(secretRepoID types.RepositoryID, self, peer peernet.RuntimeID) Role {
	a := roleDigest(secretRepoID, self)
	b := roleDigest(secretRepoID, peer)
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return Initiator
			}
			return Responder
		}
	}
	// Identical digests only happens if both sides share a runtime id,
	// which would indicate a misconfigured/duplicated device; fall back
	// to Initiator rather than deadlocking both sides as Responder.
	return Initiator
}

func roleDigest(secretRepoID types.RepositoryID, runtimeID peernet.RuntimeID) [32]byte {
	mac := hmac.New(sha256.New, secretRepoID[:])
	mac.Write(runtimeID[:])
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// ChannelKey identifies a (repository, peer) channel for dispatcher
// multiplexing, derived from the repository's public id and the two
// runtime ids in a fixed, role-independent order (§4.6 "keyed by a hash
// derived from (repo_public_id, role-ordered runtime ids, domain
// separator)").
func ChannelKey(repoPublicID types.RepositoryID, a, b peernet.RuntimeID) [32]byte {
	first, second := a, b
	if !runtimeIDLess(first, second) {
		first, second = second, first
	}
	h := sha256.New()
	h.Write([]byte("warrensync-channel-v1"))
	h.Write(repoPublicID[:])
	h.Write(first[:])
	h.Write(second[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func runtimeIDLess(a, b peernet.RuntimeID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// PresharedKey derives the Noise PSK from the repository's secret id
// (read or write key), salted so it can't be confused with any other
// derived secret (§4.6 "the salted hash of the secret repository id").
func PresharedKey(secretRepoID []byte) [32]byte {
	mac := hmac.New(sha256.New, secretRepoID)
	mac.Write([]byte("warrensync-noise-psk-v1"))
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}
