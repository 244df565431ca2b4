package joint

import (
	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/blob"
	"github.com/cuemby/warren-sync/pkg/branch"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Merger performs the one-directory step of the merge algorithm (§4.4);
// callers recurse into sub-directories themselves, matching depth-first
// as they discover sub-directory entries.
type Merger struct {
	store  *storage.Store
	cipher *crypto.BlockCipher
	locCi  *crypto.LocatorCipher
	local  *branch.Branch
	log    zerolog.Logger
}

// NewMerger builds a Merger that copies content into local's branch.
func NewMerger(store *storage.Store, cipher *crypto.BlockCipher, locCi *crypto.LocatorCipher, local *branch.Branch) *Merger {
	return &Merger{store: store, cipher: cipher, locCi: locCi, local: local, log: log.WithComponent("merger")}
}

// MergeInto merges remote's entries into local, per §4.4 steps 1-6:
//
//  1. A name present only in remote is copied into local (shallow fork).
//  2. A name where local.vv < remote.vv (strict) is replaced by remote's.
//  3. A name where local.vv >= remote.vv is left as is.
//  4. Concurrent versions are kept as siblings, under a
//     writer-disambiguated name, so both survive (§8 scenario 5).
//  5. Recursion into sub-directories is the caller's responsibility.
//  6. If anything changed, the caller bumps local's version vector.
//
// MergeInto reports whether it wrote any change, so the caller can
// implement step 7's idempotence (no-op commit when nothing changed) and
// P2 (merging twice in a row is a no-op the second time).
func (m *Merger) MergeInto(local, remote *directory.Directory, remoteWriterID types.WriterID) (bool, error) {
	changed := false
	localEntries := local.RawEntries()

	for name, rEntry := range remote.RawEntries() {
		lEntry, exists := localEntries[name]

		if !exists {
			copied, err := m.copyEntry(rEntry, remoteWriterID)
			if err != nil {
				return changed, err
			}
			if err := local.AdoptEntry(name, copied); err != nil {
				return changed, err
			}
			changed = true
			continue
		}

		switch lEntry.Version.Compare(rEntry.Version) {
		case types.Less:
			copied, err := m.copyEntry(rEntry, remoteWriterID)
			if err != nil {
				return changed, err
			}
			if err := local.AdoptEntry(name, copied); err != nil {
				return changed, err
			}
			changed = true
		case types.Equal, types.Greater:
			// local already dominates or matches; nothing to do.
		case types.Concurrent:
			siblingName := name + "@" + remoteWriterID.String()
			if existingSibling, ok := localEntries[siblingName]; ok && existingSibling.Version.Compare(rEntry.Version) != types.Less {
				continue
			}
			copied, err := m.copyEntry(rEntry, remoteWriterID)
			if err != nil {
				return changed, err
			}
			if err := local.AdoptEntry(siblingName, copied); err != nil {
				return changed, err
			}
			changed = true
		}
	}

	return changed, nil
}

// copyEntry shallow-forks a remote entry's blob (if any) into the local
// branch, sharing the underlying blocks through content-addressing
// rather than copying them (§4.4 step 1: "copy the entry data (shallow,
// via fork)").
func (m *Merger) copyEntry(e directory.EntryData, remoteWriterID types.WriterID) (directory.EntryData, error) {
	if e.Kind == types.EntryTombstone {
		return e, nil
	}

	src, err := blob.Open(m.store, m.cipher, m.locCi, remoteWriterID, nil, e.BlobID)
	if err != nil {
		return directory.EntryData{}, err
	}
	dstID, err := src.Fork(m.local.WriterID(), m.local.Signer())
	if err != nil {
		return directory.EntryData{}, err
	}
	return directory.EntryData{Kind: e.Kind, BlobID: dstID, Version: e.Version}, nil
}
