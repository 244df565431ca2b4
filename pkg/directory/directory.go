package directory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/blob"
	"github.com/cuemby/warren-sync/pkg/branch"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Directory is one writer's view of a single directory: a name ->
// EntryData mapping backed by a blob (§4.3). It is not safe for
// concurrent use from multiple goroutines without external locking.
type Directory struct {
	b       *blob.Blob
	br      *branch.Branch
	cipher  *crypto.BlockCipher
	locCi   *crypto.LocatorCipher
	store   *storage.Store
	entries content
	log     zerolog.Logger
}

// OpenRoot opens (creating if absent) br's root directory.
func OpenRoot(store *storage.Store, cipher *crypto.BlockCipher, locCi *crypto.LocatorCipher, br *branch.Branch) (*Directory, error) {
	return open(store, cipher, locCi, br, RootBlobID, true)
}

// Open opens an existing sub-directory by its blob id.
func Open(store *storage.Store, cipher *crypto.BlockCipher, locCi *crypto.LocatorCipher, br *branch.Branch, id types.BlobID) (*Directory, error) {
	return open(store, cipher, locCi, br, id, false)
}

func open(store *storage.Store, cipher *crypto.BlockCipher, locCi *crypto.LocatorCipher, br *branch.Branch, id types.BlobID, createIfAbsent bool) (*Directory, error) {
	d := &Directory{
		br:     br,
		cipher: cipher,
		locCi:  locCi,
		store:  store,
		log:    log.WithComponent("directory"),
	}

	bl, err := blob.Open(store, cipher, locCi, br.WriterID(), br.Signer(), id)
	if errors.Is(err, blob.ErrEntryNotFound) {
		if !createIfAbsent {
			return nil, ErrEntryNotFound
		}
		d.b = blob.CreateAt(store, cipher, locCi, br.WriterID(), br.Signer(), id)
		d.entries = content{}
		return d, nil
	}
	if err != nil {
		return nil, err
	}
	d.b = bl

	raw := make([]byte, bl.Len())
	if _, err := readAll(bl, raw); err != nil {
		return nil, err
	}
	entries := content{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &entries); err != nil {
			return nil, fmt.Errorf("directory: %w: %v", storage.ErrMalformedData, err)
		}
	}
	d.entries = entries
	return d, nil
}

// CreateEmpty builds a brand new, unsaved directory at a fresh blob id,
// for use by CreateDirectory before the first Flush.
func createEmpty(store *storage.Store, cipher *crypto.BlockCipher, locCi *crypto.LocatorCipher, br *branch.Branch) (*Directory, error) {
	bl, err := blob.Create(store, cipher, locCi, br.WriterID(), br.Signer())
	if err != nil {
		return nil, err
	}
	return &Directory{
		b:       bl,
		br:      br,
		cipher:  cipher,
		locCi:   locCi,
		store:   store,
		entries: content{},
		log:     log.WithComponent("directory"),
	}, nil
}

func readAll(b *blob.Blob, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := b.Read(buf[total:])
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// BlobID returns this directory's own blob id.
func (d *Directory) BlobID() types.BlobID { return d.b.BlobID() }

// Lookup returns the entry stored under name. If more than one
// non-tombstone concurrent version exists under the same logical name
// (§8 scenario 5), callers should use LookupUnique with the
// writer-disambiguated name instead; Lookup here only ever sees this
// writer's own single view, so ambiguity can't arise within it — it is a
// joint-directory concern (pkg/joint).
func (d *Directory) Lookup(name string) (EntryData, error) {
	e, ok := d.entries[name]
	if !ok || e.IsTombstone() {
		return EntryData{}, ErrEntryNotFound
	}
	return e, nil
}

// Entries returns a snapshot of every non-tombstone entry, keyed by name.
func (d *Directory) Entries() map[string]EntryData {
	out := make(map[string]EntryData, len(d.entries))
	for name, e := range d.entries {
		if e.IsTombstone() {
			continue
		}
		out[name] = e
	}
	return out
}

// RawEntries returns every entry including tombstones, for use by the
// merge algorithm (§4.4) which must compare causal history even for
// removed names.
func (d *Directory) RawEntries() map[string]EntryData {
	out := make(map[string]EntryData, len(d.entries))
	for name, e := range d.entries {
		out[name] = e
	}
	return out
}

// CreateFile creates a new, empty file entry named name and returns the
// blob to write its content into. The directory is not durable until
// Flush is called.
func (d *Directory) CreateFile(name string) (*blob.Blob, error) {
	if !d.br.Writable() {
		return nil, fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	if e, ok := d.entries[name]; ok && !e.IsTombstone() {
		return nil, ErrEntryExists
	}

	fb, err := blob.Create(d.store, d.cipher, d.locCi, d.br.WriterID(), d.br.Signer())
	if err != nil {
		return nil, err
	}

	d.putEntry(name, EntryData{Kind: types.EntryFile, BlobID: fb.BlobID()})
	return fb, nil
}

// CreateDirectory creates a new, empty sub-directory entry named name and
// returns it. Neither this directory nor the new one is durable until
// both are flushed.
func (d *Directory) CreateDirectory(name string) (*Directory, error) {
	if !d.br.Writable() {
		return nil, fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	if e, ok := d.entries[name]; ok && !e.IsTombstone() {
		return nil, ErrEntryExists
	}

	sub, err := createEmpty(d.store, d.cipher, d.locCi, d.br)
	if err != nil {
		return nil, err
	}

	d.putEntry(name, EntryData{Kind: types.EntryDirectory, BlobID: sub.BlobID()})
	return sub, nil
}

// RemoveEntry removes name (§4.3 Remove policy).
//
// If originatingBranch equals this directory's own branch, the entry is
// replaced with a Tombstone whose version vector is causalVV with this
// branch's component incremented — this branch is the one the removal is
// happening on behalf of. Otherwise (this directory is merging in a
// removal another writer performed), the existing entry's version vector
// is merged with causalVV so the removal's causal information propagates
// without destroying this branch's own concurrent edits.
func (d *Directory) RemoveEntry(name string, originatingBranch types.WriterID, causalVV types.VersionVector) error {
	if !d.br.Writable() {
		return fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	existing, ok := d.entries[name]
	if !ok {
		return ErrEntryNotFound
	}

	if originatingBranch == d.br.WriterID() {
		vv := causalVV.Clone().Increment(d.br.WriterID())
		d.putEntry(name, EntryData{Kind: types.EntryTombstone, Version: vv})
		return nil
	}

	merged := existing.Version.Merge(causalVV)
	existing.Version = merged
	d.putEntry(name, existing)
	return nil
}

// RemoveDirectory removes an empty sub-directory entry. It is an error
// (ErrDirectoryNotEmpty) if sub still contains any non-tombstone entry
// (§4.3 Remove policy: "Directory removal requires the directory to
// contain no non-tombstone entries").
func (d *Directory) RemoveDirectory(name string, sub *Directory, originatingBranch types.WriterID, causalVV types.VersionVector) error {
	if len(sub.Entries()) > 0 {
		return ErrDirectoryNotEmpty
	}
	return d.RemoveEntry(name, originatingBranch, causalVV)
}

// MoveEntry performs the insert half of a move: it inserts srcData under
// dstName in dst, stamped with dstVV as its version vector. The
// tombstone half (the
// caller removing srcName from this directory) happens in a second
// transaction — see the documented cancel-hazard window in spec.md §9
// "Move atomicity".
func (d *Directory) MoveEntry(srcName string, srcData EntryData, dst *Directory, dstName string, dstVV types.VersionVector) error {
	if !dst.br.Writable() {
		return fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	if e, ok := dst.entries[dstName]; ok && !e.IsTombstone() {
		return ErrEntryExists
	}
	moved := srcData
	moved.Version = dstVV
	dst.putEntry(dstName, moved)
	return nil
}

func (d *Directory) putEntry(name string, e EntryData) {
	d.entries[name] = e
}

// AdoptEntry installs e under name unconditionally, overwriting whatever
// was there. Used by pkg/joint's merge algorithm, which has already made
// the causal decision that e belongs in this directory.
func (d *Directory) AdoptEntry(name string, e EntryData) error {
	if !d.br.Writable() {
		return fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	d.putEntry(name, e)
	return nil
}

// PurgeTombstone removes name's entry from the map entirely rather than
// replacing it with a tombstone. Used by the trash cleaner once a
// tombstone's version vector is causally stable (dominated by every
// known branch), so it can never again be mistaken for a concurrent
// edit that needs reconciling (spec.md §9 "whether tombstones are ever
// garbage collected" open design item).
func (d *Directory) PurgeTombstone(name string) error {
	if !d.br.Writable() {
		return fmt.Errorf("directory: %w", storage.ErrParentNodeNotFound)
	}
	e, ok := d.entries[name]
	if !ok || !e.IsTombstone() {
		return ErrEntryNotFound
	}
	delete(d.entries, name)
	return nil
}

// Flush serializes this directory's entries deterministically and writes
// them through the blob layer, bumping the branch's version vector
// (§4.3 Commit semantics: "every mutating operation that completes a
// transaction also bumps the branch's version vector").
func (d *Directory) Flush() error {
	data, err := json.Marshal(d.entries)
	if err != nil {
		return fmt.Errorf("directory: failed to marshal entries: %w", err)
	}

	d.b.Seek(0)
	if err := d.b.Truncate(uint64(len(data))); err != nil {
		return err
	}
	if _, err := d.b.Write(data); err != nil {
		return err
	}
	return d.b.Flush()
}
