package storage

import (
	"encoding/binary"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/warren-sync/pkg/types"
)

// WriteBlock persists an encrypted block's ciphertext and nonce, within
// an existing write transaction. It does not touch the leaf/refcount
// tables; callers add the referencing leaf (which bumps the refcount)
// separately, so a block written but not yet referenced is not
// considered retained (invariant 3).
func (t *WriteTransaction) WriteBlock(id types.BlockID, ciphertext []byte, nonce types.BlockNonce) error {
	b := t.tx.Bucket(bucketBlocks)
	value := make([]byte, 0, len(nonce)+len(ciphertext))
	value = append(value, nonce[:]...)
	value = append(value, ciphertext...)
	return b.Put(id[:], value)
}

// ReadBlock returns a copy of an encrypted block's ciphertext together
// with its nonce.
func (r *Reader) ReadBlock(id types.BlockID) (ciphertext []byte, nonce types.BlockNonce, err error) {
	b := r.tx.Bucket(bucketBlocks)
	value := b.Get(id[:])
	if value == nil {
		return nil, nonce, fmt.Errorf("%w: %s", ErrBlockNotFound, id)
	}
	if len(value) < len(nonce) {
		return nil, nonce, newCorruptionError(fmt.Errorf("block %s value too short", id))
	}
	copy(nonce[:], value[:len(nonce)])
	ciphertext = append([]byte(nil), value[len(nonce):]...)
	return ciphertext, nonce, nil
}

// BlockExists reports whether a block with the given id is stored.
func (r *Reader) BlockExists(id types.BlockID) bool {
	b := r.tx.Bucket(bucketBlocks)
	return b.Get(id[:]) != nil
}

// TotalBytes returns the total ciphertext bytes currently stored, the
// basis for storage-quota accounting (§4.1 Storage quota, Open Questions:
// "quota is computed over encrypted bytes on disk").
func (r *Reader) TotalBytes() (int64, error) {
	var total int64
	b := r.tx.Bucket(bucketBlocks)
	err := b.ForEach(func(k, v []byte) error {
		total += int64(len(v))
		return nil
	})
	return total, err
}

// OrphanBlocks scans for stored blocks with no refcount entry at all —
// the crash-recovery case the garbage collector's periodic sweep exists
// for (ordinary decrement-to-zero deletion already happens inline in
// decrementBlockRef; this only catches a block written but never
// referenced, e.g. a crash between WriteBlock and the commit of its
// referencing leaf in a multi-step caller).
func (r *Reader) OrphanBlocks() ([]types.BlockID, error) {
	blocks := r.tx.Bucket(bucketBlocks)
	refs := r.tx.Bucket(bucketBlockRefs)

	var orphans []types.BlockID
	err := blocks.ForEach(func(k, v []byte) error {
		if refs.Get(k) == nil {
			var id types.BlockID
			copy(id[:], k)
			orphans = append(orphans, id)
		}
		return nil
	})
	return orphans, err
}

// RemoveOrphanBlock deletes a block with no remaining references. Callers
// must have already confirmed (within the same transaction) that the
// block is truly unreferenced, e.g. via OrphanBlocks.
func (t *WriteTransaction) RemoveOrphanBlock(id types.BlockID) error {
	return t.tx.Bucket(bucketBlocks).Delete(id[:])
}

// incrementBlockRef bumps a block's reference count by one. Called when a
// leaf referencing the block is added.
func (t *WriteTransaction) incrementBlockRef(id types.BlockID) error {
	b := t.tx.Bucket(bucketBlockRefs)
	count := getRefCount(b, id)
	return putRefCount(b, id, count+1)
}

// decrementBlockRef decrements a block's reference count; at zero, the
// block itself is deleted (the orphan-block GC of §6.1's deletion
// trigger, reimplemented here in Go since bbolt has no SQL triggers).
func (t *WriteTransaction) decrementBlockRef(id types.BlockID) error {
	refs := t.tx.Bucket(bucketBlockRefs)
	count := getRefCount(refs, id)
	if count <= 1 {
		if err := refs.Delete(id[:]); err != nil {
			return err
		}
		return t.tx.Bucket(bucketBlocks).Delete(id[:])
	}
	return putRefCount(refs, id, count-1)
}

func getRefCount(b *bolt.Bucket, id types.BlockID) uint64 {
	v := b.Get(id[:])
	if v == nil {
		return 0
	}
	return binary.BigEndian.Uint64(v)
}

func putRefCount(b *bolt.Bucket, id types.BlockID, count uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], count)
	return b.Put(id[:], buf[:])
}
