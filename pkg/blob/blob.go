package blob

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

const headerSize = 8

// Blob presents a byte-stream view over the sequence of blocks reachable
// from a blob id's locators within one branch (§4.2). It buffers at most
// one block in memory at a time.
type Blob struct {
	store     *storage.Store
	cipher    *crypto.BlockCipher
	locCipher *crypto.LocatorCipher
	writerID  types.WriterID
	signer    *crypto.Signer // nil for a blob opened on a branch we cannot write to

	blobID types.BlobID
	length uint64
	pos    uint64

	open        *openBlock
	headerDirty bool
}

type openBlock struct {
	seq     uint64
	blockID types.BlockID
	data    []byte
	dirty   bool
}

// Create allocates a new, empty blob in writerID's branch. It is not
// durable until Flush is called.
func Create(store *storage.Store, cipher *crypto.BlockCipher, locCipher *crypto.LocatorCipher, writerID types.WriterID, signer *crypto.Signer) (*Blob, error) {
	var id types.BlobID
	if _, err := rand.Read(id[:]); err != nil {
		return nil, fmt.Errorf("blob: failed to allocate id: %w", err)
	}

	b := &Blob{
		store:     store,
		cipher:    cipher,
		locCipher: locCipher,
		writerID:  writerID,
		signer:    signer,
		blobID:    id,
		open:      &openBlock{seq: 0, data: make([]byte, types.BlockSize), dirty: true},
	}
	return b, nil
}

// CreateAt allocates a new, empty blob under an explicit id rather than a
// randomly generated one. Used for the root directory's blob, which
// every branch addresses at the same well-known id (§4.3).
func CreateAt(store *storage.Store, cipher *crypto.BlockCipher, locCipher *crypto.LocatorCipher, writerID types.WriterID, signer *crypto.Signer, id types.BlobID) *Blob {
	return &Blob{
		store:     store,
		cipher:    cipher,
		locCipher: locCipher,
		writerID:  writerID,
		signer:    signer,
		blobID:    id,
		open:      &openBlock{seq: 0, data: make([]byte, types.BlockSize), dirty: true},
	}
}

// Open loads an existing blob by its head locator (§4.2 open).
func Open(store *storage.Store, cipher *crypto.BlockCipher, locCipher *crypto.LocatorCipher, writerID types.WriterID, signer *crypto.Signer, id types.BlobID) (*Blob, error) {
	b := &Blob{
		store:     store,
		cipher:    cipher,
		locCipher: locCipher,
		writerID:  writerID,
		signer:    signer,
		blobID:    id,
	}

	head, err := b.loadBlock(0)
	if err != nil {
		return nil, err
	}
	b.open = head
	b.length = binary.BigEndian.Uint64(head.data[:headerSize])
	return b, nil
}

// BlobID returns this blob's identifier.
func (b *Blob) BlobID() types.BlobID { return b.blobID }

// Len returns the blob's current logical length.
func (b *Blob) Len() uint64 { return b.length }

// Seek moves the read/write cursor. Seeking past the current length is
// allowed; a subsequent Write there extends the blob, leaving the gap
// implicitly zero-filled the way a sparse file would.
func (b *Blob) Seek(pos uint64) {
	b.pos = pos
}

// Read copies up to len(buf) bytes starting at the cursor into buf,
// advancing the cursor, and returns the number of bytes read.
func (b *Blob) Read(buf []byte) (int, error) {
	if b.pos >= b.length {
		return 0, io.EOF
	}

	total := 0
	for total < len(buf) && b.pos < b.length {
		seq, offset := locateOffset(b.pos)
		if err := b.ensureBlockLoaded(seq); err != nil {
			return total, err
		}

		dataStart := blockDataOffset(seq) + offset
		avail := blockCapacity(seq) - offset
		if remaining := b.length - b.pos; remaining < avail {
			avail = remaining
		}
		n := uint64(len(buf) - total)
		if n > avail {
			n = avail
		}

		copy(buf[total:uint64(total)+n], b.open.data[dataStart:dataStart+n])
		total += int(n)
		b.pos += n
	}
	return total, nil
}

// Write copies buf into the blob starting at the cursor, allocating
// blocks lazily and extending the blob's length as needed (§4.2 write).
func (b *Blob) Write(buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		seq, offset := locateOffset(b.pos)
		if err := b.ensureBlockLoaded(seq); err != nil {
			return total, err
		}

		dataStart := blockDataOffset(seq) + offset
		avail := blockCapacity(seq) - offset
		n := uint64(len(buf) - total)
		if n > avail {
			n = avail
		}

		copy(b.open.data[dataStart:dataStart+n], buf[total:uint64(total)+n])
		b.open.dirty = true
		total += int(n)
		b.pos += n

		if b.pos > b.length {
			b.length = b.pos
			b.headerDirty = true
		}
	}
	return total, nil
}

// Truncate shortens or extends the blob's logical length. Shrinking
// frees every locator strictly beyond the new length (§4.2 truncate).
func (b *Blob) Truncate(length uint64) error {
	if length >= b.length {
		b.length = length
		b.headerDirty = true
		return nil
	}

	oldBlocks := numBlocksForLength(b.length)
	newBlocks := numBlocksForLength(length)

	if newBlocks < oldBlocks {
		if b.signer == nil {
			return fmt.Errorf("blob: truncate requires write access")
		}
		tx, err := b.store.BeginWrite()
		if err != nil {
			return err
		}
		for seq := newBlocks; seq < oldBlocks; seq++ {
			locator := b.locCipher.Locator(b.blobID, seq)
			if _, err := tx.ApplyLocalLeafChange(b.writerID, locator, nil, b.signer); err != nil {
				tx.Rollback()
				return err
			}
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}

	if b.open != nil && b.open.seq >= newBlocks && b.open.seq != 0 {
		b.open = nil
	}
	b.length = length
	b.headerDirty = true
	return nil
}

// Flush persists the open block (if dirty) and, if the length header has
// changed, block 0's header, as a single storage transaction each.
func (b *Blob) Flush() error {
	if b.headerDirty {
		var headerBlock *openBlock
		if b.open != nil && b.open.seq == 0 {
			headerBlock = b.open
		} else {
			loaded, err := b.loadBlock(0)
			if err != nil {
				return err
			}
			headerBlock = loaded
		}
		binary.BigEndian.PutUint64(headerBlock.data[:headerSize], b.length)
		headerBlock.dirty = true
		if err := b.flushOpenBlock(headerBlock); err != nil {
			return err
		}
		if b.open != nil && b.open.seq == 0 {
			b.open = headerBlock
		}
		b.headerDirty = false
	}

	if b.open != nil && b.open.dirty {
		if err := b.flushOpenBlock(b.open); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes every block locator reachable from this blob's id
// (§4.2 remove). The blocks themselves are freed by the store's orphan
// GC once no other leaf references them.
func (b *Blob) Remove() error {
	if b.signer == nil {
		return fmt.Errorf("blob: remove requires write access")
	}
	numBlocks := numBlocksForLength(b.length)

	tx, err := b.store.BeginWrite()
	if err != nil {
		return err
	}
	for seq := uint64(0); seq < numBlocks; seq++ {
		locator := b.locCipher.Locator(b.blobID, seq)
		if _, err := tx.ApplyLocalLeafChange(b.writerID, locator, nil, b.signer); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Fork shallow-copies this blob's leaves into dstWriterID's branch under
// a freshly allocated blob id; the underlying blocks are shared through
// content-addressing, not copied (§4.2 fork).
func (b *Blob) Fork(dstWriterID types.WriterID, dstSigner *crypto.Signer) (types.BlobID, error) {
	var dstID types.BlobID
	if _, err := rand.Read(dstID[:]); err != nil {
		return dstID, fmt.Errorf("blob: failed to allocate fork id: %w", err)
	}

	numBlocks := numBlocksForLength(b.length)
	tx, err := b.store.BeginWrite()
	if err != nil {
		return dstID, err
	}
	for seq := uint64(0); seq < numBlocks; seq++ {
		srcLocator := b.locCipher.Locator(b.blobID, seq)
		leaf, ok, err := tx.LookupLeaf(b.writerID, srcLocator)
		if err != nil {
			tx.Rollback()
			return dstID, err
		}
		if !ok {
			continue
		}
		dstLocator := b.locCipher.Locator(dstID, seq)
		blockID := leaf.BlockID
		if _, err := tx.ApplyLocalLeafChange(dstWriterID, dstLocator, &blockID, dstSigner); err != nil {
			tx.Rollback()
			return dstID, err
		}
	}
	if err := tx.Commit(); err != nil {
		return dstID, err
	}
	return dstID, nil
}

func (b *Blob) ensureBlockLoaded(seq uint64) error {
	if b.open != nil && b.open.seq == seq {
		return nil
	}
	if b.open != nil && b.open.dirty {
		if err := b.flushOpenBlock(b.open); err != nil {
			return err
		}
	}
	loaded, err := b.loadBlock(seq)
	if err != nil {
		return err
	}
	b.open = loaded
	return nil
}

func (b *Blob) loadBlock(seq uint64) (*openBlock, error) {
	locator := b.locCipher.Locator(b.blobID, seq)

	r, err := b.store.AcquireRead()
	if err != nil {
		return nil, err
	}
	defer r.Close()

	leaf, ok, err := r.LookupLeaf(b.writerID, locator)
	if err != nil {
		return nil, err
	}
	if !ok {
		if seq == 0 {
			return nil, ErrEntryNotFound
		}
		return &openBlock{seq: seq, data: make([]byte, types.BlockSize)}, nil
	}

	ciphertext, nonce, err := r.ReadBlock(leaf.BlockID)
	if err != nil {
		if errors.Is(err, storage.ErrBlockNotFound) {
			return nil, ErrBlockNotFound
		}
		return nil, err
	}
	plaintext, err := b.cipher.Open(nonce, leaf.BlockID, ciphertext)
	if err != nil {
		return nil, err
	}
	return &openBlock{seq: seq, blockID: leaf.BlockID, data: plaintext}, nil
}

func (b *Blob) flushOpenBlock(ob *openBlock) error {
	blockID := storage.BlockContentID(ob.data)

	tx, err := b.store.BeginWrite()
	if err != nil {
		return err
	}
	nonce, err := b.cipher.GenerateNonce()
	if err != nil {
		tx.Rollback()
		return err
	}
	ciphertext := b.cipher.Seal(nonce, blockID, ob.data)
	if err := tx.WriteBlock(blockID, ciphertext, nonce); err != nil {
		tx.Rollback()
		return err
	}

	locator := b.locCipher.Locator(b.blobID, ob.seq)
	if _, err := tx.ApplyLocalLeafChange(b.writerID, locator, &blockID, b.signer); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	ob.blockID = blockID
	ob.dirty = false
	return nil
}

func blockCapacity(seq uint64) uint64 {
	if seq == 0 {
		return types.BlockSize - headerSize
	}
	return types.BlockSize
}

func blockDataOffset(seq uint64) uint64 {
	if seq == 0 {
		return headerSize
	}
	return 0
}

// locateOffset maps an absolute blob position to the (sequence number,
// offset within that block's data) it falls into.
func locateOffset(pos uint64) (seq uint64, offset uint64) {
	cap0 := blockCapacity(0)
	if pos < cap0 {
		return 0, pos
	}
	rem := pos - cap0
	return 1 + rem/types.BlockSize, rem % types.BlockSize
}

func numBlocksForLength(length uint64) uint64 {
	cap0 := blockCapacity(0)
	if length <= cap0 {
		return 1
	}
	rem := length - cap0
	return 1 + (rem+types.BlockSize-1)/types.BlockSize
}
