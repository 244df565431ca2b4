package storage

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/cuemby/warren-sync/pkg/types"
)

// nextReceiveFilterID hands out per-connection receive-filter ids, mirroring
// original_source/lib/src/store/receive_filter.rs's atomic client id counter.
var nextReceiveFilterID uint64

// ReceiveFilter deduplicates incoming root/inner node proofs against what
// this peer connection has already been sent, so a re-advertised node
// whose block presence hasn't improved since last time is skipped instead
// of walked again (§13 supplemented feature, grounded on
// original_source/lib/src/store/receive_filter.rs).
type ReceiveFilter struct {
	id    uint64
	store *Store
}

// NewReceiveFilter allocates a filter scoped to one peer connection.
func (s *Store) NewReceiveFilter() *ReceiveFilter {
	return &ReceiveFilter{id: atomic.AddUint64(&nextReceiveFilterID, 1), store: s}
}

// Check reports whether hash/presence carries information this filter
// hasn't already seen for this connection, recording it as seen if so.
func (f *ReceiveFilter) Check(t *WriteTransaction, hash [32]byte, presence types.MultiBlockPresence) (bool, error) {
	b := t.tx.Bucket(bucketReceivedNodes)
	key := receiveFilterKey(f.id, hash)

	existing := b.Get(key)
	if existing != nil {
		old := decodePresence(existing)
		if !old.IsOutdatedVs(presence) {
			return false, nil
		}
	}
	return true, b.Put(key, encodePresence(presence))
}

// Remove drops the record for hash on this connection, e.g. once the
// corresponding subtree has been fully processed.
func (f *ReceiveFilter) Remove(t *WriteTransaction, hash [32]byte) error {
	return t.tx.Bucket(bucketReceivedNodes).Delete(receiveFilterKey(f.id, hash))
}

// Reset clears every record held for this connection, used on
// reconnect/handshake so stale dedup state from a previous session never
// hides content the peer would otherwise resend.
func (f *ReceiveFilter) Reset(t *WriteTransaction) error {
	b := t.tx.Bucket(bucketReceivedNodes)
	c := b.Cursor()
	prefix := idPrefix(f.id)
	var keys [][]byte
	for k, _ := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func idPrefix(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func receiveFilterKey(id uint64, hash [32]byte) []byte {
	key := idPrefix(id)
	return append(key, hash[:]...)
}

func encodePresence(p types.MultiBlockPresence) []byte {
	out := make([]byte, 1+len(p.Digest))
	out[0] = byte(p.Kind)
	copy(out[1:], p.Digest[:])
	return out
}

func decodePresence(b []byte) types.MultiBlockPresence {
	var p types.MultiBlockPresence
	if len(b) == 0 {
		return p
	}
	p.Kind = types.PresenceKind(b[0])
	copy(p.Digest[:], b[1:])
	return p
}
