package storage

import "github.com/cuemby/warren-sync/pkg/types"

// Bucket names, one per logical table of §6.1.
var (
	bucketBlocks             = []byte("blocks")
	bucketRoots              = []byte("snapshot_root_nodes")
	bucketInner              = []byte("snapshot_inner_nodes")
	bucketLeaves             = []byte("snapshot_leaf_nodes")
	bucketMissingBlocks      = []byte("missing_blocks")
	bucketMissingBlockOffers = []byte("missing_block_offers")
	bucketReceivedNodes      = []byte("received_nodes")
	bucketMetadata           = []byte("metadata")
)

var allBuckets = [][]byte{
	bucketBlocks,
	bucketRoots,
	bucketInner,
	bucketLeaves,
	bucketMissingBlocks,
	bucketMissingBlockOffers,
	bucketReceivedNodes,
	bucketMetadata,
}

func rootKey(writerID types.WriterID, hash [32]byte) []byte {
	key := make([]byte, 0, len(writerID)+len(hash))
	key = append(key, writerID[:]...)
	key = append(key, hash[:]...)
	return key
}

func innerKey(parentHash [32]byte, bucket byte) []byte {
	key := make([]byte, 0, len(parentHash)+1)
	key = append(key, parentHash[:]...)
	key = append(key, bucket)
	return key
}

func leafKey(parentHash [32]byte, locator types.Locator) []byte {
	key := make([]byte, 0, len(parentHash)+len(locator))
	key = append(key, parentHash[:]...)
	key = append(key, locator[:]...)
	return key
}
