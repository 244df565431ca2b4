package storage

import "github.com/cuemby/warren-sync/pkg/types"

// LookupLeaf finds the leaf for locator in writerID's current branch, if
// any. Used by pkg/blob to resolve a single block without walking the
// whole bucket the locator falls into.
func (r *Reader) LookupLeaf(writerID types.WriterID, locator types.Locator) (LeafNode, bool, error) {
	root, err := r.LoadRootNode(writerID, FilterAny)
	if err == ErrEntryNotFound {
		return LeafNode{}, false, nil
	}
	if err != nil {
		return LeafNode{}, false, err
	}

	inner, err := r.InnerNodes(root.Proof.Hash)
	if err != nil {
		return LeafNode{}, false, err
	}

	bucket := BucketIndex(locator)
	var bucketHash [32]byte
	for _, n := range inner {
		if n.Bucket == bucket {
			bucketHash = n.Hash
			break
		}
	}
	if bucketHash == ([32]byte{}) {
		return LeafNode{}, false, nil
	}

	leaves, err := r.LeafNodes(bucketHash)
	if err != nil {
		return LeafNode{}, false, err
	}
	for _, l := range leaves {
		if l.Locator == locator {
			return l, true, nil
		}
	}
	return LeafNode{}, false, nil
}

// LookupLeaf is the write-transaction equivalent, for use mid-commit.
func (t *WriteTransaction) LookupLeaf(writerID types.WriterID, locator types.Locator) (LeafNode, bool, error) {
	return t.reader().LookupLeaf(writerID, locator)
}
