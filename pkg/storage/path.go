package storage

import "github.com/cuemby/warren-sync/pkg/types"

// BucketIndex returns the fixed-fanout slot a locator falls into at the
// tree's single inner layer, grounded on
// original_source/src/index/path.rs's Path::get_bucket (there generalized
// over INNER_LAYER_COUNT layers; here specialized to the one layer this
// package keeps, per SPEC_FULL.md §12 pkg/storage).
func BucketIndex(locator types.Locator) byte {
	return locator[0]
}
