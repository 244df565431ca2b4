package blob

import "errors"

// Errors surfaced by the blob layer (§4.2 Failure, §7 error taxonomy).
var (
	// ErrEntryNotFound is returned by Open when the head locator has no
	// leaf in the branch.
	ErrEntryNotFound = errors.New("blob: entry not found")
	// ErrBlockNotFound is returned by Read/Flush when a block the blob
	// needs has a leaf but the block bytes have not been downloaded yet;
	// callers retry after sync makes progress.
	ErrBlockNotFound = errors.New("blob: block not found")
	// ErrOffsetOutOfRange reports a position outside a blob. No method of
	// this package returns it: Seek takes an unsigned position and accepts
	// any value.
	ErrOffsetOutOfRange = errors.New("blob: offset out of range")
)
