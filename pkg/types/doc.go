/*
Package types defines the core data structures shared across Warren-Sync's
repository model: the content-addressed identifiers (BlockID, BlobID,
Locator), per-writer causal state (VersionVector), and the small enums
(NodeState, MultiBlockPresence, EntryKind, AccessMode, BlockRequestMode)
that the store, blob, directory, protocol, and tracker packages all build
on.

These types intentionally carry no I/O and no locking: they are pure
values, so every other package can pass them across goroutines and store
them in maps and bbolt keys without synchronization concerns.
*/
package types
