/*
Package storage provides the embedded, transactional store backing a
repository's content-addressed snapshot tree (§4.1). Like the teacher's
BoltDB-backed cluster store, it keeps one bbolt database per repository
and maps each logical table from §6.1 onto its own bucket:

	┌──────────────────────── BBOLT STORE ──────────────────────────┐
	│                                                                  │
	│  ┌────────────────────────────────────────────┐               │
	│  │                  Store                       │               │
	│  │  - File: <dataDir>/<repo-id>.db             │               │
	│  │  - Format: B+tree with MVCC                 │               │
	│  │  - One writer, many concurrent readers      │               │
	│  └──────────────────┬─────────────────────────┘               │
	│                     │                                          │
	│  ┌──────────────────▼─────────────────────────┐               │
	│  │              Bucket structure                │               │
	│  │  blocks                (BlockID)             │               │
	│  │  snapshot_root_nodes   (WriterID||Hash)      │               │
	│  │  snapshot_inner_nodes  (ParentHash||bucket)  │               │
	│  │  snapshot_leaf_nodes   (ParentHash||Locator) │               │
	│  │  missing_blocks        (BlockID)             │               │
	│  │  missing_block_offers  (BlockID||ClientID)   │               │
	│  │  received_nodes        (ClientID||Hash)      │               │
	│  │  metadata              (key)                 │               │
	│  └──────────────────┬─────────────────────────┘               │
	│                     │                                          │
	│  ┌──────────────────▼─────────────────────────┐               │
	│  │          Snapshot tree (§4.1, §3)            │               │
	│  │  root(Proof, Summary)                        │               │
	│  │    -> 256 inner slots, indexed by locator[0] │               │
	│  │         -> leaf set, keyed by full locator   │               │
	│  │              -> blocks, keyed by BlockID     │               │
	│  └──────────────────────────────────────────────┘              │
	└──────────────────────────────────────────────────────────────────┘

The tree depth used here is bounded to a single inner-node level (one
256-way split on the locator's first byte) rather than the unbounded
recursive trie a from-scratch implementation might use; see DESIGN.md for
the rationale. This keeps every invariant in spec.md section 3 intact
(content-addressing, single-writer version-vector monotonicity, per-branch
leaf uniqueness) while keeping the bucket layout close to the teacher's
flat, JSON-per-row BoltStore style.

Write transactions are serialized the way bbolt already serializes
db.Begin(true) callers; this package does not add a second lock on top of
it, since doing so would just be redundant queueing in front of bbolt's
own.
*/
package storage
