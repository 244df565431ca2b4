// Package peernet implements the out-of-scope-adjacent collaborators
// §4.6/§5 describe only at their interface: per-device runtime identity,
// process-wide connection deduplication (at most one connection per
// direction to a peer address), and the per-peer/per-link request permit
// pools the client uses to avoid one slow repository starving others
// sharing a connection. Actual transport listeners and discovery sources
// are out of scope (§1); this package only consumes "a stream of
// candidate peer addresses" and "byte-stream connections with remote
// address metadata".
package peernet
