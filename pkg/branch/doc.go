// Package branch wraps a single writer's current root node and version
// vector: the per-writer branch of §3/§4.1, the unit a local write
// advances and a remote snapshot replaces wholesale on receive.
package branch
