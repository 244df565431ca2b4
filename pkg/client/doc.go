// Package client implements the sync protocol client side (§4.5.2,
// §4.5.3, §4.5.4): pending-request tracking keyed by content identity
// rather than send order, the per-peer/per-link permit-gated send queue,
// the root-node decision procedure, and the block request flow that
// hands accepted tracker offers off as Block requests.
//
// Grounded on the teacher's pkg/client (a long-lived connection wrapper
// issuing requests and handling responses) and pkg/worker's event-driven
// service loop, replumbed from gRPC calls and container reconciliation
// onto the root-node/child-node/block message set of §4.5.
package client
