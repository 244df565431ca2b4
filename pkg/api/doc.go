/*
Package api implements the request/response surface of §6.4: the one
socket boundary out-of-scope CLI and language-binding layers talk to in
order to drive a single open repository.

Unlike the teacher's pkg/api, which fronts a cluster of nodes/services/
tasks behind 30+ protoc-generated RPC methods, this package fronts one
repository (§4.1-§4.4): create/read/write/remove files and directories,
list the joint view across branches, fetch repository/sync status, and
mint share tokens (§6.3). There is no leader-forwarding or Raft proposal
step — a repository has no leader, only a local branch and zero or more
remote branches the background merger folds in (§4.4, §9).

The transport is still gRPC, per SPEC_FULL.md §11, but without a protoc
step: request/response types are plain Go structs registered with
encoding/gob (codec.go), and the service is wired by hand-building a
grpc.ServiceDesc (service.go) instead of generating one from a .proto
file. This keeps the teacher's gRPC dependency and its per-RPC method
dispatch shape while matching this core's existing gob-based wire codec
(pkg/protocol) rather than introducing a second serialization stack.
*/
package api
