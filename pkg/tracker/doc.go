// Package tracker implements the block tracker of §4.7: it ensures each
// required-and-offered block is being fetched from at most one peer at a
// time, with automatic fallback to another offering peer on cancel.
// Grounded on the teacher's pkg/scheduler assignment-with-fallback
// pattern (assign a work item to exactly one worker, reassign on
// failure), replumbed here for block/client offer-accept semantics
// instead of container/node placement.
package tracker
