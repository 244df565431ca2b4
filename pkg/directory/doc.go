// Package directory serializes a name -> EntryData mapping into a blob
// (§4.3), implementing entry lookup, creation, and the causal removal
// and move policy a single writer's view of one directory requires.
// Reconciling several writers' views of the "same" directory into one
// surfaced tree is pkg/joint's job, built on top of this package.
package directory
