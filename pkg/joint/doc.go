// Package joint presents the union of a directory across several
// branches to the user and implements the background merge of a remote
// branch's directory tree into the local branch (§4.4).
package joint
