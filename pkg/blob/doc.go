// Package blob presents a byte-stream view over a sequence of encrypted
// blocks addressed through a branch's snapshot tree (§4.2). The first
// block carries an 8-byte length header; everything else is the file's
// or directory's raw content.
package blob
