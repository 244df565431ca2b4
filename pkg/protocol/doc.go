// Package protocol defines the sync wire message set (§4.5) and its
// length-delimited gob codec (§6.2). It is transport-agnostic: it reads
// and writes frames over any io.Reader/io.Writer, which in practice is
// one direction of a pkg/noisechan encrypted channel.
package protocol
