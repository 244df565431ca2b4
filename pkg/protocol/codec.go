package protocol

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	gob.Register(RootNodeRequest{})
	gob.Register(ChildNodesRequest{})
	gob.Register(BlockRequest{})
	gob.Register(RootNodeResponse{})
	gob.Register(RootNodeErrorResponse{})
	gob.Register(InnerNodesResponse{})
	gob.Register(LeafNodesResponse{})
	gob.Register(ChildNodesErrorResponse{})
	gob.Register(BlockOfferResponse{})
	gob.Register(BlockResponse{})
	gob.Register(BlockErrorResponse{})
	gob.Register(Pex{})
}

// maxFrameSize bounds a single frame's payload, defending against a
// corrupt or hostile length prefix driving an unbounded allocation.
const maxFrameSize = 8 * 1024 * 1024

// Envelope is the unit carried inside one Noise-encrypted channel frame
// (§4.5): a channel id plus a tagged-union message body. Message is
// `any` rather than a fixed sum type because gob, registered per
// concrete type in init() above, already gives us a stable tag-numbered
// encoding without hand-rolling a discriminator byte.
type Envelope struct {
	ChannelID [32]byte
	Message   any
}

// WriteFrame encodes env as length(4B, BE) || gob(Envelope), per §6.2.
func WriteFrame(w io.Writer, env Envelope) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(env); err != nil {
		return fmt.Errorf("protocol: failed to encode frame: %w", err)
	}

	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(buf.Len()))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// ReadFrame decodes one frame from r.
func ReadFrame(r io.Reader) (Envelope, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return Envelope{}, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameSize {
		return Envelope{}, fmt.Errorf("protocol: frame of %d bytes exceeds max %d", n, maxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Envelope{}, err
	}

	var env Envelope
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: failed to decode frame: %w", err)
	}
	return env, nil
}
