package noisechan

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

// maxFrameSize bounds both the handshake frames and the encrypted
// envelope frames exchanged over the raw connection.
const maxFrameSize = 8 * 1024 * 1024

func writeFrame(w io.Writer, payload []byte) error {
	var lenPrefix [4]byte
	binary.BigEndian.PutUint32(lenPrefix[:], uint32(len(payload)))
	if _, err := w.Write(lenPrefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenPrefix [4]byte
	if _, err := io.ReadFull(r, lenPrefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenPrefix[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("noisechan: frame of %d bytes exceeds max %d", n, maxFrameSize)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// writeBuf is a tiny gob-encoding helper so Channel.Send can encrypt the
// already-serialized envelope bytes directly.
type writeBuf struct {
	buf bytes.Buffer
}

func (w *writeBuf) encode(v any) error {
	return gob.NewEncoder(&w.buf).Encode(v)
}

func (w *writeBuf) bytes() []byte {
	return w.buf.Bytes()
}

func decodeBuf(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}
