package api

import (
	"bytes"
	"encoding/gob"

	"google.golang.org/grpc/encoding"
)

// gobCodecName is the content-subtype under which gobCodec registers
// itself with grpc's global codec registry, replacing the default
// "proto" codec for this server/client pair. grpc dispatches purely by
// name, so requiring github.com/golang/protobuf's generated Message
// interface never comes into it.
const gobCodecName = "gob"

// gobCodec implements google.golang.org/grpc/encoding.Codec over plain
// Go structs via encoding/gob, the same serialization pkg/protocol uses
// for the sync wire format (codec.go), so the one process speaks exactly
// one struct-tagged encoding end to end instead of mixing gob internally
// and protobuf at the API boundary.
type gobCodec struct{}

func (gobCodec) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (gobCodec) Unmarshal(data []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func (gobCodec) Name() string { return gobCodecName }

func init() {
	encoding.RegisterCodec(gobCodec{})
}
