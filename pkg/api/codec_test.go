package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/types"
)

func TestGobCodecRoundTrip(t *testing.T) {
	var codec gobCodec

	var writerID types.WriterID
	writerID[0] = 3
	req := &ListEntriesRequest{Path: "/docs"}

	data, err := codec.Marshal(req)
	require.NoError(t, err)

	var got ListEntriesRequest
	require.NoError(t, codec.Unmarshal(data, &got))
	require.Equal(t, *req, got)
}

func TestGobCodecName(t *testing.T) {
	require.Equal(t, "gob", gobCodec{}.Name())
}
