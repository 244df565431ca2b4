package protocol

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/types"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var writerID types.WriterID
	writerID[0] = 42

	env := Envelope{
		ChannelID: [32]byte{1, 2, 3},
		Message: RootNodeRequest{
			WriterID: writerID,
			DebugTag: 7,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, env))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, env.ChannelID, got.ChannelID)

	req, ok := got.Message.(RootNodeRequest)
	require.True(t, ok)
	assert.Equal(t, writerID, req.WriterID)
	assert.Equal(t, uint64(7), req.DebugTag)
}

func TestReadFrameRejectsOversizedLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestReadFrameReturnsEOFOnEmptyStream(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader(nil))
	assert.ErrorIs(t, err, io.EOF)
}

func TestEveryMessageVariantRoundTrips(t *testing.T) {
	var blockID types.BlockID
	blockID[0] = 9

	messages := []any{
		RootNodeRequest{DebugTag: 1},
		ChildNodesRequest{DebugTag: 2},
		BlockRequest{BlockID: blockID, DebugTag: 3},
		RootNodeResponse{DebugTag: 4},
		RootNodeErrorResponse{DebugTag: 5},
		InnerNodesResponse{DebugTag: 6},
		LeafNodesResponse{DebugTag: 7},
		ChildNodesErrorResponse{DebugTag: 8},
		BlockOfferResponse{BlockID: blockID, DebugTag: 9},
		BlockResponse{BlockID: blockID, Content: []byte("hi"), DebugTag: 10},
		BlockErrorResponse{BlockID: blockID, DebugTag: 11},
		Pex{Payload: []byte("addrs")},
	}

	for _, msg := range messages {
		var buf bytes.Buffer
		env := Envelope{Message: msg}
		require.NoError(t, WriteFrame(&buf, env))

		got, err := ReadFrame(&buf)
		require.NoError(t, err)
		assert.Equal(t, msg, got.Message)
	}
}

func TestKeyOfAndResponseKeyMatchForSameRequest(t *testing.T) {
	var writerID types.WriterID
	writerID[1] = 5

	reqKey := KeyOf(RootNodeRequest{WriterID: writerID})
	respKey := ResponseKey(RootNodeResponse{Proof: WireProof{WriterID: writerID}})
	assert.Equal(t, reqKey, respKey)

	errRespKey := ResponseKey(RootNodeErrorResponse{WriterID: writerID})
	assert.Equal(t, reqKey, errRespKey)
}

func TestKeyOfBlockRequestMatchesBlockResponses(t *testing.T) {
	var id types.BlockID
	id[0] = 3

	reqKey := KeyOf(BlockRequest{BlockID: id})
	assert.Equal(t, reqKey, ResponseKey(BlockResponse{BlockID: id}))
	assert.Equal(t, reqKey, ResponseKey(BlockErrorResponse{BlockID: id}))
}

func TestKeyOfUnknownVariantIsZeroValue(t *testing.T) {
	assert.Equal(t, RequestKey{}, KeyOf("not a request"))
	assert.Equal(t, RequestKey{}, ResponseKey(42))
}
