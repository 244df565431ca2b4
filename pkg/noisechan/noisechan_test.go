package noisechan

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/types"
)

func handshakePair(t *testing.T, psk [32]byte) (initiator, responder *Channel) {
	t.Helper()
	connA, connB := net.Pipe()

	type result struct {
		ch  *Channel
		err error
	}
	initCh := make(chan result, 1)
	respCh := make(chan result, 1)

	go func() {
		ch, err := Handshake(connA, Initiator, psk)
		initCh <- result{ch, err}
	}()
	go func() {
		ch, err := Handshake(connB, Responder, psk)
		respCh <- result{ch, err}
	}()

	timeout := time.After(5 * time.Second)
	var initRes, respRes result
	for i := 0; i < 2; i++ {
		select {
		case initRes = <-initCh:
		case respRes = <-respCh:
		case <-timeout:
			t.Fatal("handshake timed out")
		}
	}
	require.NoError(t, initRes.err)
	require.NoError(t, respRes.err)
	return initRes.ch, respRes.ch
}

func TestHandshakeAndSendRecvRoundTrip(t *testing.T) {
	psk := PresharedKey([]byte("shared-repo-secret"))
	initiator, responder := handshakePair(t, psk)
	defer initiator.Close()
	defer responder.Close()

	var writerID types.WriterID
	writerID[0] = 1
	env := protocol.Envelope{
		ChannelID: [32]byte{9},
		Message:   protocol.RootNodeRequest{WriterID: writerID, DebugTag: 11},
	}

	require.NoError(t, initiator.Send(env))

	got, err := responder.Recv()
	require.NoError(t, err)
	require.Equal(t, env.ChannelID, got.ChannelID)
	req, ok := got.Message.(protocol.RootNodeRequest)
	require.True(t, ok)
	require.Equal(t, uint64(11), req.DebugTag)
}

func TestHandshakeFailsWithMismatchedPSK(t *testing.T) {
	connA, connB := net.Pipe()

	pskA := PresharedKey([]byte("secret-a"))
	pskB := PresharedKey([]byte("secret-b"))

	errCh := make(chan error, 2)
	go func() {
		_, err := Handshake(connA, Initiator, pskA)
		errCh <- err
	}()
	go func() {
		_, err := Handshake(connB, Responder, pskB)
		errCh <- err
	}()

	timeout := time.After(5 * time.Second)
	sawError := false
	for i := 0; i < 2; i++ {
		select {
		case err := <-errCh:
			if err != nil {
				sawError = true
			}
		case <-timeout:
			t.Fatal("handshake timed out")
		}
	}
	require.True(t, sawError, "mismatched PSK must fail the handshake on at least one side")
}

func TestChooseRoleIsConsistentAcrossBothSides(t *testing.T) {
	var repoID types.RepositoryID
	repoID[0] = 5
	var a, b [16]byte
	a[0] = 1
	b[0] = 2

	roleFromA := ChooseRole(repoID, a, b)
	roleFromB := ChooseRole(repoID, b, a)
	require.NotEqual(t, roleFromA, roleFromB, "exactly one side must initiate")
}

func TestChannelKeyIsOrderIndependent(t *testing.T) {
	var repoID types.RepositoryID
	repoID[0] = 7
	var a, b [16]byte
	a[0] = 3
	b[0] = 4

	require.Equal(t, ChannelKey(repoID, a, b), ChannelKey(repoID, b, a))
}
