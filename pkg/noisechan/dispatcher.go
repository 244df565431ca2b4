package noisechan

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/peernet"
	"github.com/cuemby/warren-sync/pkg/protocol"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Dispatcher multiplexes the several Noise channels a pair of peers may
// share (one per shared repository) plus a peer-exchange control channel
// (§4.6). Each Channel here owns its own handshaken cipher state keyed by
// ChannelKey; transport connections themselves are an out-of-scope
// collaborator (§1), so the dispatcher is deliberately connection-shaped
// rather than literal single-socket byte multiplexing: it hands each new
// channel whatever io.ReadWriteCloser the caller's connection layer
// supplies (e.g. one logical stream per repository over a stream-
// multiplexing transport, or a dedicated socket), and tracks them by key
// so the client/server layers above can look one up by repository.
type Dispatcher struct {
	mu       sync.Mutex
	channels map[[32]byte]*Channel

	pexConn io.ReadWriteCloser
	pexMu   sync.Mutex

	runtimeID peernet.RuntimeID
	log       zerolog.Logger
}

// NewDispatcher builds a dispatcher for one peer connection, identified
// by this process's runtime id for role selection (§9 "Peer identity").
func NewDispatcher(runtimeID peernet.RuntimeID) *Dispatcher {
	return &Dispatcher{
		channels:  make(map[[32]byte]*Channel),
		runtimeID: runtimeID,
		log:       log.WithComponent("dispatcher"),
	}
}

// BindPex attaches the control connection used for peer-exchange traffic
// (§4.5 "Pex(payload)").
func (d *Dispatcher) BindPex(conn io.ReadWriteCloser) {
	d.pexMu.Lock()
	defer d.pexMu.Unlock()
	d.pexConn = conn
}

// SendPex writes a peer-exchange payload on the control connection.
func (d *Dispatcher) SendPex(p protocol.Pex) error {
	d.pexMu.Lock()
	defer d.pexMu.Unlock()
	if d.pexConn == nil {
		return fmt.Errorf("noisechan: no pex connection bound")
	}
	var buf writeBuf
	if err := buf.encode(p); err != nil {
		return err
	}
	return writeFrame(d.pexConn, buf.bytes())
}

// RecvPex reads one peer-exchange payload from the control connection.
func (d *Dispatcher) RecvPex() (protocol.Pex, error) {
	d.pexMu.Lock()
	conn := d.pexConn
	d.pexMu.Unlock()
	if conn == nil {
		return protocol.Pex{}, fmt.Errorf("noisechan: no pex connection bound")
	}
	raw, err := readFrame(conn)
	if err != nil {
		return protocol.Pex{}, err
	}
	var p protocol.Pex
	if err := decodeBuf(raw, &p); err != nil {
		return protocol.Pex{}, err
	}
	return p, nil
}

// Open performs the Noise NN-PSK handshake for the (repoPublicID, peer)
// channel over conn and registers the resulting Channel, keyed so later
// callers (Lookup) can find it again without re-handshaking.
func (d *Dispatcher) Open(conn io.ReadWriteCloser, repoPublicID, secretRepoID types.RepositoryID, peerRuntimeID peernet.RuntimeID) (*Channel, error) {
	key := ChannelKey(repoPublicID, d.runtimeID, peerRuntimeID)
	role := ChooseRole(secretRepoID, d.runtimeID, peerRuntimeID)
	psk := PresharedKey(secretRepoID[:])

	ch, err := Handshake(conn, role, psk)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.channels[key] = ch
	d.mu.Unlock()
	d.log.Info().Str("channel_key", fmt.Sprintf("%x", key[:8])).Str("role", roleString(role)).Msg("channel established")
	return ch, nil
}

// Lookup returns the already-open channel for (repoPublicID, peer), if
// any.
func (d *Dispatcher) Lookup(repoPublicID types.RepositoryID, peerRuntimeID peernet.RuntimeID) (*Channel, bool) {
	key := ChannelKey(repoPublicID, d.runtimeID, peerRuntimeID)
	d.mu.Lock()
	defer d.mu.Unlock()
	ch, ok := d.channels[key]
	return ch, ok
}

// Forget drops the registration for a channel that has closed, so a
// reconnect attempt re-handshakes instead of reusing a dead entry.
func (d *Dispatcher) Forget(repoPublicID types.RepositoryID, peerRuntimeID peernet.RuntimeID) {
	key := ChannelKey(repoPublicID, d.runtimeID, peerRuntimeID)
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.channels, key)
}

// Close closes every registered channel and the pex connection.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	for _, ch := range d.channels {
		ch.Close()
	}
	d.channels = make(map[[32]byte]*Channel)
	d.mu.Unlock()

	d.pexMu.Lock()
	defer d.pexMu.Unlock()
	if d.pexConn != nil {
		return d.pexConn.Close()
	}
	return nil
}

func roleString(r Role) string {
	if r == Initiator {
		return "initiator"
	}
	return "responder"
}
