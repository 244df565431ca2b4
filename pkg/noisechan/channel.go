package noisechan

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/flynn/noise"
	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/protocol"
)

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)

// maxNonce is the cap on the per-direction message counter: exceeding it
// closes the channel with ErrExhausted (§4.6 "Per-direction message
// counter caps at u64::MAX - 1").
const maxNonce = math.MaxUint64 - 1

// Channel is one handshaken, encrypted (repository, peer) connection
// (§4.6). A single underlying transport connection typically carries a
// Dispatcher multiplexing several Channels, one per shared repository,
// plus a peer-exchange control channel.
type Channel struct {
	conn io.ReadWriteCloser
	br   *bufio.Reader

	sendMu  sync.Mutex
	send    *noise.CipherState
	recvMu  sync.Mutex
	recv    *noise.CipherState
	sendCtr uint64
	recvCtr uint64

	log zerolog.Logger
}

// Handshake runs the NN-PSK handshake over conn as role (Initiator or
// Responder), using psk as the pre-shared key (§4.6's salted hash of the
// repository's secret id). It blocks until both sides have completed the
// handshake or it fails.
func Handshake(conn io.ReadWriteCloser, role Role, psk [32]byte) (*Channel, error) {
	initiator := role == Initiator

	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:           cipherSuite,
		Pattern:               noise.HandshakeNN,
		Initiator:             initiator,
		Prologue:              []byte("warrensync-noise-v1"),
		PresharedKey:          psk[:],
		PresharedKeyPlacement: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
	}

	br := bufio.NewReader(conn)

	var csSend, csRecv *noise.CipherState
	if initiator {
		msg, _, _, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		if err := writeFrame(conn, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}

		reply, err := readFrame(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		_, csSend, csRecv, err = hs.ReadMessage(nil, reply)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
	} else {
		msg, err := readFrame(br)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		if _, _, _, err := hs.ReadMessage(nil, msg); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}

		reply, csRecvFirst, csSendFirst, err := hs.WriteMessage(nil, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		if err := writeFrame(conn, reply); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrHandshakeFailed, err)
		}
		csSend, csRecv = csRecvFirst, csSendFirst
	}

	return &Channel{
		conn: conn,
		br:   br,
		send: csSend,
		recv: csRecv,
		log:  log.WithComponent("noisechan"),
	}, nil
}

// Send encrypts and writes one envelope.
func (c *Channel) Send(env protocol.Envelope) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.sendCtr >= maxNonce {
		return ErrExhausted
	}

	var plain writeBuf
	if err := plain.encode(env); err != nil {
		return err
	}
	ciphertext := c.send.Encrypt(nil, nil, plain.bytes())
	c.sendCtr++
	return writeFrame(c.conn, ciphertext)
}

// Recv reads and decrypts one envelope.
func (c *Channel) Recv() (protocol.Envelope, error) {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	if c.recvCtr >= maxNonce {
		return protocol.Envelope{}, ErrExhausted
	}

	ciphertext, err := readFrame(c.br)
	if err != nil {
		return protocol.Envelope{}, err
	}
	plaintext, err := c.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return protocol.Envelope{}, fmt.Errorf("noisechan: decryption failed: %w", err)
	}
	c.recvCtr++

	var env protocol.Envelope
	if err := decodeBuf(plaintext, &env); err != nil {
		return protocol.Envelope{}, err
	}
	return env, nil
}

// Close closes the underlying connection.
func (c *Channel) Close() error {
	return c.conn.Close()
}
