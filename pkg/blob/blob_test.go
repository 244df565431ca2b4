package blob

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/types"
)

type fixture struct {
	store     *storage.Store
	cipher    *crypto.BlockCipher
	locCipher *crypto.LocatorCipher
	writerID  types.WriterID
	signer    *crypto.Signer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	var repoID types.RepositoryID
	if _, err := rand.Read(repoID[:]); err != nil {
		t.Fatal(err)
	}
	store, err := storage.Open(t.TempDir(), repoID, 0)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	var readKey [32]byte
	if _, err := rand.Read(readKey[:]); err != nil {
		t.Fatal(err)
	}
	cipher, err := crypto.NewBlockCipher(readKey[:])
	if err != nil {
		t.Fatal(err)
	}
	locCipher, err := crypto.NewLocatorCipher(readKey[:])
	if err != nil {
		t.Fatal(err)
	}

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		t.Fatal(err)
	}
	signer, err := crypto.NewSigner(seed[:])
	if err != nil {
		t.Fatal(err)
	}
	var writerID types.WriterID
	copy(writerID[:], signer.PublicKey())

	return &fixture{store: store, cipher: cipher, locCipher: locCipher, writerID: writerID, signer: signer}
}

// P1: writing content then reopening the blob round-trips it exactly,
// including across a multi-block boundary.
func TestRoundTrip(t *testing.T) {
	fx := newFixture(t)

	b, err := Create(fx.store, fx.cipher, fx.locCipher, fx.writerID, fx.signer)
	if err != nil {
		t.Fatal(err)
	}

	payload := bytes.Repeat([]byte("ouisync-data-"), 4000) // spans multiple blocks
	if _, err := b.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.Len() != uint64(len(payload)) {
		t.Fatalf("expected length %d, got %d", len(payload), b.Len())
	}

	reopened, err := Open(fx.store, fx.cipher, fx.locCipher, fx.writerID, fx.signer, b.BlobID())
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != uint64(len(payload)) {
		t.Fatalf("expected reopened length %d, got %d", len(payload), reopened.Len())
	}

	got := make([]byte, len(payload))
	n, err := reopened.Read(got)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(payload) {
		t.Fatalf("expected to read %d bytes, got %d", len(payload), n)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("round-tripped content does not match")
	}
}

func TestTruncateFreesBlocks(t *testing.T) {
	fx := newFixture(t)

	b, err := Create(fx.store, fx.cipher, fx.locCipher, fx.writerID, fx.signer)
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("x"), 100000)
	if _, err := b.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := b.Truncate(10); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}
	if b.Len() != 10 {
		t.Fatalf("expected length 10, got %d", b.Len())
	}

	reopened, err := Open(fx.store, fx.cipher, fx.locCipher, fx.writerID, fx.signer, b.BlobID())
	if err != nil {
		t.Fatal(err)
	}
	if reopened.Len() != 10 {
		t.Fatalf("expected reopened length 10, got %d", reopened.Len())
	}
}

func TestForkSharesBlocks(t *testing.T) {
	fx := newFixture(t)

	var seed2 [32]byte
	if _, err := rand.Read(seed2[:]); err != nil {
		t.Fatal(err)
	}
	signer2, err := crypto.NewSigner(seed2[:])
	if err != nil {
		t.Fatal(err)
	}
	var writer2 types.WriterID
	copy(writer2[:], signer2.PublicKey())

	b, err := Create(fx.store, fx.cipher, fx.locCipher, fx.writerID, fx.signer)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("fork me")
	if _, err := b.Write(payload); err != nil {
		t.Fatal(err)
	}
	if err := b.Flush(); err != nil {
		t.Fatal(err)
	}

	dstID, err := b.Fork(writer2, signer2)
	if err != nil {
		t.Fatal(err)
	}

	forked, err := Open(fx.store, fx.cipher, fx.locCipher, writer2, signer2, dstID)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(payload))
	if _, err := forked.Read(got); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatal("forked blob content does not match source")
	}
}
