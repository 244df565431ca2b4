package api

import (
	"context"
	"crypto/rand"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/repository"
	"github.com/cuemby/warren-sync/pkg/types"
)

const bufSize = 1 << 20

// newTestRepo opens a fresh write-capable repository backed by a temp dir,
// the fixture every test below drives requests against.
func newTestRepo(t *testing.T) *repository.Repository {
	t.Helper()

	readKey := make([]byte, crypto.ReadKeySize)
	_, err := rand.Read(readKey)
	require.NoError(t, err)

	seed := make([]byte, crypto.WriteKeySize)
	_, err = rand.Read(seed)
	require.NoError(t, err)
	signer, err := crypto.NewSigner(seed)
	require.NoError(t, err)

	var writerID types.WriterID
	_, err = rand.Read(writerID[:])
	require.NoError(t, err)

	repo, err := repository.Open(repository.Config{
		DataDir:        t.TempDir(),
		RepositoryID:   crypto.RepositoryIDFromPublicKey(signer.PublicKey()),
		ReadKey:        readKey,
		WriteKeySeed:   seed,
		WritePublicKey: signer.PublicKey(),
		LocalWriterID:  writerID,
		RequestMode:    types.ModeLazy,
	})
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

// newTestClient wires an in-process gRPC client/server pair over a
// bufconn listener, so the full codec.go/service.go/server.go path runs
// without touching a real network socket.
func newTestClient(t *testing.T, repo *repository.Repository) *Client {
	t.Helper()

	lis := bufconn.Listen(bufSize)
	gs := grpc.NewServer()
	RegisterService(gs, repo)
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.Dial()
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(gobCodecName)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &Client{conn: conn}
}

func TestGetRepositoryInfoOverGRPC(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)

	resp, err := client.GetRepositoryInfo(context.Background(), &GetRepositoryInfoRequest{})
	require.NoError(t, err)
	require.Equal(t, repo.ID(), resp.RepositoryID)
	require.True(t, resp.Writable)
	require.Equal(t, repo.LocalWriterID(), resp.LocalWriterID)
}

func TestCreateAndReadFileOverGRPC(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)
	ctx := context.Background()

	_, err := client.CreateFile(ctx, &CreateFileRequest{Path: "", Name: "hello.txt"})
	require.NoError(t, err)

	_, err = client.WriteFile(ctx, &WriteFileRequest{Name: "hello.txt", Data: []byte("hi there")})
	require.NoError(t, err)

	readResp, err := client.ReadFile(ctx, &ReadFileRequest{Name: "hello.txt", Length: 32})
	require.NoError(t, err)
	require.Equal(t, []byte("hi there"), readResp.Data)
}

func TestListEntriesOverGRPC(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)
	ctx := context.Background()

	_, err := client.CreateFile(ctx, &CreateFileRequest{Name: "a.txt"})
	require.NoError(t, err)
	_, err = client.CreateDirectory(ctx, &CreateDirectoryRequest{Name: "sub"})
	require.NoError(t, err)

	resp, err := client.ListEntries(ctx, &ListEntriesRequest{})
	require.NoError(t, err)

	var names []string
	for _, e := range resp.Entries {
		names = append(names, e.Name)
	}
	require.ElementsMatch(t, []string{"a.txt", "sub"}, names)
}

func TestRemoveEntryOverGRPC(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)
	ctx := context.Background()

	_, err := client.CreateFile(ctx, &CreateFileRequest{Name: "doomed.txt"})
	require.NoError(t, err)

	_, err = client.RemoveEntry(ctx, &RemoveEntryRequest{Name: "doomed.txt"})
	require.NoError(t, err)

	resp, err := client.ListEntries(ctx, &ListEntriesRequest{})
	require.NoError(t, err)
	for _, e := range resp.Entries {
		require.NotEqual(t, "doomed.txt", e.Name)
	}
}

func TestGenerateShareTokenOverGRPC(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)
	ctx := context.Background()

	resp, err := client.GenerateShareToken(ctx, &GenerateShareTokenRequest{
		Mode:          types.AccessRead,
		SuggestedName: "shared-repo",
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
}

func TestGenerateShareTokenRejectsUnknownMode(t *testing.T) {
	repo := newTestRepo(t)
	client := newTestClient(t, repo)
	ctx := context.Background()

	// An access mode outside Blind/Read/Write is rejected with an error.
	_, err := client.GenerateShareToken(ctx, &GenerateShareTokenRequest{Mode: types.AccessMode(99)})
	require.Error(t, err)
}
