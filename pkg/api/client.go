package api

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is a thin typed wrapper over a grpc.ClientConn dialed against a
// Server, the Go-side counterpart of what an out-of-scope CLI or
// language binding would otherwise hand-roll against the same wire
// methods (§6.4).
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a Server listening at addr.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(gobCodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("api: failed to dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func invoke[Req, Resp any](ctx context.Context, c *Client, method string, req *Req) (*Resp, error) {
	resp := new(Resp)
	fullMethod := fmt.Sprintf("/%s/%s", serviceName, method)
	if err := c.conn.Invoke(ctx, fullMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) GetRepositoryInfo(ctx context.Context, req *GetRepositoryInfoRequest) (*GetRepositoryInfoResponse, error) {
	return invoke[GetRepositoryInfoRequest, GetRepositoryInfoResponse](ctx, c, "GetRepositoryInfo", req)
}

func (c *Client) ListEntries(ctx context.Context, req *ListEntriesRequest) (*ListEntriesResponse, error) {
	return invoke[ListEntriesRequest, ListEntriesResponse](ctx, c, "ListEntries", req)
}

func (c *Client) CreateFile(ctx context.Context, req *CreateFileRequest) (*CreateFileResponse, error) {
	return invoke[CreateFileRequest, CreateFileResponse](ctx, c, "CreateFile", req)
}

func (c *Client) CreateDirectory(ctx context.Context, req *CreateDirectoryRequest) (*CreateDirectoryResponse, error) {
	return invoke[CreateDirectoryRequest, CreateDirectoryResponse](ctx, c, "CreateDirectory", req)
}

func (c *Client) ReadFile(ctx context.Context, req *ReadFileRequest) (*ReadFileResponse, error) {
	return invoke[ReadFileRequest, ReadFileResponse](ctx, c, "ReadFile", req)
}

func (c *Client) WriteFile(ctx context.Context, req *WriteFileRequest) (*WriteFileResponse, error) {
	return invoke[WriteFileRequest, WriteFileResponse](ctx, c, "WriteFile", req)
}

func (c *Client) RemoveEntry(ctx context.Context, req *RemoveEntryRequest) (*RemoveEntryResponse, error) {
	return invoke[RemoveEntryRequest, RemoveEntryResponse](ctx, c, "RemoveEntry", req)
}

func (c *Client) GenerateShareToken(ctx context.Context, req *GenerateShareTokenRequest) (*GenerateShareTokenResponse, error) {
	return invoke[GenerateShareTokenRequest, GenerateShareTokenResponse](ctx, c, "GenerateShareToken", req)
}
