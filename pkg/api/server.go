package api

import (
	"fmt"
	"net"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/repository"
)

// Server hosts the repository API (§6.4) over a gRPC listener, the
// counterpart of the teacher's api.Server but fronting one Repository
// instead of a cluster *manager.Manager, and without the mTLS/join-token
// machinery a single-repository control socket has no use for (a caller
// that can reach the socket at all already has whatever local
// permissions the OS grants it, the same trust boundary a Unix-domain
// socket gives any other local daemon).
type Server struct {
	grpcServer *grpc.Server
	listener   net.Listener
	log        zerolog.Logger
}

// NewServer builds a Server wired to repo.
func NewServer(repo *repository.Repository) *Server {
	gs := grpc.NewServer()
	RegisterService(gs, repo)
	return &Server{
		grpcServer: gs,
		log:        log.WithComponent("api"),
	}
}

// Start listens on addr and serves until Stop is called. It blocks the
// calling goroutine, matching the teacher's Server.Start contract.
func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: failed to listen on %s: %w", addr, err)
	}
	s.listener = lis
	s.log.Info().Str("addr", addr).Msg("api server listening")
	return s.grpcServer.Serve(lis)
}

// Stop gracefully stops the server, waiting for in-flight RPCs.
func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}
