package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cuemby/warren-sync/pkg/api"
	"github.com/cuemby/warren-sync/pkg/config"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/repository"
)

// Version information (set via ldflags during build).
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "warrensync-repld",
	Short: "warrensync-repld runs one synchronized repository's replica",
	Long: `warrensync-repld hosts a single Warren-Sync repository replica: it opens
the replica's local store, derives its identity, and serves the repository
control API of §6.4 for callers (CLI front-ends, FFI bindings) to create,
read, write, and list entries against. Peer-to-peer block synchronization
itself is driven by pkg/client/pkg/server against an already-handshaken
Noise channel, which an out-of-scope network front-end is expected to
supply; this binary is the minimal composition root the control API needs
a host process for, not a full peer-to-peer daemon.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"warrensync-repld version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.Flags().String("config", "", "Path to a YAML config file (defaults applied for anything unset)")
	rootCmd.Flags().Bool("read-only", false, "Start without a write key even if one is on record (blind/read-only replica)")
}

func run(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	readOnly, _ := cmd.Flags().GetBool("read-only")

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	log.Init(cfg.Logging.ToLogConfig())
	logger := log.WithComponent("repld")

	id, err := loadOrCreateIdentity(cfg.Repository.DataDir)
	if err != nil {
		return err
	}

	writeKeySeed := id.WriteKeySeed
	if readOnly {
		writeKeySeed = nil
	}
	signer, err := crypto.NewSigner(id.WriteKeySeed)
	if err != nil {
		return fmt.Errorf("repld: failed to derive signer: %w", err)
	}
	repoID := crypto.RepositoryIDFromPublicKey(signer.PublicKey())

	repo, err := repository.Open(repository.Config{
		DataDir:        cfg.Repository.DataDir,
		RepositoryID:   repoID,
		ReadKey:        id.ReadKey,
		WriteKeySeed:   writeKeySeed,
		WritePublicKey: signer.PublicKey(),
		LocalWriterID:  id.LocalWriterID,
		QuotaBytes:     cfg.Repository.QuotaBytes,
		RequestMode:    cfg.RequestMode(),
	})
	if err != nil {
		return fmt.Errorf("repld: failed to open repository: %w", err)
	}
	defer repo.Close()

	repo.StartWorkers()
	defer repo.StopWorkers()

	logger.Info().
		Str("repo_id", repoID.String()).
		Str("writer_id", id.String()).
		Bool("writable", repo.Writable()).
		Msg("repository opened")

	server := api.NewServer(repo)
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Start(cfg.API.ListenAddress) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return err
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
		server.Stop()
		return nil
	}
}
