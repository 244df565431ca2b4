package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/branch"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/metrics"
	"github.com/cuemby/warren-sync/pkg/peernet"
	"github.com/cuemby/warren-sync/pkg/storage"
	"github.com/cuemby/warren-sync/pkg/tracker"
	"github.com/cuemby/warren-sync/pkg/types"
)

// Config bundles what it takes to open one repository (§4.1), the
// composition-root analogue of the teacher's manager.Config — but
// narrowed to what a sync repository actually owns: no raft, no secrets
// manager, no ingress proxy, no ACME client.
type Config struct {
	DataDir      string
	RepositoryID types.RepositoryID

	// ReadKey is the 32-byte symmetric key used to derive the block
	// cipher and locator cipher.
	ReadKey []byte

	// WriteKeySeed is this replica's write key seed, present only when
	// the replica holds write access (§6.3 AccessWrite). Nil for a
	// blind or read-only replica.
	WriteKeySeed []byte

	// WritePublicKey authenticates remote proofs. Always required: even
	// a write-capable replica verifies proofs received from peers with
	// it, and a read-only replica has no other way to do so.
	WritePublicKey []byte

	// LocalWriterID identifies this replica's own branch. Writer ids are
	// repository-scoped and distinct from the repository's single shared
	// write key (spec.md §3: "Signature is over hash(writer_id,
	// version_vector, hash) using the repository's write key" — one key
	// signs every writer's proofs). Generating and persisting this id
	// across restarts is the caller's responsibility (cmd/warrensync-repld).
	LocalWriterID types.WriterID

	QuotaBytes  int64
	RequestMode types.BlockRequestMode
}

// Repository is the top-level façade composing the store, crypto
// material, local and remote branches, the joint-directory merge engine,
// the block tracker, and the background workers of §9 into one running
// repository (§4.1-§4.7), grounded on the teacher's manager.Manager
// composition root.
type Repository struct {
	id    types.RepositoryID
	store *storage.Store

	blockCipher *crypto.BlockCipher
	locCipher   *crypto.LocatorCipher
	verifier    *crypto.Verifier
	signer      *crypto.Signer // nil on a read-only replica

	// readKey and writeKeySeed are retained only so GenerateShareToken
	// (§6.3) can mint tokens at or below this replica's own access
	// level; they are never written back to the store, which only ever
	// holds derived ciphertext and signatures.
	readKey      []byte
	writeKeySeed []byte

	localWriterID types.WriterID
	quota         int64
	mode          types.BlockRequestMode

	tracker *tracker.Tracker
	dedup   *peernet.Dedup
	events  *Broker

	mu          sync.Mutex
	stopWorkers chan struct{}
	workersWG   sync.WaitGroup

	log zerolog.Logger
}

// Open opens (creating if absent) the repository's on-disk store and
// wires up the components every background worker and protocol channel
// needs, but does not start the background workers — call StartWorkers
// once the repository is ready to run unattended.
func Open(cfg Config) (*Repository, error) {
	store, err := storage.Open(cfg.DataDir, cfg.RepositoryID, cfg.QuotaBytes)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to open store: %w", err)
	}

	blockCipher, err := crypto.NewBlockCipher(cfg.ReadKey)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	locCipher, err := crypto.NewLocatorCipher(cfg.ReadKey)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}
	verifier, err := crypto.NewVerifier(cfg.WritePublicKey)
	if err != nil {
		return nil, fmt.Errorf("repository: %w", err)
	}

	var signer *crypto.Signer
	if len(cfg.WriteKeySeed) > 0 {
		signer, err = crypto.NewSigner(cfg.WriteKeySeed)
		if err != nil {
			return nil, fmt.Errorf("repository: %w", err)
		}
	}

	r := &Repository{
		id:            cfg.RepositoryID,
		store:         store,
		blockCipher:   blockCipher,
		locCipher:     locCipher,
		verifier:      verifier,
		signer:        signer,
		readKey:       append([]byte(nil), cfg.ReadKey...),
		writeKeySeed:  append([]byte(nil), cfg.WriteKeySeed...),
		localWriterID: cfg.LocalWriterID,
		quota:         cfg.QuotaBytes,
		mode:          cfg.RequestMode,
		tracker:       tracker.New(cfg.RequestMode),
		dedup:         peernet.NewDedup(),
		events:        NewBroker(),
		stopWorkers:   make(chan struct{}),
		log: log.WithComponent("repository").With().
			Str("repo_id", cfg.RepositoryID.String()).Logger(),
	}

	metrics.StoreQuotaBytes.Set(float64(cfg.QuotaBytes))

	if signer != nil {
		if _, err := r.localDirectory(); err != nil {
			store.Close()
			return nil, fmt.Errorf("repository: failed to initialize root directory: %w", err)
		}
	}

	return r, nil
}

// Close stops any running background workers and closes the store.
func (r *Repository) Close() error {
	r.StopWorkers()
	return r.store.Close()
}

// ID returns the repository's public identifier.
func (r *Repository) ID() types.RepositoryID { return r.id }

// LocalWriterID returns the writer id this replica writes under.
func (r *Repository) LocalWriterID() types.WriterID { return r.localWriterID }

// Writable reports whether this replica holds the write key.
func (r *Repository) Writable() bool { return r.signer != nil }

// Store returns the underlying store, for callers (pkg/client,
// pkg/server) that operate on it directly at the protocol layer.
func (r *Repository) Store() *storage.Store { return r.store }

// BlockCipher returns the repository's block cipher.
func (r *Repository) BlockCipher() *crypto.BlockCipher { return r.blockCipher }

// LocatorCipher returns the repository's locator cipher.
func (r *Repository) LocatorCipher() *crypto.LocatorCipher { return r.locCipher }

// Verifier returns the repository's proof verifier.
func (r *Repository) Verifier() *crypto.Verifier { return r.verifier }

// Tracker returns the repository's block tracker, shared by every open
// channel's client (§4.7).
func (r *Repository) Tracker() *tracker.Tracker { return r.tracker }

// Dedup returns the repository's connection-dedup registry (§5).
func (r *Repository) Dedup() *peernet.Dedup { return r.dedup }

// Events returns the repository's event broker, the subscription point
// for background workers and per-peer server loops (§9).
func (r *Repository) Events() *Broker { return r.events }

// LocalBranch opens this replica's own writable branch.
func (r *Repository) LocalBranch() *branch.Branch {
	return branch.Local(r.store, r.localWriterID, r.signer)
}

// RemoteBranch opens a read-only view of another writer's branch.
func (r *Repository) RemoteBranch(writerID types.WriterID) *branch.Branch {
	return branch.Remote(r.store, writerID)
}

// localDirectory opens (creating on first use) this replica's root
// directory.
func (r *Repository) localDirectory() (*directory.Directory, error) {
	return directory.OpenRoot(r.store, r.blockCipher, r.locCipher, r.LocalBranch())
}

// KnownWriters returns every writer id this repository currently has any
// root node record for, local or remote, sorted for deterministic
// iteration (used by the client's startup root-node request sweep and by
// the background workers).
func (r *Repository) KnownWriters() ([]types.WriterID, error) {
	reader, err := r.store.AcquireRead()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	roots, err := reader.LoadRootNodesInAnyState()
	if err != nil {
		return nil, err
	}

	seen := make(map[types.WriterID]bool)
	var out []types.WriterID
	for _, root := range roots {
		w := root.Proof.WriterID
		if seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	if !seen[r.localWriterID] {
		out = append(out, r.localWriterID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// branchStateCounts tallies each known writer's current root node state,
// the input to the warrensync_branches_total{state} gauge.
func (r *Repository) branchStateCounts() (map[types.NodeState]int, error) {
	writers, err := r.KnownWriters()
	if err != nil {
		return nil, err
	}

	reader, err := r.store.AcquireRead()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	counts := make(map[types.NodeState]int)
	for _, w := range writers {
		root, err := reader.LoadRootNode(w, storage.FilterAny)
		if err == storage.ErrEntryNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		counts[root.Summary.State]++
	}
	return counts, nil
}
