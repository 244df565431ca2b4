package storage

import (
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
	"github.com/rs/zerolog"

	"github.com/cuemby/warren-sync/pkg/log"
	"github.com/cuemby/warren-sync/pkg/types"
)

var bucketBlockRefs = []byte("block_refcounts")

// Store is the embedded, transactional store for one repository's blocks
// and snapshot tree (§4.1). It wraps a single bbolt database file, the
// direct continuation of the teacher's BoltStore.
type Store struct {
	db    *bolt.DB
	quota int64 // total on-disk bytes allowed; 0 == unlimited (§4.1 Storage quota)
	log   zerolog.Logger
}

// Open opens (creating if absent) the repository's store file under
// dataDir, named by its repository id, mirroring the teacher's
// NewBoltStore(dataDir) convention.
func Open(dataDir string, repoID types.RepositoryID, quotaBytes int64) (*Store, error) {
	dbPath := filepath.Join(dataDir, fmt.Sprintf("%s.db", repoID))

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := append(append([][]byte{}, allBuckets...), bucketBlockRefs)
		for _, b := range buckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{
		db:    db,
		quota: quotaBytes,
		log:   log.WithComponent("storage"),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteTransaction is an explicit write handle over the store, matching
// §4.1's begin_write()/commit_and_then contract. bbolt itself allows only
// one writable transaction at a time, so no additional locking is layered
// on top here (§9: "Storage engine is a single writer").
type WriteTransaction struct {
	tx    *bolt.Tx
	store *Store
}

// BeginWrite starts a new write transaction. It blocks until any prior
// write transaction has committed or rolled back.
func (s *Store) BeginWrite() (*WriteTransaction, error) {
	tx, err := s.db.Begin(true)
	if err != nil {
		return nil, fmt.Errorf("failed to begin write transaction: %w", err)
	}
	return &WriteTransaction{tx: tx, store: s}, nil
}

// Commit durably commits the transaction.
func (t *WriteTransaction) Commit() error {
	return t.tx.Commit()
}

// CommitAndThen commits the transaction and, only if that succeeds, runs
// fn — e.g. a post-commit notification to subscribers that must never
// fire for data that turns out not to be durable.
func (t *WriteTransaction) CommitAndThen(fn func()) error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	fn()
	return nil
}

// Rollback discards the transaction, leaving on-disk state unchanged
// (§4.1 Failure model).
func (t *WriteTransaction) Rollback() error {
	return t.tx.Rollback()
}

// Reader is a read-only snapshot handle. Readers may proceed concurrently
// with the single writer (§5 Shared-resource policy).
type Reader struct {
	tx *bolt.Tx
}

// AcquireRead starts a new read-only snapshot.
func (s *Store) AcquireRead() (*Reader, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire reader: %w", err)
	}
	return &Reader{tx: tx}, nil
}

// Close releases the reader's snapshot.
func (r *Reader) Close() error {
	return r.tx.Rollback()
}
