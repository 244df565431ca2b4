package repository

import (
	"fmt"
	"io"
	"strings"

	"github.com/cuemby/warren-sync/pkg/blob"
	"github.com/cuemby/warren-sync/pkg/crypto"
	"github.com/cuemby/warren-sync/pkg/directory"
	"github.com/cuemby/warren-sync/pkg/joint"
	"github.com/cuemby/warren-sync/pkg/types"
)

// openLocalPath walks path's components from the local branch's root
// directory, opening each intermediate sub-directory in turn. path may
// be "" or "/" for the root itself. This is the directory-resolution
// step every file operation below needs before it can act on a name
// within that directory.
func (r *Repository) openLocalPath(path string) (*directory.Directory, error) {
	cur, err := r.localDirectory()
	if err != nil {
		return nil, err
	}

	for _, part := range splitPath(path) {
		e, err := cur.Lookup(part)
		if err != nil {
			return nil, fmt.Errorf("repository: %q: %w", part, ErrEntryNotFound)
		}
		if e.Kind != types.EntryDirectory {
			return nil, fmt.Errorf("repository: %q: %w", part, ErrEntryIsFile)
		}
		cur, err = directory.Open(r.store, r.blockCipher, r.locCipher, r.LocalBranch(), e.BlobID)
		if err != nil {
			return nil, err
		}
	}
	return cur, nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// translateDirErr maps pkg/directory's own sentinel errors onto this
// package's §7 taxonomy, since the two packages declare distinct
// errors.New values for the same conceptual condition (directory keeps
// its own so it has no import-cycle dependency on pkg/repository).
func translateDirErr(err error) error {
	switch err {
	case directory.ErrEntryNotFound:
		return ErrEntryNotFound
	case directory.ErrEntryExists:
		return ErrEntryExists
	case directory.ErrEntryIsFile:
		return ErrEntryIsFile
	case directory.ErrEntryIsDirectory:
		return ErrEntryIsDirectory
	case directory.ErrDirectoryNotEmpty:
		return ErrDirectoryNotEmpty
	case directory.ErrAmbiguousEntry:
		return ErrAmbiguousEntry
	default:
		return err
	}
}

// CreateFile creates an empty file named name in the directory at path
// and flushes both the new file and the containing directory, so the
// result is immediately visible to a subsequent ListEntries/Lookup
// (§4.2, §4.3).
func (r *Repository) CreateFile(path, name string) (types.BlobID, error) {
	dir, err := r.openLocalPath(path)
	if err != nil {
		return types.BlobID{}, err
	}
	fb, err := dir.CreateFile(name)
	if err != nil {
		return types.BlobID{}, translateDirErr(err)
	}
	if err := fb.Flush(); err != nil {
		return types.BlobID{}, err
	}
	if err := dir.Flush(); err != nil {
		return types.BlobID{}, err
	}
	return fb.BlobID(), nil
}

// CreateDirectory creates an empty sub-directory named name in the
// directory at path.
func (r *Repository) CreateDirectory(path, name string) (types.BlobID, error) {
	dir, err := r.openLocalPath(path)
	if err != nil {
		return types.BlobID{}, err
	}
	sub, err := dir.CreateDirectory(name)
	if err != nil {
		return types.BlobID{}, translateDirErr(err)
	}
	if err := sub.Flush(); err != nil {
		return types.BlobID{}, err
	}
	if err := dir.Flush(); err != nil {
		return types.BlobID{}, err
	}
	return sub.BlobID(), nil
}

// openFileBlob resolves name within the directory at path to a file
// entry and opens its blob.
func (r *Repository) openFileBlob(path, name string) (*blob.Blob, error) {
	dir, err := r.openLocalPath(path)
	if err != nil {
		return nil, err
	}
	e, err := dir.Lookup(name)
	if err != nil {
		return nil, translateDirErr(err)
	}
	if e.Kind != types.EntryFile {
		return nil, ErrEntryIsDirectory
	}
	return blob.Open(r.store, r.blockCipher, r.locCipher, r.localWriterID, r.signer, e.BlobID)
}

// ReadFile reads up to len(buf) bytes starting at offset from the named
// file (§4.2 read). It returns io.EOF once the blob's end is reached,
// matching io.Reader semantics rather than spec.md's BlockNotFound
// "try again later" case, which ReadFile instead returns unwrapped so
// callers can distinguish "done" from "still syncing."
func (r *Repository) ReadFile(path, name string, offset uint64, buf []byte) (int, error) {
	b, err := r.openFileBlob(path, name)
	if err != nil {
		return 0, err
	}
	b.Seek(offset)
	total := 0
	for total < len(buf) {
		n, err := b.Read(buf[total:])
		total += n
		if err == io.EOF {
			return total, io.EOF
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			break
		}
	}
	return total, nil
}

// WriteFile writes data at offset into the named file, creating it first
// if it does not already exist (§4.2 write). The write is durable once
// this call returns.
func (r *Repository) WriteFile(path, name string, offset uint64, data []byte) (int, error) {
	dir, err := r.openLocalPath(path)
	if err != nil {
		return 0, err
	}

	e, err := dir.Lookup(name)
	var b *blob.Blob
	switch {
	case err == directory.ErrEntryNotFound:
		b, err = dir.CreateFile(name)
		if err != nil {
			return 0, translateDirErr(err)
		}
	case err != nil:
		return 0, translateDirErr(err)
	default:
		if e.Kind != types.EntryFile {
			return 0, ErrEntryIsDirectory
		}
		b, err = blob.Open(r.store, r.blockCipher, r.locCipher, r.localWriterID, r.signer, e.BlobID)
		if err != nil {
			return 0, err
		}
	}

	b.Seek(offset)
	n, err := b.Write(data)
	if err != nil {
		return n, err
	}
	if err := b.Flush(); err != nil {
		return n, err
	}
	if err := dir.Flush(); err != nil {
		return n, err
	}
	return n, nil
}

// RemoveEntry removes name from the directory at path, tombstoning it on
// behalf of the local branch (§4.3 remove policy, the local-originates
// case: causalVV starts empty since this is a fresh local removal, not a
// merge of a remote one).
func (r *Repository) RemoveEntry(path, name string) error {
	dir, err := r.openLocalPath(path)
	if err != nil {
		return err
	}
	e, err := dir.Lookup(name)
	if err != nil {
		return translateDirErr(err)
	}
	if e.Kind == types.EntryDirectory {
		sub, err := directory.Open(r.store, r.blockCipher, r.locCipher, r.LocalBranch(), e.BlobID)
		if err != nil {
			return err
		}
		if err := dir.RemoveDirectory(name, sub, r.localWriterID, types.VersionVector{}); err != nil {
			return translateDirErr(err)
		}
	} else if err := dir.RemoveEntry(name, r.localWriterID, types.VersionVector{}); err != nil {
		return translateDirErr(err)
	}
	return dir.Flush()
}

// ListEntries builds the joint directory (§4.4) at path across every
// known writer's branch and returns its disambiguated entry listing.
func (r *Repository) ListEntries(path string) ([]JointEntry, error) {
	writers, err := r.KnownWriters()
	if err != nil {
		return nil, err
	}

	perBranch := make(map[types.WriterID]*directory.Directory, len(writers))
	for _, w := range writers {
		dir, err := r.resolvePath(w, path)
		if err == ErrEntryNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		perBranch[w] = dir
	}

	jd := joint.Build(perBranch)
	var out []JointEntry
	for _, name := range jd.UniqueNames() {
		v, err := jd.LookupUnique(name)
		if err != nil {
			continue
		}
		out = append(out, JointEntry{
			Name:     name,
			WriterID: v.WriterID,
			Kind:     v.Entry.Kind,
			BlobID:   v.Entry.BlobID,
			Version:  v.Entry.Version,
		})
	}
	return out, nil
}

// JointEntry is one writer's version of one name in a joint directory
// listing (§4.4), the repository-level counterpart of pkg/joint's
// internal VersionedEntry, exported for pkg/api to report without
// importing pkg/joint itself.
type JointEntry struct {
	Name     string
	WriterID types.WriterID
	Kind     types.EntryKind
	BlobID   types.BlobID
	Version  types.VersionVector
}

// resolvePath walks path from writer w's root directory, the per-branch
// counterpart of openLocalPath used to assemble the joint view across
// every known writer (§4.4).
func (r *Repository) resolvePath(w types.WriterID, path string) (*directory.Directory, error) {
	br := r.LocalBranch()
	if w != r.localWriterID {
		br = r.RemoteBranch(w)
	}
	cur, err := directory.OpenRoot(r.store, r.blockCipher, r.locCipher, br)
	if err != nil {
		return nil, translateDirErr(err)
	}
	for _, part := range splitPath(path) {
		e, err := cur.Lookup(part)
		if err != nil {
			return nil, ErrEntryNotFound
		}
		if e.Kind != types.EntryDirectory {
			return nil, ErrEntryIsFile
		}
		cur, err = directory.Open(r.store, r.blockCipher, r.locCipher, br, e.BlobID)
		if err != nil {
			return nil, translateDirErr(err)
		}
	}
	return cur, nil
}

// GenerateShareToken mints a share token (§6.3) for this repository at
// the requested mode, capped at what this replica itself holds: a
// replica without the write key can never mint AccessWrite, and a
// replica without even the read key (a blind relay) can only mint
// AccessBlind tokens of its own.
func (r *Repository) GenerateShareToken(mode types.AccessMode, suggestedName string) (crypto.ShareToken, error) {
	tok := crypto.ShareToken{
		Mode:          mode,
		RepositoryID:  r.id,
		SuggestedName: suggestedName,
	}
	switch mode {
	case types.AccessWrite:
		if len(r.writeKeySeed) == 0 {
			return crypto.ShareToken{}, fmt.Errorf("repository: %w: no write key held", ErrPermissionDenied)
		}
		tok.Secret = r.writeKeySeed
	case types.AccessRead:
		if len(r.readKey) == 0 {
			return crypto.ShareToken{}, fmt.Errorf("repository: %w: no read key held", ErrPermissionDenied)
		}
		tok.Secret = r.readKey
	case types.AccessBlind:
		// No secret beyond the repository id itself.
	default:
		return crypto.ShareToken{}, fmt.Errorf("repository: unknown access mode %d", mode)
	}
	return tok, nil
}
