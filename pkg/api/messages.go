package api

import "github.com/cuemby/warren-sync/pkg/types"

// Request/response pairs for the repository API surface (§6.4). Every
// field is an exported plain Go value so the gob codec can encode it
// with no registration step beyond the types themselves.

// GetRepositoryInfoRequest takes no parameters; the server always
// answers for the single repository it was started against.
type GetRepositoryInfoRequest struct{}

// GetRepositoryInfoResponse reports repository identity, access level,
// and the writers currently known locally, the read-only counterpart of
// a sync status query.
type GetRepositoryInfoResponse struct {
	RepositoryID  types.RepositoryID
	Writable      bool
	LocalWriterID types.WriterID
	KnownWriters  []types.WriterID
}

// EntryInfo describes one name's joint view across every branch that
// has a version of it (§4.4): Versions holds one entry per concurrent
// (incomparable) version, disambiguated by writer id. A single-writer
// name has exactly one element.
type EntryInfo struct {
	Name     string
	Versions []EntryVersion
}

// EntryVersion is one writer's version of an entry.
type EntryVersion struct {
	WriterID types.WriterID
	Kind     types.EntryKind
	BlobID   types.BlobID
	Version  types.VersionVector
}

// ListEntriesRequest lists the joint directory at Path ("" or "/" for
// the root).
type ListEntriesRequest struct {
	Path string
}

type ListEntriesResponse struct {
	Entries []EntryInfo
}

// CreateFileRequest creates an empty file under the local branch's
// directory at Path.
type CreateFileRequest struct {
	Path string
	Name string
}

type CreateFileResponse struct {
	BlobID types.BlobID
}

// CreateDirectoryRequest creates an empty subdirectory.
type CreateDirectoryRequest struct {
	Path string
	Name string
}

type CreateDirectoryResponse struct {
	BlobID types.BlobID
}

// ReadFileRequest reads up to Length bytes starting at Offset from the
// named file's local-branch blob.
type ReadFileRequest struct {
	Path   string
	Name   string
	Offset uint64
	Length int
}

type ReadFileResponse struct {
	Data []byte
	EOF  bool
}

// WriteFileRequest writes Data at Offset into the named file's
// local-branch blob, creating the file first if it does not exist.
type WriteFileRequest struct {
	Path   string
	Name   string
	Offset uint64
	Data   []byte
}

type WriteFileResponse struct {
	Written int
}

// RemoveEntryRequest removes a file or empty directory by writing a
// tombstone for the name in the local branch (§4.3 remove policy).
type RemoveEntryRequest struct {
	Path string
	Name string
}

type RemoveEntryResponse struct{}

// GenerateShareTokenRequest mints a share token (§6.3) for this
// repository at the requested access mode, capped at what this replica
// itself holds (a read-only replica cannot mint an AccessWrite token).
type GenerateShareTokenRequest struct {
	Mode          types.AccessMode
	SuggestedName string
}

type GenerateShareTokenResponse struct {
	Token string
}
