package directory

import "github.com/cuemby/warren-sync/pkg/types"

// EntryData is one directory entry's content (§4.3 Entry variants).
// Kind discriminates which fields are meaningful: a File or Directory
// entry carries BlobID, a Tombstone carries only the version vector that
// witnesses its removal.
type EntryData struct {
	Kind    types.EntryKind   `json:"kind"`
	BlobID  types.BlobID      `json:"blob_id,omitempty"`
	Version types.VersionVector `json:"version"`
}

// IsTombstone reports whether this entry marks a removal.
func (e EntryData) IsTombstone() bool { return e.Kind == types.EntryTombstone }

// content is the on-disk shape of a directory's blob: a plain
// name -> EntryData map. encoding/json sorts map keys when marshaling,
// which is what gives two writers with the same logical directory the
// same serialized bytes and therefore the same block hash (§3 invariant
// 6).
type content map[string]EntryData

// RootBlobID is the well-known blob id of a repository's root directory.
// Every branch's root directory lives at this id; there is no separate
// "root pointer" record.
var RootBlobID = types.BlobID{}
